package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestBasicFileAuthZ_AllowsKnownUser(t *testing.T) {
	a := NewBasicFileAuthZ(map[string]string{
		"alice": mustHash(t, "hunter2"),
	})

	ok, err := a.Allow("alice", "project", OpWrite, &Credentials{Username: "alice", Password: "hunter2"})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestBasicFileAuthZ_RejectsBadPassword(t *testing.T) {
	a := NewBasicFileAuthZ(map[string]string{
		"alice": mustHash(t, "hunter2"),
	})

	ok, err := a.Allow("alice", "project", OpWrite, &Credentials{Username: "alice", Password: "wrong"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBasicFileAuthZ_RejectsUnknownUser(t *testing.T) {
	a := NewBasicFileAuthZ(map[string]string{
		"alice": mustHash(t, "hunter2"),
	})

	ok, err := a.Allow("alice", "project", OpRead, &Credentials{Username: "mallory", Password: "x"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBasicFileAuthZ_RejectsAnonymous(t *testing.T) {
	a := NewBasicFileAuthZ(nil)
	ok, err := a.Allow("alice", "project", OpRead, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAllowAll(t *testing.T) {
	ok, err := AllowAll{}.Allow("anyone", "anything", OpWrite, nil)
	require.NoError(t, err)
	require.True(t, ok)
}
