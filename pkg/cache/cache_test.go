package cache

import (
	"testing"
	"time"

	"github.com/odvcencio/gitserve/pkg/object"
	"github.com/stretchr/testify/require"
)

func TestResultCache_SetGetRoundTrip(t *testing.T) {
	c := New(time.Hour)
	key := Key("alice/project", "log", object.OID("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), "main", 10)

	c.Set(key, []string{"a", "b"})
	v, ok := c.Get(key)
	require.True(t, ok)
	require.Equal(t, []string{"a", "b"}, v)
}

func TestResultCache_NilValueNotCached(t *testing.T) {
	c := New(time.Hour)
	key := Key("alice/project", "blob", object.OID("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), "x")

	c.Set(key, nil)
	_, ok := c.Get(key)
	require.False(t, ok)
}

func TestResultCache_ExpiresAfterTTL(t *testing.T) {
	c := New(time.Millisecond)
	key := "k"
	c.Set(key, 42)

	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get(key)
	require.False(t, ok)
}

func TestResultCache_KeyChangesWithOID(t *testing.T) {
	k1 := Key("alice/project", "log", object.OID("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	k2 := Key("alice/project", "log", object.OID("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"))
	require.NotEqual(t, k1, k2)
}

func TestResultCache_GetOrCompute(t *testing.T) {
	c := New(time.Hour)
	calls := 0
	compute := func() (any, error) {
		calls++
		return "computed", nil
	}

	v1, err := c.GetOrCompute("k", compute)
	require.NoError(t, err)
	v2, err := c.GetOrCompute("k", compute)
	require.NoError(t, err)

	require.Equal(t, "computed", v1)
	require.Equal(t, "computed", v2)
	require.Equal(t, 1, calls)
}

func TestResultCache_Sweep(t *testing.T) {
	c := New(time.Millisecond)
	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(5 * time.Millisecond)

	removed := c.Sweep()
	require.Equal(t, 2, removed)
}
