package actor

import (
	"bytes"
	"testing"

	"github.com/odvcencio/gitserve/pkg/pktline"
	"github.com/odvcencio/gitserve/pkg/repo"
	"github.com/stretchr/testify/require"
)

func emptyLsRefsBody() []byte {
	var buf bytes.Buffer
	pkt, _ := pktline.EncodeString("command=ls-refs\n")
	buf.Write(pkt)
	buf.Write(pktline.EncodeDelim())
	buf.Write(pktline.EncodeFlush())
	return buf.Bytes()
}

func TestRegistry_GetIsCachedAndLazilyInitialized(t *testing.T) {
	reg := NewRegistry(t.TempDir())

	a1, err := reg.Get("alice", "project")
	require.NoError(t, err)
	a2, err := reg.Get("alice", "project")
	require.NoError(t, err)
	require.Same(t, a1, a2)

	var branches []string
	err = a1.WithReadAPI(func(r *repo.Repo) error {
		var err error
		branches, err = r.Branches()
		return err
	})
	require.NoError(t, err)
	require.Empty(t, branches)
}

func TestRegistry_Get_RejectsEmptyKeys(t *testing.T) {
	reg := NewRegistry(t.TempDir())
	_, err := reg.Get("", "project")
	require.Error(t, err)
}

func TestRegistry_Get_RejectsPathTraversal(t *testing.T) {
	reg := NewRegistry(t.TempDir())

	_, err := reg.Get("..", "project")
	require.Error(t, err)

	_, err = reg.Get("alice", "../../etc")
	require.Error(t, err)

	_, err = reg.Get("alice/evil", "project")
	require.Error(t, err)
}

func TestRepoActor_ReceivePackThenReadAPISeesUpdate(t *testing.T) {
	reg := NewRegistry(t.TempDir())
	a, err := reg.Get("alice", "project")
	require.NoError(t, err)

	listing, err := a.ListRefs()
	require.NoError(t, err)
	require.Empty(t, listing.Refs)

	out, err := a.UploadPack(emptyLsRefsBody())
	require.NoError(t, err)
	require.NotEmpty(t, out)
}
