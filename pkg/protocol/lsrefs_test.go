package protocol

import (
	"bytes"
	"strings"
	"testing"

	"github.com/odvcencio/gitserve/pkg/object"
	"github.com/stretchr/testify/require"
)

func TestLsRefs_ListsAllRefsInOrder(t *testing.T) {
	r := newTestRepo(t)
	main := object.OID("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tag := object.OID("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	require.NoError(t, r.UpdateRef("refs/heads/main", main))
	require.NoError(t, r.UpdateRef("refs/tags/v1", tag))

	var buf bytes.Buffer
	require.NoError(t, LsRefs(&buf, r, LsRefsRequest{}))

	out := buf.String()
	require.Contains(t, out, string(main)+" refs/heads/main")
	require.Contains(t, out, string(tag)+" refs/tags/v1")
	require.Less(t, strings.Index(out, " refs/heads/main"), strings.Index(out, " refs/tags/v1"))
}

func TestLsRefs_RefPrefixFilters(t *testing.T) {
	r := newTestRepo(t)
	main := object.OID("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tag := object.OID("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	require.NoError(t, r.UpdateRef("refs/heads/main", main))
	require.NoError(t, r.UpdateRef("refs/tags/v1", tag))

	var buf bytes.Buffer
	require.NoError(t, LsRefs(&buf, r, LsRefsRequest{RefPrefix: []string{"refs/heads/"}}))

	out := buf.String()
	require.Contains(t, out, "refs/heads/main")
	require.NotContains(t, out, "refs/tags/v1")
}

func TestLsRefs_SymrefsReportsHeadTarget(t *testing.T) {
	r := newTestRepo(t)
	main := object.OID("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, r.UpdateRef("refs/heads/main", main))

	var buf bytes.Buffer
	require.NoError(t, LsRefs(&buf, r, LsRefsRequest{Symrefs: true}))

	require.Contains(t, buf.String(), "HEAD symref-target:refs/heads/main")
}

func TestParseLsRefsArgs(t *testing.T) {
	req := ParseLsRefsArgs([]string{"peel", "symrefs", "ref-prefix refs/heads/"})
	require.True(t, req.Peel)
	require.True(t, req.Symrefs)
	require.Equal(t, []string{"refs/heads/"}, req.RefPrefix)
}
