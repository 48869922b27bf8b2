package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/gitserve/pkg/actor"
	"github.com/odvcencio/gitserve/pkg/auth"
	"github.com/odvcencio/gitserve/pkg/cache"
)

func newTestHandler(t *testing.T, authz auth.AuthZ) http.Handler {
	t.Helper()
	registry := actor.NewRegistry(t.TempDir())
	return New(registry, authz, cache.New(0))
}

func TestInfoRefs_UploadPack_AllowAllNoCredentials(t *testing.T) {
	h := newTestHandler(t, auth.AllowAll{})
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/alice/project/info/refs?service=git-upload-pack")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/x-git-upload-pack-advertisement", resp.Header.Get("Content-Type"))
}

func TestInfoRefs_StripsDotGitSuffix(t *testing.T) {
	h := newTestHandler(t, auth.AllowAll{})
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/alice/project.git/info/refs?service=git-receive-pack")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReceivePack_DeniedWithoutAuth(t *testing.T) {
	h := newTestHandler(t, auth.NewBasicFileAuthZ(nil))
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/alice/project/git-receive-pack", "application/x-git-receive-pack-request", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, `Basic realm="Git"`, resp.Header.Get("WWW-Authenticate"))
}

func TestBranches_AllowAllNoCredentialsReturnsJSON(t *testing.T) {
	h := newTestHandler(t, auth.AllowAll{})
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/alice/project/branches")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestBranches_DeniedForPrivateRepoWithoutAuth(t *testing.T) {
	h := newTestHandler(t, auth.NewBasicFileAuthZ(nil))
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/alice/project/branches")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
