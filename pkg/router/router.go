// Package router wires the Smart HTTP wire endpoints and the ReadAPI
// browse endpoints onto a chi mux, gated by an AuthZ check.
package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/odvcencio/gitserve/pkg/actor"
	"github.com/odvcencio/gitserve/pkg/auth"
	"github.com/odvcencio/gitserve/pkg/cache"
	"github.com/odvcencio/gitserve/pkg/object"
	"github.com/odvcencio/gitserve/pkg/repo"
)

// New builds the top-level handler: the three Smart HTTP wire endpoints
// plus read-only browse endpoints, wrapped in an otelhttp span per request.
// resultCache may be nil, in which case browse responses are computed fresh
// every call.
func New(registry *actor.Registry, authz auth.AuthZ, resultCache *cache.ResultCache) http.Handler {
	r := chi.NewRouter()

	r.Get("/{owner}/{repo}/info/refs", infoRefsHandler(registry, authz))
	r.Post("/{owner}/{repo}/git-upload-pack", uploadPackHandler(registry, authz))
	r.Post("/{owner}/{repo}/git-receive-pack", receivePackHandler(registry, authz))

	r.Get("/{owner}/{repo}/branches", branchesHandler(registry, authz, resultCache))
	r.Get("/{owner}/{repo}/log", logHandler(registry, authz, resultCache))
	r.Get("/{owner}/{repo}/tree/{ref}/*", treeHandler(registry, authz, resultCache))
	r.Get("/{owner}/{repo}/blob/{ref}/*", blobHandler(registry, authz, resultCache))
	r.Get("/{owner}/{repo}/commit/{oid}", commitHandler(registry, authz, resultCache))

	return otelhttp.NewHandler(r, "gitserve")
}

// repoParam strips an optional trailing ".git" from the {repo} URL param.
func repoParam(req *http.Request) string {
	return strings.TrimSuffix(chi.URLParam(req, "repo"), ".git")
}

func credsFromRequest(req *http.Request) *auth.Credentials {
	username, password, ok := req.BasicAuth()
	if !ok {
		return nil
	}
	return &auth.Credentials{Username: username, Password: password}
}

// checkAuthz gates a request: unauthenticated access to a non-public repo,
// or any write, requires AuthZ.Allow to return true; a public repo read is
// allowed without calling AuthZ at all. Returns false (having already
// written the response) if the request must be rejected.
func checkAuthz(w http.ResponseWriter, req *http.Request, registry *actor.Registry, authz auth.AuthZ, owner, repoName string, op auth.Operation) bool {
	a, err := registry.Get(owner, repoName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}

	isPublic := false
	_ = a.WithReadAPI(func(r *repo.Repo) error {
		p, err := r.IsPublic()
		if err != nil {
			return err
		}
		isPublic = p
		return nil
	})

	if op == auth.OpRead && isPublic {
		return true
	}

	creds := credsFromRequest(req)
	allowed, err := authz.Allow(owner, repoName, op, creds)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return false
	}
	if !allowed {
		w.Header().Set("WWW-Authenticate", `Basic realm="Git"`)
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	return true
}

func readBody(req *http.Request, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(req.Body, maxBytes))
}

const maxRequestBytes = 512 << 20 // 512MiB, generous bound on a buffered push/fetch body

func writeNoCacheHeaders(w http.ResponseWriter, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
}

func infoRefsHandler(registry *actor.Registry, authz auth.AuthZ) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		owner := chi.URLParam(req, "owner")
		repoName := repoParam(req)
		service := req.URL.Query().Get("service")

		op := auth.OpRead
		if !checkAuthz(w, req, registry, authz, owner, repoName, op) {
			return
		}

		a, err := registry.Get(owner, repoName)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		switch service {
		case "git-upload-pack":
			writeNoCacheHeaders(w, "application/x-git-upload-pack-advertisement")
			out, err := advertiseUploadPack(a)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Write(out)
		case "git-receive-pack":
			writeNoCacheHeaders(w, "application/x-git-receive-pack-advertisement")
			out, err := advertiseReceivePack(a)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Write(out)
		default:
			http.Error(w, "unsupported service", http.StatusBadRequest)
		}
	}
}

func uploadPackHandler(registry *actor.Registry, authz auth.AuthZ) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		owner := chi.URLParam(req, "owner")
		repoName := repoParam(req)
		if !checkAuthz(w, req, registry, authz, owner, repoName, auth.OpRead) {
			return
		}

		a, err := registry.Get(owner, repoName)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		body, err := readBody(req, maxRequestBytes)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		out, err := a.UploadPack(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeNoCacheHeaders(w, "application/x-git-upload-pack-result")
		w.Write(out)
	}
}

func receivePackHandler(registry *actor.Registry, authz auth.AuthZ) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		owner := chi.URLParam(req, "owner")
		repoName := repoParam(req)
		if !checkAuthz(w, req, registry, authz, owner, repoName, auth.OpWrite) {
			return
		}

		a, err := registry.Get(owner, repoName)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		body, err := readBody(req, maxRequestBytes)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		out, err := a.ReceivePack(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeNoCacheHeaders(w, "application/x-git-receive-pack-result")
		w.Write(out)
	}
}

func parseDepth(req *http.Request) int {
	raw := req.URL.Query().Get("depth")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func advertiseUploadPack(a *actor.RepoActor) ([]byte, error) {
	var buf bytes.Buffer
	if err := a.AdvertiseUploadPack(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func advertiseReceivePack(a *actor.RepoActor) ([]byte, error) {
	var buf bytes.Buffer
	if err := a.AdvertiseReceivePack(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	_ = json.NewEncoder(w).Encode(v)
}

// cachedOrCompute fronts a browse call with resultCache, keyed on the
// repository's current HEAD-of-refs OID so any ref update invalidates the
// key automatically. resultCache may be nil, in which case fn always runs.
func cachedOrCompute(resultCache *cache.ResultCache, repoFullName, operation string, latestOID object.OID, params []any, fn func() (any, error)) (any, error) {
	if resultCache == nil {
		return fn()
	}
	key := cache.Key(repoFullName, operation, latestOID, params...)
	return resultCache.GetOrCompute(key, fn)
}

// latestOID picks a fingerprint OID for the cache key: the tip of the
// requested ref if resolvable, else the zero OID (never cached stably, but
// still correct — a miss just recomputes).
func latestOID(r *repo.Repo, ref string) object.OID {
	if ref == "" {
		ref = "HEAD"
	}
	oid, err := r.ResolveRef(ref)
	if err != nil {
		return object.ZeroOID
	}
	return oid
}

func branchesHandler(registry *actor.Registry, authz auth.AuthZ, resultCache *cache.ResultCache) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		owner := chi.URLParam(req, "owner")
		repoName := repoParam(req)
		if !checkAuthz(w, req, registry, authz, owner, repoName, auth.OpRead) {
			return
		}

		a, err := registry.Get(owner, repoName)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var result any
		err = a.WithReadAPI(func(r *repo.Repo) error {
			v, err := cachedOrCompute(resultCache, owner+"/"+repoName, "branches", latestOID(r, "HEAD"), nil, func() (any, error) {
				return r.Branches()
			})
			result = v
			return err
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, result)
	}
}

func logHandler(registry *actor.Registry, authz auth.AuthZ, resultCache *cache.ResultCache) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		owner := chi.URLParam(req, "owner")
		repoName := repoParam(req)
		if !checkAuthz(w, req, registry, authz, owner, repoName, auth.OpRead) {
			return
		}

		ref := req.URL.Query().Get("ref")
		depth := parseDepth(req)
		path := req.URL.Query().Get("path")

		a, err := registry.Get(owner, repoName)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var result any
		err = a.WithReadAPI(func(r *repo.Repo) error {
			v, err := cachedOrCompute(resultCache, owner+"/"+repoName, "log", latestOID(r, ref), []any{ref, depth, path}, func() (any, error) {
				return r.Log(ref, depth, path)
			})
			result = v
			return err
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, result)
	}
}

func treeHandler(registry *actor.Registry, authz auth.AuthZ, resultCache *cache.ResultCache) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		owner := chi.URLParam(req, "owner")
		repoName := repoParam(req)
		if !checkAuthz(w, req, registry, authz, owner, repoName, auth.OpRead) {
			return
		}

		ref := chi.URLParam(req, "ref")
		dirPath := chi.URLParam(req, "*")

		a, err := registry.Get(owner, repoName)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var result any
		err = a.WithReadAPI(func(r *repo.Repo) error {
			v, err := cachedOrCompute(resultCache, owner+"/"+repoName, "tree", latestOID(r, ref), []any{ref, dirPath}, func() (any, error) {
				return r.Tree(ref, dirPath)
			})
			result = v
			return err
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, result)
	}
}

func blobHandler(registry *actor.Registry, authz auth.AuthZ, resultCache *cache.ResultCache) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		owner := chi.URLParam(req, "owner")
		repoName := repoParam(req)
		if !checkAuthz(w, req, registry, authz, owner, repoName, auth.OpRead) {
			return
		}

		ref := chi.URLParam(req, "ref")
		filePath := chi.URLParam(req, "*")

		a, err := registry.Get(owner, repoName)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var result any
		err = a.WithReadAPI(func(r *repo.Repo) error {
			v, err := cachedOrCompute(resultCache, owner+"/"+repoName, "blob", latestOID(r, ref), []any{ref, filePath}, func() (any, error) {
				return r.Blob(ref, filePath)
			})
			result = v
			return err
		})
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				http.NotFound(w, req)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, result)
	}
}

func commitHandler(registry *actor.Registry, authz auth.AuthZ, resultCache *cache.ResultCache) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		owner := chi.URLParam(req, "owner")
		repoName := repoParam(req)
		if !checkAuthz(w, req, registry, authz, owner, repoName, auth.OpRead) {
			return
		}

		oid := object.OID(chi.URLParam(req, "oid"))

		a, err := registry.Get(owner, repoName)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var result any
		err = a.WithReadAPI(func(r *repo.Repo) error {
			v, err := cachedOrCompute(resultCache, owner+"/"+repoName, "commitWithChanges", oid, nil, func() (any, error) {
				return r.CommitWithChanges(oid)
			})
			result = v
			return err
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, result)
	}
}
