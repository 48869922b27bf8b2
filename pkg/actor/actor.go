// Package actor demultiplexes per-repository work into a single-writer,
// many-reader actor, so concurrent HTTP requests against the same
// repository serialize their mutations in arrival order while reads run
// freely alongside each other.
package actor

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/odvcencio/gitserve/pkg/protocol"
	"github.com/odvcencio/gitserve/pkg/repo"
)

// RepoActor owns one (ObjectStore, GitObjects) pair — in practice one
// *repo.Repo — keyed by owner/repo. Write operations (receivePack) take
// the mutex exclusively; uploadPack and ReadAPI calls take it for reading,
// so they run concurrently with each other but never interleave with a
// mutation.
type RepoActor struct {
	mu   sync.RWMutex
	repo *repo.Repo

	initOnce sync.Once
	initErr  error
	rootDir  string

	// fileLock guards the repository directory across process boundaries
	// (e.g. two server instances sharing a network filesystem). The
	// in-process mu already serializes writers within this process; this
	// is a second layer for deployments where that is not the only
	// writer.
	fileLock *flock.Flock
}

// newRepoActor constructs an actor for the bare repository rooted at
// rootDir. Initialization (repo.Init, possibly creating the repository on
// disk for the first time) is deferred to the first call that needs it and
// runs under the write lock, so nothing else observes a half-initialized
// repo.
func newRepoActor(rootDir string) *RepoActor {
	return &RepoActor{
		rootDir:  rootDir,
		fileLock: flock.New(filepath.Join(rootDir, "gitserve.lock")),
	}
}

func (a *RepoActor) ensureInit() error {
	a.initOnce.Do(func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		r, err := repo.Init(a.rootDir)
		if err != nil {
			a.initErr = fmt.Errorf("actor init %s: %w", a.rootDir, err)
			return
		}
		a.repo = r
	})
	return a.initErr
}

// ListRefs returns every ref in advertisement order. A read operation.
func (a *RepoActor) ListRefs() (repo.RefListing, error) {
	if err := a.ensureInit(); err != nil {
		return repo.RefListing{}, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.repo.ListAllRefs()
}

// AdvertiseUploadPack writes the v2 capability advertisement. A read
// operation (it only lists refs implicitly via ls-refs's own call).
func (a *RepoActor) AdvertiseUploadPack(w *bytes.Buffer) error {
	if err := a.ensureInit(); err != nil {
		return err
	}
	return protocol.AdvertiseUploadPackV2(w)
}

// AdvertiseReceivePack writes the v0/v1 advertisement, including the
// current ref list. A read operation.
func (a *RepoActor) AdvertiseReceivePack(w *bytes.Buffer) error {
	if err := a.ensureInit(); err != nil {
		return err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return protocol.AdvertiseReceivePackV01(w, a.repo)
}

// UploadPack runs a v2 ls-refs/fetch command body. A read operation: it may
// run concurrently with other UploadPack/ReadAPI calls but not with an
// in-flight ReceivePack.
func (a *RepoActor) UploadPack(body []byte) ([]byte, error) {
	if err := a.ensureInit(); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out bytes.Buffer
	if err := protocol.UploadPackV2(&out, a.repo, body); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// ReceivePack runs a receive-pack request: index the pack, apply ref
// updates, build the report-status body. A write operation — exclusive
// per repository, queued FIFO by sync.RWMutex's writer-arrival ordering.
func (a *RepoActor) ReceivePack(body []byte) ([]byte, error) {
	if err := a.ensureInit(); err != nil {
		return nil, err
	}

	if err := a.fileLock.Lock(); err != nil {
		return nil, fmt.Errorf("receive-pack: acquire repo lock: %w", err)
	}
	defer a.fileLock.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	req, err := protocol.ParseReceivePackRequest(body)
	if err != nil {
		return nil, fmt.Errorf("receive-pack: %w", err)
	}

	var out bytes.Buffer
	if err := protocol.ReceivePack(&out, a.repo, req); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// WithReadAPI runs fn against the actor's repo under a read lock, for
// browse-facing calls (branches, log, tree, blob, commitWithChanges). fn
// must not retain r past its return.
func (a *RepoActor) WithReadAPI(fn func(r *repo.Repo) error) error {
	if err := a.ensureInit(); err != nil {
		return err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return fn(a.repo)
}
