package actor

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Registry lazily creates and caches one RepoActor per owner/repo,
// grounded on the same "derive a repo-relative path from a root" pattern
// object.Store uses to lay out objects/pack under its own root.
type Registry struct {
	mu      sync.Mutex
	baseDir string
	actors  map[string]*RepoActor
}

// NewRegistry roots every repository this registry serves under baseDir,
// at baseDir/<owner>/<repo>.
func NewRegistry(baseDir string) *Registry {
	return &Registry{
		baseDir: baseDir,
		actors:  make(map[string]*RepoActor),
	}
}

// Get returns the actor for owner/repo, creating it (but not yet
// initializing the repository on disk — that happens lazily on first use)
// if this is the first request for that key.
func (reg *Registry) Get(owner, repoName string) (*RepoActor, error) {
	if err := validatePathSegment("owner", owner); err != nil {
		return nil, err
	}
	if err := validatePathSegment("repo", repoName); err != nil {
		return nil, err
	}
	key := owner + "/" + repoName

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if a, ok := reg.actors[key]; ok {
		return a, nil
	}

	rootDir := filepath.Join(reg.baseDir, owner, repoName)
	a := newRepoActor(rootDir)
	reg.actors[key] = a
	return a, nil
}

// validatePathSegment rejects any owner/repo value that isn't a single
// plain path component, so a caller can never use it (e.g. a ".." taken
// from a URL path param) to make Get's filepath.Join escape baseDir.
func validatePathSegment(field, value string) error {
	if value == "" {
		return fmt.Errorf("actor registry: %s must be non-empty", field)
	}
	if value == "." || value == ".." {
		return fmt.Errorf("actor registry: %s %q is not a valid repository path segment", field, value)
	}
	if strings.ContainsAny(value, "/\\") {
		return fmt.Errorf("actor registry: %s %q must not contain a path separator", field, value)
	}
	return nil
}
