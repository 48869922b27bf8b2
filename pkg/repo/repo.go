// Package repo implements the bare-repository layout and ref semantics
// that sit between the wire protocol and the object store: HEAD, symbolic
// and direct refs, CAS-protected ref updates, and the read-only browse API.
package repo

import (
	"github.com/odvcencio/gitserve/pkg/logging"
	"github.com/odvcencio/gitserve/pkg/object"
)

// Repo represents an opened bare repository: no working tree, no staging
// area, no index. Everything lives under RootDir: HEAD, config,
// refs/heads/*, refs/tags/*, objects/...
type Repo struct {
	RootDir string        // bare repository root
	Store   *object.Store // content-addressed object store rooted at RootDir
	logger  logging.Logger
}

// SetLogger installs the diagnostic sink used for non-fatal conditions
// (e.g. an unreadable object skipped while building a pack). It is also
// forwarded to the underlying object store.
func (r *Repo) SetLogger(l logging.Logger) {
	if l == nil {
		l = logging.NopLogger{}
	}
	r.logger = l
	r.Store.SetLogger(l)
}
