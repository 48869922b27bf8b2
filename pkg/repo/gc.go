package repo

import "github.com/odvcencio/gitserve/pkg/object"

// GC packs loose objects into a pack file. It is non-destructive: loose
// copies are left in place, matching the object store's invariant that
// this core never deletes an object once written. The server never invokes
// it; no gitserve subcommand calls it either.
func (r *Repo) GC() (*object.GCSummary, error) {
	return r.Store.GC()
}
