package repo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/gitserve/pkg/object"
)

// ListTags returns tag names (relative to refs/tags/) sorted alphabetically.
func (r *Repo) ListTags() ([]string, error) {
	refs, err := r.ListRefs("tags")
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	names := make([]string, 0, len(refs))
	for full := range refs {
		names = append(names, strings.TrimPrefix(full, "tags/"))
	}
	sort.Strings(names)
	return names, nil
}

// ListTagsWithOIDs returns tag name -> the OID the ref file points at
// (which for an annotated tag is the tag object itself, not its target).
func (r *Repo) ListTagsWithOIDs() (map[string]object.OID, error) {
	refs, err := r.ListRefs("tags")
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	out := make(map[string]object.OID, len(refs))
	for full, oid := range refs {
		out[strings.TrimPrefix(full, "tags/")] = oid
	}
	return out, nil
}

// ResolveTag resolves a tag name under refs/tags/.
func (r *Repo) ResolveTag(name string) (object.OID, error) {
	return r.ResolveRef("refs/tags/" + name)
}

// PeelTag reports the commit (or other object) an annotated tag points at.
// If oid names a non-tag object, ok is false: the ref is a lightweight tag
// and has nothing to peel.
func (r *Repo) PeelTag(oid object.OID) (target object.OID, ok bool, err error) {
	tag, err := r.Store.ReadTag(oid)
	if err != nil {
		return "", false, nil
	}
	return tag.Object, true, nil
}
