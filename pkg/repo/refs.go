package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/gitserve/pkg/object"
)

// Ref is a single advertised reference: a full name ("HEAD",
// "refs/heads/main", "refs/tags/v1") paired with its resolved OID.
type Ref struct {
	Name string
	OID  object.OID
}

// RefListing is the result of listing every ref in the repository, in the
// order the wire protocol advertises them.
type RefListing struct {
	Refs         []Ref
	SymbolicHead string // "" if HEAD is detached or absent
}

// listRefsUnder walks refs/<prefix> and returns a map of names relative to
// refs/ (e.g. "heads/main", "tags/v1") to their OID. It is the low-level
// directory walk that ListRefs and ListAllRefs build on.
func (r *Repo) listRefsUnder(prefix string) (map[string]object.OID, error) {
	root := filepath.Join(r.RootDir, "refs")
	dir := root
	if strings.TrimSpace(prefix) != "" {
		dir = filepath.Join(root, filepath.FromSlash(prefix))
	}

	refs := make(map[string]object.OID)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		refs[name] = object.OID(strings.TrimSpace(string(data)))
		return nil
	})
	if os.IsNotExist(err) {
		return refs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return refs, nil
}

// ListRefs lists references under refs/<prefix>, keyed by name relative to
// refs/ (e.g. "heads/main", "tags/v1").
func (r *Repo) ListRefs(prefix string) (map[string]object.OID, error) {
	return r.listRefsUnder(prefix)
}

// ListAllRefs returns every ref in advertisement order: HEAD first (if
// resolvable), then refs/heads/* in ASCII order, then refs/tags/* in ASCII
// order. If HEAD is a symbolic ref, SymbolicHead carries its target.
func (r *Repo) ListAllRefs() (RefListing, error) {
	var listing RefListing

	headTarget, err := r.Head()
	if err == nil {
		if strings.HasPrefix(headTarget, "refs/") {
			listing.SymbolicHead = headTarget
		}
		if oid, resolveErr := r.ResolveRef("HEAD"); resolveErr == nil {
			listing.Refs = append(listing.Refs, Ref{Name: "HEAD", OID: oid})
		}
	}

	heads, err := r.listRefsUnder("heads")
	if err != nil {
		return RefListing{}, fmt.Errorf("list all refs: %w", err)
	}
	listing.Refs = append(listing.Refs, sortedRefs(heads, "refs/")...)

	tags, err := r.listRefsUnder("tags")
	if err != nil {
		return RefListing{}, fmt.Errorf("list all refs: %w", err)
	}
	listing.Refs = append(listing.Refs, sortedRefs(tags, "refs/")...)

	return listing, nil
}

func sortedRefs(byRelName map[string]object.OID, fullPrefix string) []Ref {
	names := make([]string, 0, len(byRelName))
	for name := range byRelName {
		names = append(names, name)
	}
	sort.Strings(names)

	refs := make([]Ref, 0, len(names))
	for _, name := range names {
		refs = append(refs, Ref{Name: fullPrefix + name, OID: byRelName[name]})
	}
	return refs
}

// Branches returns the branch names under refs/heads/, sorted alphabetically.
func (r *Repo) Branches() ([]string, error) {
	heads, err := r.listRefsUnder("heads")
	if err != nil {
		return nil, fmt.Errorf("branches: %w", err)
	}
	names := make([]string, 0, len(heads))
	for name := range heads {
		names = append(names, strings.TrimPrefix(name, "heads/"))
	}
	sort.Strings(names)
	return names, nil
}

// CurrentBranch reads HEAD and returns the branch name if HEAD is a
// symbolic ref (e.g. "ref: refs/heads/main" → "main"). Returns "" for a
// detached HEAD.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}
	const prefix = "refs/heads/"
	if strings.HasPrefix(head, prefix) {
		return strings.TrimPrefix(head, prefix), nil
	}
	return "", nil
}
