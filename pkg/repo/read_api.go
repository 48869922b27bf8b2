package repo

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/odvcencio/gitserve/pkg/object"
)

// CommitInfo is the browse-facing view of a commit.
type CommitInfo struct {
	OID       object.OID
	Tree      object.OID
	Parents   []object.OID
	Author    object.Signature
	Committer object.Signature
	Message   string
}

func commitInfo(oid object.OID, c *object.Commit) CommitInfo {
	return CommitInfo{
		OID: oid, Tree: c.Tree, Parents: c.Parents,
		Author: c.Author, Committer: c.Committer, Message: c.Message,
	}
}

// Log walks history starting at ref (defaulting to HEAD), newest first,
// returning up to depth commits (depth<=0 means unbounded). When path is
// non-empty, only commits whose tree at path differs from their first
// parent's tree at path are included. The walk itself follows first-parent
// links; merge parents are not separately traversed.
func (r *Repo) Log(ref string, depth int, filterPath string) ([]CommitInfo, error) {
	if ref == "" {
		ref = "HEAD"
	}
	start, err := r.ResolveRef(ref)
	if err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}

	filterPath = cleanRelPath(filterPath)

	var out []CommitInfo
	current := start
	for !current.IsZero() && current != "" {
		if depth > 0 && len(out) >= depth {
			break
		}
		c, err := r.Store.ReadCommit(current)
		if err != nil {
			return nil, fmt.Errorf("log: read commit %s: %w", current, err)
		}

		include := true
		if filterPath != "" {
			include, err = r.commitTouchesPath(c, filterPath)
			if err != nil {
				return nil, fmt.Errorf("log: %w", err)
			}
		}
		if include {
			out = append(out, commitInfo(current, c))
		}

		if len(c.Parents) == 0 {
			break
		}
		current = c.Parents[0]
	}
	return out, nil
}

func (r *Repo) commitTouchesPath(c *object.Commit, filterPath string) (bool, error) {
	afterOID, err := r.treeOIDAtPath(c.Tree, filterPath)
	if err != nil {
		return false, err
	}

	var beforeOID object.OID
	if len(c.Parents) > 0 {
		parent, err := r.Store.ReadCommit(c.Parents[0])
		if err != nil {
			return false, fmt.Errorf("read parent commit %s: %w", c.Parents[0], err)
		}
		beforeOID, err = r.treeOIDAtPath(parent.Tree, filterPath)
		if err != nil {
			return false, err
		}
	}
	return afterOID != beforeOID, nil
}

// treeOIDAtPath resolves a path within a tree to the OID of the entry it
// names, or "" if absent at any step.
func (r *Repo) treeOIDAtPath(treeOID object.OID, relPath string) (object.OID, error) {
	relPath = cleanRelPath(relPath)
	if relPath == "" {
		return treeOID, nil
	}
	parts := strings.Split(relPath, "/")
	current := treeOID
	for i, part := range parts {
		tree, err := r.Store.ReadTree(current)
		if err != nil {
			return "", fmt.Errorf("read tree %s: %w", current, err)
		}
		var (
			entry object.TreeEntry
			found bool
		)
		for _, te := range tree.Entries {
			if te.Name == part {
				entry = te
				found = true
				break
			}
		}
		if !found {
			return "", nil
		}
		if i == len(parts)-1 {
			return entry.OID, nil
		}
		if !entry.IsTree() {
			return "", nil
		}
		current = entry.OID
	}
	return "", nil
}

func cleanRelPath(p string) string {
	if p == "" || p == "." {
		return ""
	}
	cleaned := path.Clean(strings.TrimPrefix(p, "/"))
	if cleaned == "." {
		return ""
	}
	return cleaned
}

// TreeEntryInfo is one entry in a browse tree listing.
type TreeEntryInfo struct {
	Name       string
	Type       object.ObjectType // blob or tree
	OID        object.OID
	LastCommit *CommitInfo
}

// Tree lists the entries of the tree at ref (default HEAD), optionally
// descended into path. Each entry's LastCommit is the most recent commit
// that touched it (log(ref, depth=1, path=entryPath)).
func (r *Repo) Tree(ref, dirPath string) ([]TreeEntryInfo, error) {
	if ref == "" {
		ref = "HEAD"
	}
	commitOID, err := r.ResolveRef(ref)
	if err != nil {
		return nil, fmt.Errorf("tree: %w", err)
	}
	c, err := r.Store.ReadCommit(commitOID)
	if err != nil {
		return nil, fmt.Errorf("tree: read commit %s: %w", commitOID, err)
	}

	treeOID, err := r.treeOIDAtPath(c.Tree, dirPath)
	if err != nil {
		return nil, fmt.Errorf("tree: %w", err)
	}
	if treeOID == "" {
		return nil, fmt.Errorf("tree: %w", ErrNotFound)
	}

	tree, err := r.Store.ReadTree(treeOID)
	if err != nil {
		return nil, fmt.Errorf("tree: read %s: %w", treeOID, err)
	}

	dirPath = cleanRelPath(dirPath)
	out := make([]TreeEntryInfo, 0, len(tree.Entries))
	for _, te := range tree.Entries {
		entryType := object.TypeBlob
		if te.IsTree() {
			entryType = object.TypeTree
		}
		entryPath := te.Name
		if dirPath != "" {
			entryPath = dirPath + "/" + te.Name
		}
		var lastCommit *CommitInfo
		if history, err := r.Log(ref, 1, entryPath); err == nil && len(history) > 0 {
			lastCommit = &history[0]
		}
		out = append(out, TreeEntryInfo{Name: te.Name, Type: entryType, OID: te.OID, LastCommit: lastCommit})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// BlobInfo is the browse-facing view of a file's content.
type BlobInfo struct {
	OID      object.OID
	Content  []byte
	Size     int
	IsBinary bool
}

const binarySniffLen = 8000

func isBinary(data []byte) bool {
	n := len(data)
	if n > binarySniffLen {
		n = binarySniffLen
	}
	return bytes.IndexByte(data[:n], 0) >= 0
}

// Blob resolves ref (default HEAD) and returns the blob content at path.
func (r *Repo) Blob(ref, filePath string) (*BlobInfo, error) {
	if ref == "" {
		ref = "HEAD"
	}
	commitOID, err := r.ResolveRef(ref)
	if err != nil {
		return nil, fmt.Errorf("blob: %w", err)
	}
	c, err := r.Store.ReadCommit(commitOID)
	if err != nil {
		return nil, fmt.Errorf("blob: read commit %s: %w", commitOID, err)
	}

	blobOID, err := r.treeOIDAtPath(c.Tree, filePath)
	if err != nil {
		return nil, fmt.Errorf("blob: %w", err)
	}
	if blobOID == "" {
		return nil, fmt.Errorf("blob %q: %w", filePath, ErrNotFound)
	}

	blob, err := r.Store.ReadBlob(blobOID)
	if err != nil {
		return nil, fmt.Errorf("blob: read %s: %w", blobOID, err)
	}
	return &BlobInfo{OID: blobOID, Content: blob.Data, Size: len(blob.Data), IsBinary: isBinary(blob.Data)}, nil
}

// ChangeKind classifies one path's change between a commit and its parent.
type ChangeKind string

const (
	ChangeAdd    ChangeKind = "add"
	ChangeModify ChangeKind = "modify"
	ChangeRemove ChangeKind = "remove"
)

// Change is one path-level diff entry.
type Change struct {
	Path     string
	Kind     ChangeKind
	OldOID   object.OID
	NewOID   object.OID
	IsBinary bool
}

// CommitChanges pairs a commit with its tree-vs-parent-tree diff.
type CommitChanges struct {
	Commit  CommitInfo
	Changes []Change
}

// CommitWithChanges returns the commit at oid along with the set of path
// changes versus its single parent (or the empty tree if it has none).
func (r *Repo) CommitWithChanges(oid object.OID) (*CommitChanges, error) {
	c, err := r.Store.ReadCommit(oid)
	if err != nil {
		return nil, fmt.Errorf("commit with changes: read commit %s: %w", oid, err)
	}

	after, err := r.flattenTree(c.Tree)
	if err != nil {
		return nil, fmt.Errorf("commit with changes: %w", err)
	}

	before := map[string]object.OID{}
	if len(c.Parents) > 0 {
		parent, err := r.Store.ReadCommit(c.Parents[0])
		if err != nil {
			return nil, fmt.Errorf("commit with changes: read parent %s: %w", c.Parents[0], err)
		}
		before, err = r.flattenTree(parent.Tree)
		if err != nil {
			return nil, fmt.Errorf("commit with changes: %w", err)
		}
	}

	changes, err := r.diffFlatTrees(before, after)
	if err != nil {
		return nil, fmt.Errorf("commit with changes: %w", err)
	}

	return &CommitChanges{Commit: commitInfo(oid, c), Changes: changes}, nil
}

// flattenTree walks a tree recursively, returning every blob path mapped to
// its OID. treeOID == "" is treated as the empty tree.
func (r *Repo) flattenTree(treeOID object.OID) (map[string]object.OID, error) {
	result := map[string]object.OID{}
	if treeOID == "" || treeOID.IsZero() {
		return result, nil
	}
	if err := r.flattenTreeRec(treeOID, "", result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Repo) flattenTreeRec(treeOID object.OID, prefix string, out map[string]object.OID) error {
	tree, err := r.Store.ReadTree(treeOID)
	if err != nil {
		return fmt.Errorf("flatten tree: read %s: %w", treeOID, err)
	}
	for _, te := range tree.Entries {
		full := te.Name
		if prefix != "" {
			full = prefix + "/" + te.Name
		}
		if te.IsTree() {
			if err := r.flattenTreeRec(te.OID, full, out); err != nil {
				return err
			}
			continue
		}
		out[full] = te.OID
	}
	return nil
}

func (r *Repo) diffFlatTrees(before, after map[string]object.OID) ([]Change, error) {
	paths := make(map[string]struct{}, len(before)+len(after))
	for p := range before {
		paths[p] = struct{}{}
	}
	for p := range after {
		paths[p] = struct{}{}
	}

	names := make([]string, 0, len(paths))
	for p := range paths {
		names = append(names, p)
	}
	sort.Strings(names)

	changes := make([]Change, 0, len(names))
	for _, p := range names {
		oldOID, hadOld := before[p]
		newOID, hasNew := after[p]
		if hadOld && hasNew && oldOID == newOID {
			continue
		}

		var kind ChangeKind
		switch {
		case !hadOld && hasNew:
			kind = ChangeAdd
		case hadOld && !hasNew:
			kind = ChangeRemove
		default:
			kind = ChangeModify
		}

		binary := false
		probeOID := newOID
		if !hasNew {
			probeOID = oldOID
		}
		if blob, err := r.Store.ReadBlob(probeOID); err == nil {
			binary = isBinary(blob.Data)
		} else if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("diff %q: %w", p, err)
		}

		changes = append(changes, Change{Path: p, Kind: kind, OldOID: oldOID, NewOID: newOID, IsBinary: binary})
	}
	return changes, nil
}
