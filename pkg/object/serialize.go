package object

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// Tree
//
// On-disk/pack form: a sequence of entries, each
//   "<mode-octal-ascii> <name>\0<20-byte-raw-oid>"
// with no separator between entries and no trailing newline. Entries must be
// written in sorted-by-name order (tree-sorted order per Git: as if a
// trailing "/" were appended to directory names) to produce a stable OID.
// ---------------------------------------------------------------------------

// MarshalTree serializes a Tree to the canonical packed Git tree format.
// Entries are sorted to Git's tree order before encoding.
func MarshalTree(t *Tree) []byte {
	sorted := make([]TreeEntry, len(t.Entries))
	copy(sorted, t.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return treeEntrySortKey(sorted[i]) < treeEntrySortKey(sorted[j])
	})

	var buf bytes.Buffer
	for _, e := range sorted {
		fmt.Fprintf(&buf, "%s %s\x00", e.Mode, e.Name)
		raw, _ := oidToBytes(e.OID)
		buf.Write(raw)
	}
	return buf.Bytes()
}

// treeEntrySortKey reproduces Git's tree sort order: entries are compared as
// if directory names carried a trailing "/", so "foo" sorts after "foo.go"
// but before "foo/bar".
func treeEntrySortKey(e TreeEntry) string {
	if e.IsTree() {
		return e.Name + "/"
	}
	return e.Name
}

// UnmarshalTree parses the canonical packed Git tree format.
func UnmarshalTree(data []byte) (*Tree, error) {
	t := &Tree{}
	for len(data) > 0 {
		sp := bytes.IndexByte(data, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("unmarshal tree: missing mode separator")
		}
		mode := string(data[:sp])
		rest := data[sp+1:]

		nul := bytes.IndexByte(rest, 0)
		if nul < 0 {
			return nil, fmt.Errorf("unmarshal tree: missing name terminator")
		}
		name := string(rest[:nul])
		rest = rest[nul+1:]
		if len(rest) < 20 {
			return nil, fmt.Errorf("unmarshal tree: truncated oid for entry %q", name)
		}

		t.Entries = append(t.Entries, TreeEntry{
			Mode: normalizeTreeMode(mode),
			Name: name,
			OID:  bytesToOID(rest[:20]),
		})
		data = rest[20:]
	}
	return t, nil
}

// normalizeTreeMode accepts both "40000" and "040000" directory modes (Git
// historically wrote trees with either) and canonicalizes to "040000".
func normalizeTreeMode(mode string) string {
	if mode == "40000" {
		return ModeTree
	}
	return mode
}

// ---------------------------------------------------------------------------
// Commit
//
// On-disk/pack form:
//   tree <oid>\n
//   parent <oid>\n      (zero or more, in order)
//   author <name> <email> <seconds> <tz>\n
//   committer <name> <email> <seconds> <tz>\n
//   \n
//   <message>
// ---------------------------------------------------------------------------

// MarshalCommit serializes a Commit to the canonical Git commit format.
func MarshalCommit(c *Commit) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.Tree)
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author.String())
	fmt.Fprintf(&buf, "committer %s\n", c.Committer.String())
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses the canonical Git commit format.
func UnmarshalCommit(data []byte) (*Commit, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		// A commit with an empty message still has the blank-line
		// separator; when none is found, the whole input is parsed as
		// header lines and the message is empty.
		idx = len(data)
	}
	header := string(data[:idx])
	message := ""
	if idx < len(data) {
		message = string(data[idx+2:])
	}

	c := &Commit{}
	for _, line := range strings.Split(header, "\n") {
		if line == "" {
			continue
		}
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: malformed header line %q", line)
		}
		switch key {
		case "tree":
			c.Tree = OID(val)
		case "parent":
			c.Parents = append(c.Parents, OID(val))
		case "author":
			sig, err := ParseSignature(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: author: %w", err)
			}
			c.Author = sig
		case "committer":
			sig, err := ParseSignature(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: committer: %w", err)
			}
			c.Committer = sig
		default:
			// Unknown header lines (e.g. gpgsig) are ignored for forward
			// compatibility; this server never produces them.
		}
	}
	c.Message = message
	return c, nil
}

// ---------------------------------------------------------------------------
// Tag (annotated)
//
// On-disk/pack form:
//   object <oid>\n
//   type <type>\n
//   tag <name>\n
//   tagger <name> <email> <seconds> <tz>\n
//   \n
//   <message>
// ---------------------------------------------------------------------------

// MarshalTag serializes a Tag to the canonical Git annotated-tag format.
func MarshalTag(t *Tag) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\n", t.Object)
	fmt.Fprintf(&buf, "type %s\n", t.Type)
	fmt.Fprintf(&buf, "tag %s\n", t.Name)
	fmt.Fprintf(&buf, "tagger %s\n", t.Tagger.String())
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	return buf.Bytes()
}

// UnmarshalTag parses the canonical Git annotated-tag format.
func UnmarshalTag(data []byte) (*Tag, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		idx = len(data)
	}
	header := string(data[:idx])
	message := ""
	if idx < len(data) {
		message = string(data[idx+2:])
	}

	t := &Tag{}
	for _, line := range strings.Split(header, "\n") {
		if line == "" {
			continue
		}
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal tag: malformed header line %q", line)
		}
		switch key {
		case "object":
			t.Object = OID(val)
		case "type":
			objType, err := ParseObjectType(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal tag: %w", err)
			}
			t.Type = objType
		case "tag":
			t.Name = val
		case "tagger":
			sig, err := ParseSignature(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal tag: tagger: %w", err)
			}
			t.Tagger = sig
		default:
			// Ignore unknown headers.
		}
	}
	t.Message = message
	return t, nil
}
