package object

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// OID is a 40-character lowercase hex-encoded SHA-1 object id.
type OID string

// ZeroOID is the all-zero object id used to mean "ref absent" on the wire.
const ZeroOID OID = "0000000000000000000000000000000000000000"

// Valid reports whether o is a syntactically valid 40-hex-digit OID.
func (o OID) Valid() bool {
	if len(o) != 40 {
		return false
	}
	_, err := hex.DecodeString(string(o))
	return err == nil
}

// IsZero reports whether o is the zero OID.
func (o OID) IsZero() bool {
	return o == ZeroOID
}

func (o OID) String() string { return string(o) }

// ObjectType identifies the kind of a Git object.
type ObjectType string

const (
	TypeCommit ObjectType = "commit"
	TypeTree   ObjectType = "tree"
	TypeBlob   ObjectType = "blob"
	TypeTag    ObjectType = "tag"
)

// ParseObjectType validates a type token from pack/loose object headers.
func ParseObjectType(s string) (ObjectType, error) {
	switch ObjectType(s) {
	case TypeCommit, TypeTree, TypeBlob, TypeTag:
		return ObjectType(s), nil
	default:
		return "", fmt.Errorf("unknown object type %q", s)
	}
}

// Tree entry modes. Only these four are legal on the wire.
const (
	ModeFile       = "100644"
	ModeExecutable = "100755"
	ModeSymlink    = "120000"
	ModeTree       = "040000"
)

// Blob is raw file content; identity is the hash of its bytes.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry of a tree object.
type TreeEntry struct {
	Mode string
	Name string
	OID  OID
}

// IsTree reports whether the entry points at a subtree.
func (e TreeEntry) IsTree() bool { return e.Mode == ModeTree }

// Tree is a sorted list of tree entries.
type Tree struct {
	Entries []TreeEntry
}

// Signature is a commit/tag author or committer line: "name <email> seconds tz".
type Signature struct {
	Name     string
	Email    string
	Seconds  int64
	TZOffset string // e.g. "+0000", "-0700"
}

// String renders the signature in Git's canonical wire form.
func (s Signature) String() string {
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, s.Seconds, s.TZOffset)
}

// ParseSignature parses a "name <email> seconds tz" line.
func ParseSignature(line string) (Signature, error) {
	lt := strings.LastIndexByte(line, '<')
	gt := strings.LastIndexByte(line, '>')
	if lt < 0 || gt < 0 || gt < lt {
		return Signature{}, fmt.Errorf("malformed signature %q", line)
	}
	name := strings.TrimSpace(line[:lt])
	email := line[lt+1 : gt]
	rest := strings.Fields(strings.TrimSpace(line[gt+1:]))
	if len(rest) != 2 {
		return Signature{}, fmt.Errorf("malformed signature timestamp in %q", line)
	}
	var seconds int64
	if _, err := fmt.Sscanf(rest[0], "%d", &seconds); err != nil {
		return Signature{}, fmt.Errorf("malformed signature timestamp %q: %w", rest[0], err)
	}
	return Signature{Name: name, Email: email, Seconds: seconds, TZOffset: rest[1]}, nil
}

// Commit is a parsed commit object.
type Commit struct {
	Tree      OID
	Parents   []OID
	Author    Signature
	Committer Signature
	Message   string
}

// Tag is a parsed annotated tag object.
type Tag struct {
	Object  OID
	Type    ObjectType
	Name    string
	Tagger  Signature
	Message string
}
