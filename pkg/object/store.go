package object

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/odvcencio/gitserve/pkg/logging"
)

// Store is a content-addressed loose object store with a 2-character
// fan-out directory layout: objects/ab/cdef0123... Entries are zlib
// deflated, matching the on-disk shape real Git clients expect to find
// under a repository's objects/ tree.
type Store struct {
	root   string
	logger logging.Logger
}

// NewStore creates a Store rooted at the given directory. The objects/
// subdirectory is created lazily on first write.
func NewStore(root string) *Store {
	return &Store{root: root, logger: logging.NopLogger{}}
}

// SetLogger installs the diagnostic sink used for non-fatal conditions such
// as an unreadable object skipped during a pack walk.
func (s *Store) SetLogger(l logging.Logger) {
	if l == nil {
		l = logging.NopLogger{}
	}
	s.logger = l
}

// objectPath returns the filesystem path for a given OID.
func (s *Store) objectPath(oid OID) string {
	return filepath.Join(s.root, "objects", string(oid[:2]), string(oid[2:]))
}

// hasLoose reports whether the loose object directory contains oid.
func (s *Store) hasLoose(oid OID) bool {
	_, err := os.Stat(s.objectPath(oid))
	return err == nil
}

// Has reports whether oid is present anywhere in the store, loose or packed.
func (s *Store) Has(oid OID) bool {
	if s.hasLoose(oid) {
		return true
	}
	_, _, err := s.readFromPacks(oid)
	return err == nil
}

// Write stores an object and returns its content OID. The on-disk format is
// zlib("<type> <len>\0<content>"). Writes are atomic: data is written to a
// temp file and then renamed into place.
func (s *Store) Write(objType ObjectType, data []byte) (OID, error) {
	oid := HashObject(objType, data)

	if s.hasLoose(oid) {
		return oid, nil
	}

	envelope := fmt.Sprintf("%s %d\x00", objType, len(data))
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write([]byte(envelope)); err != nil {
		_ = zw.Close()
		return "", fmt.Errorf("object write deflate header: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		return "", fmt.Errorf("object write deflate body: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("object write deflate close: %w", err)
	}

	dir := filepath.Join(s.root, "objects", string(oid[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("object write mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(compressed.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("object write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write close: %w", err)
	}

	dest := s.objectPath(oid)
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write rename: %w", err)
	}

	return oid, nil
}

// Read retrieves an object by OID, checking loose storage first and falling
// back to any packed object store.
func (s *Store) Read(oid OID) (ObjectType, []byte, error) {
	if s.hasLoose(oid) {
		return s.readLoose(oid)
	}
	return s.readFromPacks(oid)
}

// readLoose retrieves a loose object by OID, returning its type and raw
// content. Callers that must bypass the pack fallback (GC, Verify) use this
// directly.
func (s *Store) readLoose(oid OID) (ObjectType, []byte, error) {
	f, err := os.Open(s.objectPath(oid))
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", oid, err)
	}
	defer f.Close()

	zr, err := zlib.NewReader(f)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: inflate: %w", oid, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: inflate body: %w", oid, err)
	}

	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("object read %s: invalid format (no NUL)", oid)
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("object read %s: invalid header %q", oid, header)
	}
	objType := ObjectType(parts[0])
	length, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: invalid length %q: %w", oid, parts[1], err)
	}
	if len(content) != length {
		return "", nil, fmt.Errorf("object read %s: length mismatch (header=%d, actual=%d)", oid, length, len(content))
	}

	return objType, content, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (OID, error) {
	return s.Write(TypeBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(oid OID) (*Blob, error) {
	objType, data, err := s.Read(oid)
	if err != nil {
		return nil, err
	}
	if objType != TypeBlob {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", oid, objType, TypeBlob)
	}
	return UnmarshalBlob(data)
}

// WriteTree serializes and stores a Tree.
func (s *Store) WriteTree(t *Tree) (OID, error) {
	return s.Write(TypeTree, MarshalTree(t))
}

// ReadTree reads and deserializes a Tree.
func (s *Store) ReadTree(oid OID) (*Tree, error) {
	objType, data, err := s.Read(oid)
	if err != nil {
		return nil, err
	}
	if objType != TypeTree {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", oid, objType, TypeTree)
	}
	return UnmarshalTree(data)
}

// WriteCommit serializes and stores a Commit.
func (s *Store) WriteCommit(c *Commit) (OID, error) {
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a Commit.
func (s *Store) ReadCommit(oid OID) (*Commit, error) {
	objType, data, err := s.Read(oid)
	if err != nil {
		return nil, err
	}
	if objType != TypeCommit {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", oid, objType, TypeCommit)
	}
	return UnmarshalCommit(data)
}

// WriteTag serializes and stores an annotated Tag.
func (s *Store) WriteTag(t *Tag) (OID, error) {
	return s.Write(TypeTag, MarshalTag(t))
}

// ReadTag reads and deserializes an annotated Tag.
func (s *Store) ReadTag(oid OID) (*Tag, error) {
	objType, data, err := s.Read(oid)
	if err != nil {
		return nil, err
	}
	if objType != TypeTag {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", oid, objType, TypeTag)
	}
	return UnmarshalTag(data)
}
