package object

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// UnpackError wraps a structural failure encountered while indexing an
// inbound packfile. receive-pack surfaces its message verbatim in the
// "unpack <msg>" report-status line.
type UnpackError struct {
	Msg string
}

func (e *UnpackError) Error() string { return e.Msg }

func unpackFailed(format string, args ...any) error {
	return &UnpackError{Msg: fmt.Sprintf(format, args...)}
}

// IndexPack verifies and indexes a raw inbound pack stream: signature,
// version, declared object count, delta resolution against objects found
// either within the pack or already present in the store (the server
// advertises no-thin, but a push from another implementation is not
// required to honor that), and the trailing SHA-1. On success it stages the
// pack and its companion .idx and publishes both via atomic rename so a
// reader never observes a pack without its index. On any structural
// problem it returns an *UnpackError and leaves no new file visible under
// objects/pack.
func (s *Store) IndexPack(raw []byte) (oid OID, objectCount int, err error) {
	pf, parseErr := ReadPack(raw)
	if parseErr != nil {
		return "", 0, unpackFailed("%s", parseErr.Error())
	}

	resolved, resolveErr := ResolvePackEntries(pf, func(want OID) (ObjectType, []byte, error) {
		return s.Read(want)
	})
	if resolveErr != nil {
		return "", 0, unpackFailed("%s", resolveErr.Error())
	}

	packDir := filepath.Join(s.root, "objects", "pack")
	if err := os.MkdirAll(packDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("index pack: mkdir pack dir: %w", err)
	}

	packTmp, err := os.CreateTemp(packDir, ".tmp-pack-*.pack")
	if err != nil {
		return "", 0, fmt.Errorf("index pack: create pack temp file: %w", err)
	}
	packTmpPath := packTmp.Name()
	packTmpRemoved := false
	defer func() {
		if !packTmpRemoved {
			_ = os.Remove(packTmpPath)
		}
	}()

	pw, err := NewPackWriter(packTmp, uint32(len(resolved)))
	if err != nil {
		_ = packTmp.Close()
		return "", 0, fmt.Errorf("index pack: create pack writer: %w", err)
	}

	indexEntries := make([]PackIndexEntry, 0, len(resolved))
	for _, obj := range resolved {
		packType, ok := objectTypeToPackObjectType(obj.Type)
		if !ok {
			_ = packTmp.Close()
			return "", 0, unpackFailed("unsupported resolved object type %q for %s", obj.Type, obj.OID)
		}
		offset := pw.CurrentOffset()
		if err := pw.WriteEntry(packType, obj.Data); err != nil {
			_ = packTmp.Close()
			return "", 0, fmt.Errorf("index pack: write pack entry %s: %w", obj.OID, err)
		}
		indexEntries = append(indexEntries, PackIndexEntry{OID: obj.OID, Offset: offset})
	}

	packChecksum, err := pw.Finish()
	if err != nil {
		_ = packTmp.Close()
		return "", 0, fmt.Errorf("index pack: finalize pack: %w", err)
	}
	if err := packTmp.Close(); err != nil {
		return "", 0, fmt.Errorf("index pack: close pack temp file: %w", err)
	}

	packBase := "pack-" + string(packChecksum)
	packPath := filepath.Join(packDir, packBase+".pack")
	idxPath := filepath.Join(packDir, packBase+".idx")

	idxTmp, err := os.CreateTemp(packDir, ".tmp-pack-*.idx")
	if err != nil {
		return "", 0, fmt.Errorf("index pack: create index temp file: %w", err)
	}
	idxTmpPath := idxTmp.Name()
	idxTmpRemoved := false
	defer func() {
		if !idxTmpRemoved {
			_ = os.Remove(idxTmpPath)
		}
	}()

	if _, err := WritePackIndex(idxTmp, indexEntries, packChecksum); err != nil {
		_ = idxTmp.Close()
		return "", 0, fmt.Errorf("index pack: write pack index: %w", err)
	}
	if err := idxTmp.Close(); err != nil {
		return "", 0, fmt.Errorf("index pack: close index temp file: %w", err)
	}

	// Publish pack before idx so a reader that races the rename never sees
	// a dangling idx pointing at a still-staged pack; conversely a pack
	// with no idx yet is simply invisible to readFromPacks.
	if err := os.Rename(packTmpPath, packPath); err != nil {
		return "", 0, fmt.Errorf("index pack: rename pack file: %w", err)
	}
	packTmpRemoved = true

	if err := os.Rename(idxTmpPath, idxPath); err != nil {
		_ = os.Remove(packPath)
		return "", 0, fmt.Errorf("index pack: rename index file: %w", err)
	}
	idxTmpRemoved = true

	return packChecksum, len(resolved), nil
}

// PackObjects emits a valid PACK v2 stream containing exactly the given
// OIDs, each written as a non-delta (full) entry, terminated by the
// trailing SHA-1. The header object count equals len(oids).
func (s *Store) PackObjects(oids []OID) ([]byte, error) {
	var buf bytes.Buffer

	pw, err := NewPackWriter(&buf, uint32(len(oids)))
	if err != nil {
		return nil, fmt.Errorf("pack objects: create writer: %w", err)
	}
	for _, oid := range oids {
		objType, data, err := s.Read(oid)
		if err != nil {
			return nil, fmt.Errorf("pack objects: read %s: %w", oid, err)
		}
		packType, ok := objectTypeToPackObjectType(objType)
		if !ok {
			return nil, fmt.Errorf("pack objects: unsupported type %q for %s", objType, oid)
		}
		if err := pw.WriteEntry(packType, data); err != nil {
			return nil, fmt.Errorf("pack objects: write %s: %w", oid, err)
		}
	}
	if _, err := pw.Finish(); err != nil {
		return nil, fmt.Errorf("pack objects: finish: %w", err)
	}

	return buf.Bytes(), nil
}
