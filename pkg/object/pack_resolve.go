package object

import "fmt"

// ResolvedObject is a fully materialized object taken from a pack stream,
// independent of whether it arrived as a base entry or a delta chain.
type ResolvedObject struct {
	OID  OID
	Type ObjectType
	Data []byte
}

// ResolvedPackEntry pairs a materialized object with its original byte
// offset in the pack stream, so callers can correlate against a pack index
// built against the same stream.
type ResolvedPackEntry struct {
	Offset uint64
	Object ResolvedObject
}

// ResolvedPackFile is a pack stream with every delta chain already applied.
type ResolvedPackFile struct {
	Checksum OID
	Entries  []ResolvedPackEntry
}

// ReadPackResolved parses a raw pack byte slice and fully resolves every
// delta chain against bases found within the same pack. It is the
// storage-layer counterpart to ReadPack: packs written by this store's own
// GC and indexPack are always delta-free, but packs read back for
// verification may have arrived from elsewhere with deltas intact.
func ReadPackResolved(data []byte) (*ResolvedPackFile, error) {
	pf, err := ReadPack(data)
	if err != nil {
		return nil, err
	}
	resolved, err := ResolvePackEntries(pf, nil)
	if err != nil {
		return nil, err
	}

	entries := make([]ResolvedPackEntry, len(pf.Entries))
	for i, raw := range pf.Entries {
		entries[i] = ResolvedPackEntry{Offset: raw.Offset, Object: resolved[i]}
	}
	return &ResolvedPackFile{Checksum: pf.Checksum, Entries: entries}, nil
}

// ResolvePackEntries walks pack.Entries in stream order and materializes
// every entry into a plain object, applying OFS_DELTA/REF_DELTA chains
// against already-resolved bases. lookupExternal is consulted when a
// REF_DELTA's base OID is not itself present in the pack (the server
// advertises no-thin, so this should not normally trigger for pushes, but
// incoming packs from other implementations are not required to honor it).
// A nil lookupExternal treats any such reference as an error.
func ResolvePackEntries(pack *PackFile, lookupExternal func(OID) (ObjectType, []byte, error)) ([]ResolvedObject, error) {
	byOffset := make(map[uint64]ResolvedObject, len(pack.Entries))
	byOID := make(map[OID]ResolvedObject, len(pack.Entries))
	out := make([]ResolvedObject, len(pack.Entries))

	for i, entry := range pack.Entries {
		resolved, err := resolveEntry(entry, byOffset, byOID, lookupExternal)
		if err != nil {
			return nil, fmt.Errorf("resolve entry %d at offset %d: %w", i, entry.Offset, err)
		}
		byOffset[entry.Offset] = resolved
		byOID[resolved.OID] = resolved
		out[i] = resolved
	}

	return out, nil
}

func resolveEntry(
	entry PackEntry,
	byOffset map[uint64]ResolvedObject,
	byOID map[OID]ResolvedObject,
	lookupExternal func(OID) (ObjectType, []byte, error),
) (ResolvedObject, error) {
	switch entry.Type {
	case PackCommit, PackTree, PackBlob, PackTag:
		objType, ok := packObjectTypeToObjectType(entry.Type)
		if !ok {
			return ResolvedObject{}, fmt.Errorf("unsupported base pack object type %d", entry.Type)
		}
		oid := HashObject(objType, entry.Data)
		return ResolvedObject{OID: oid, Type: objType, Data: entry.Data}, nil

	case PackOfsDelta:
		base, ok := byOffset[entry.BaseOffset]
		if !ok {
			return ResolvedObject{}, fmt.Errorf("ofs-delta base at offset %d not yet resolved", entry.BaseOffset)
		}
		data, err := applyDelta(base.Data, entry.Data)
		if err != nil {
			return ResolvedObject{}, fmt.Errorf("apply ofs-delta: %w", err)
		}
		oid := HashObject(base.Type, data)
		return ResolvedObject{OID: oid, Type: base.Type, Data: data}, nil

	case PackRefDelta:
		base, ok := byOID[entry.BaseOID]
		if !ok {
			if lookupExternal == nil {
				return ResolvedObject{}, fmt.Errorf("ref-delta base %s not found in pack", entry.BaseOID)
			}
			objType, data, err := lookupExternal(entry.BaseOID)
			if err != nil {
				return ResolvedObject{}, fmt.Errorf("ref-delta base %s: %w", entry.BaseOID, err)
			}
			base = ResolvedObject{OID: entry.BaseOID, Type: objType, Data: data}
		}
		data, err := applyDelta(base.Data, entry.Data)
		if err != nil {
			return ResolvedObject{}, fmt.Errorf("apply ref-delta: %w", err)
		}
		oid := HashObject(base.Type, data)
		return ResolvedObject{OID: oid, Type: base.Type, Data: data}, nil

	default:
		return ResolvedObject{}, fmt.Errorf("unknown pack object type %d", entry.Type)
	}
}
