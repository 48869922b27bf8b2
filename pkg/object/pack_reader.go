package object

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// PackEntry represents one raw (possibly still-deltified) object entry in a
// pack stream, as read straight off the wire.
type PackEntry struct {
	Offset     uint64
	Type       PackObjectType
	Size       uint64 // size of Data for base entries, size of the delta for delta entries
	Data       []byte // decompressed payload: object bytes, or delta instructions
	BaseOffset uint64 // valid when Type == PackOfsDelta
	BaseOID    OID    // valid when Type == PackRefDelta
}

// IsDelta reports whether the entry must be resolved against a base object.
func (e PackEntry) IsDelta() bool {
	return e.Type == PackOfsDelta || e.Type == PackRefDelta
}

// PackFile is the decoded content of a full pack stream, with delta entries
// left unresolved (see ResolvePackEntries).
type PackFile struct {
	Header   PackHeader
	Entries  []PackEntry
	Checksum OID
}

// ReadPack parses a full pack file byte slice, verifies the trailing SHA-1
// checksum, and returns the still-possibly-deltified entries in stream
// order along with their byte offsets (needed to resolve OFS_DELTA bases).
func ReadPack(data []byte) (*PackFile, error) {
	if len(data) < packHeaderSize+sha1.Size {
		return nil, fmt.Errorf("pack too short: %d", len(data))
	}

	payload := data[:len(data)-sha1.Size]
	trailer := data[len(data)-sha1.Size:]

	sum := sha1.Sum(payload)
	if !bytes.Equal(sum[:], trailer) {
		return nil, fmt.Errorf("pack checksum mismatch")
	}

	header, err := UnmarshalPackHeader(payload[:packHeaderSize])
	if err != nil {
		return nil, err
	}

	offset := packHeaderSize
	entries := make([]PackEntry, 0, header.NumObjects)
	for i := uint32(0); i < header.NumObjects; i++ {
		entryStart := uint64(offset)
		objType, size, n, err := decodePackEntryHeaderStrict(payload[offset:])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		offset += n

		entry := PackEntry{Offset: entryStart, Type: objType, Size: size}

		switch objType {
		case PackOfsDelta:
			dist, consumed, err := decodeOfsDeltaDistance(payload[offset:])
			if err != nil {
				return nil, fmt.Errorf("entry %d: ofs-delta distance: %w", i, err)
			}
			if dist > entryStart {
				return nil, fmt.Errorf("entry %d: ofs-delta base before pack start", i)
			}
			entry.BaseOffset = entryStart - dist
			offset += consumed
		case PackRefDelta:
			if offset+20 > len(payload) {
				return nil, fmt.Errorf("entry %d: ref-delta base oid truncated", i)
			}
			entry.BaseOID = bytesToOID(payload[offset : offset+20])
			offset += 20
		}

		if offset >= len(payload) {
			return nil, fmt.Errorf("entry %d: missing compressed payload", i)
		}

		sub := bytes.NewReader(payload[offset:])
		zr, err := zlib.NewReader(sub)
		if err != nil {
			return nil, fmt.Errorf("entry %d: zlib reader: %w", i, err)
		}
		raw, err := io.ReadAll(zr)
		if err != nil {
			_ = zr.Close()
			return nil, fmt.Errorf("entry %d: decompress: %w", i, err)
		}
		if err := zr.Close(); err != nil {
			return nil, fmt.Errorf("entry %d: close zlib stream: %w", i, err)
		}
		if uint64(len(raw)) != size {
			return nil, fmt.Errorf("entry %d: size mismatch header=%d decoded=%d", i, size, len(raw))
		}

		consumed := len(payload[offset:]) - sub.Len()
		offset += consumed
		entry.Data = raw

		entries = append(entries, entry)
	}

	if offset != len(payload) {
		return nil, fmt.Errorf("pack has trailing undecoded bytes: %d", len(payload)-offset)
	}

	return &PackFile{
		Header:   *header,
		Entries:  entries,
		Checksum: bytesToOID(trailer),
	}, nil
}

// ReadPackFromReader reads a complete pack stream from r and delegates to
// ReadPack for decode and verification.
func ReadPackFromReader(r io.Reader) (*PackFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pack stream: %w", err)
	}
	return ReadPack(data)
}

func decodePackEntryHeaderStrict(data []byte) (PackObjectType, uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, 0, fmt.Errorf("entry header truncated")
	}

	b := data[0]
	objType := PackObjectType((b >> 4) & 0x7)
	size := uint64(b & 0x0f)
	shift := uint(4)
	consumed := 1

	for b&0x80 != 0 {
		if consumed >= len(data) {
			return 0, 0, 0, fmt.Errorf("entry header truncated")
		}
		b = data[consumed]
		size |= uint64(b&0x7f) << shift
		shift += 7
		consumed++
	}

	return objType, size, consumed, nil
}

func packObjectTypeToObjectType(t PackObjectType) (ObjectType, bool) {
	switch t {
	case PackCommit:
		return TypeCommit, true
	case PackTree:
		return TypeTree, true
	case PackBlob:
		return TypeBlob, true
	case PackTag:
		return TypeTag, true
	default:
		return "", false
	}
}

func objectTypeToPackObjectType(t ObjectType) (PackObjectType, bool) {
	switch t {
	case TypeCommit:
		return PackCommit, true
	case TypeTree:
		return PackTree, true
	case TypeBlob:
		return PackBlob, true
	case TypeTag:
		return PackTag, true
	default:
		return 0, false
	}
}
