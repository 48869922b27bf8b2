package object

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// HashObject computes the SHA-1 of the canonical Git envelope
// "<type> <len>\0<content>" and returns it as a lowercase-hex OID.
func HashObject(objType ObjectType, data []byte) OID {
	h := sha1.New()
	fmt.Fprintf(h, "%s %d\x00", objType, len(data))
	h.Write(data)
	return OID(hex.EncodeToString(h.Sum(nil)))
}

func oidToBytes(o OID) ([]byte, error) {
	if len(o) != 40 {
		return nil, fmt.Errorf("oid length must be 40 hex chars, got %d", len(o))
	}
	raw, err := hex.DecodeString(string(o))
	if err != nil {
		return nil, fmt.Errorf("invalid oid %q: %w", o, err)
	}
	return raw, nil
}

func bytesToOID(raw []byte) OID {
	return OID(hex.EncodeToString(raw))
}
