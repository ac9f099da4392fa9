// Package record implements the on-disk codec for a single vector storage
// slot: the PointOffset key and the StoredRecord value (C4 in SPEC_FULL.md).
//
// Both directions are little-endian; the value is length-prefixed and packs
// float32s the same way sqlite-vec/serialize.go does. The value format is not part of the
// public contract across deployments (SPEC_FULL.md §9 Open Questions) but
// is stable for the lifetime of a given storage file.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"golang.org/x/crypto/blake2b"
)

// ErrCorrupt is returned when a decoded record fails its checksum.
var ErrCorrupt = errors.New("record: checksum mismatch")

// EncodeKey returns the canonical little-endian encoding of a PointOffset.
func EncodeKey(id uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, id)
	return buf
}

// DecodeKey reverses EncodeKey.
func DecodeKey(key []byte) (uint32, error) {
	if len(key) != 4 {
		return 0, fmt.Errorf("record: key must be 4 bytes, got %d", len(key))
	}
	return binary.LittleEndian.Uint32(key), nil
}

// StoredRecord is the durable representation of one vector slot.
type StoredRecord struct {
	Deleted bool
	Vector  []float32
}

// checksumSize is the length, in bytes, of the truncated blake2b digest
// appended to every encoded value.
const checksumSize = 8

// Encode serializes a StoredRecord as:
//
//	[1 byte deleted flag][4 byte LE vector length][4*len bytes LE float32][8 byte checksum]
func Encode(r StoredRecord) []byte {
	n := len(r.Vector)
	body := make([]byte, 1+4+4*n)
	if r.Deleted {
		body[0] = 1
	}
	binary.LittleEndian.PutUint32(body[1:5], uint32(n))
	for i, v := range r.Vector {
		binary.LittleEndian.PutUint32(body[5+4*i:], math.Float32bits(v))
	}

	sum := blake2b.Sum256(body)
	out := make([]byte, len(body)+checksumSize)
	copy(out, body)
	copy(out[len(body):], sum[:checksumSize])
	return out
}

// Decode reverses Encode, verifying the trailing checksum.
func Decode(data []byte) (StoredRecord, error) {
	if len(data) < 5+checksumSize {
		return StoredRecord{}, fmt.Errorf("record: value too short (%d bytes)", len(data))
	}
	body := data[:len(data)-checksumSize]
	want := data[len(data)-checksumSize:]

	sum := blake2b.Sum256(body)
	if string(sum[:checksumSize]) != string(want) {
		return StoredRecord{}, ErrCorrupt
	}

	deleted := body[0] != 0
	n := binary.LittleEndian.Uint32(body[1:5])
	if uint32(len(body)) != 5+4*n {
		return StoredRecord{}, fmt.Errorf("record: length prefix %d inconsistent with body size %d", n, len(body))
	}

	vec := make([]float32, n)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[5+4*i:]))
	}
	return StoredRecord{Deleted: deleted, Vector: vec}, nil
}
