package idbmigrate

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"
)

// maxVarintBytes bounds the bits accumulated for a single prefix field at
// 10 bytes (70 bits), the same cap binary.Uvarint uses. An overlong field
// is garbage anyway; bits past the cap are discarded, but the byte run is
// still consumed to its terminator so the next field starts on a field
// boundary.
const maxVarintBytes = 10

type KeyKind int

const (
	KeyAbsent KeyKind = iota
	KeyText
	KeyNumber
	KeyBytes
)

func (k KeyKind) String() string {
	switch k {
	case KeyAbsent:
		return "absent"
	case KeyText:
		return "text"
	case KeyNumber:
		return "number"
	case KeyBytes:
		return "bytes"
	default:
		return "invalid"
	}
}

// UserKey is the best-effort decode of the bytes following the composite
// prefix. The classification is a heuristic; callers must tolerate
// wrong-typed keys.
type UserKey struct {
	Kind KeyKind
	Text string
	Num  float64
	Raw  []byte
}

// CompositeKey is the decoded form of a source record key: three varint
// identifiers followed by the user key region.
type CompositeKey struct {
	DatabaseID    uint64
	ObjectStoreID uint64
	IndexID       uint64
	UserKey       UserKey
}

// DecodeKey decodes a raw source key. It never fails: if the buffer runs
// out mid-field the partial value accumulated so far is returned for that
// field and the remaining fields are zero, because the source format has no
// self-describing length to validate against.
func DecodeKey(raw []byte) CompositeKey {
	var key CompositeKey
	off := 0
	key.DatabaseID, off = decodeKeyVarint(raw, off)
	key.ObjectStoreID, off = decodeKeyVarint(raw, off)
	key.IndexID, off = decodeKeyVarint(raw, off)
	key.UserKey = decodeUserKey(raw[off:])
	return key
}

// decodeKeyVarint reads one little-endian base-128 field starting at off.
// Unlike binary.Uvarint it returns the partial value on truncation instead
// of reporting an error, and it never reads past len(raw).
func decodeKeyVarint(raw []byte, off int) (uint64, int) {
	var v uint64
	var shift uint
	for n := 0; off < len(raw); n++ {
		b := raw[off]
		off++
		if n < maxVarintBytes {
			v |= uint64(b&0x7F) << shift
			shift += 7
		}
		if b&0x80 == 0 {
			return v, off
		}
	}
	return v, off
}

// AppendKeyPrefix appends the three-field varint prefix to buf. This is the
// encoder counterpart of DecodeKey's prefix pass, used to build source keys
// in fixtures.
func AppendKeyPrefix(buf []byte, databaseID, objectStoreID, indexID uint64) []byte {
	buf = binary.AppendUvarint(buf, databaseID)
	buf = binary.AppendUvarint(buf, objectStoreID)
	return binary.AppendUvarint(buf, indexID)
}

func decodeUserKey(rest []byte) UserKey {
	if len(rest) == 0 {
		return UserKey{Kind: KeyAbsent}
	}
	// A zero first byte is reserved by the source encoding and marks a
	// non-text key.
	if rest[0] != 0 && utf8.Valid(rest) {
		return UserKey{Kind: KeyText, Text: string(rest)}
	}
	if len(rest) <= 8 {
		var be [8]byte
		copy(be[:], rest)
		bits := binary.BigEndian.Uint64(be[:])
		return UserKey{Kind: KeyNumber, Num: math.Float64frombits(bits)}
	}
	return UserKey{Kind: KeyBytes, Raw: append([]byte(nil), rest...)}
}

// BoltKey renders the user key as target store key bytes. Number keys use
// the big-endian bit pattern of the double so that they remain fixed-width
// bolt keys. Returns nil when the record has no usable key and must be
// inserted with an auto-assigned one.
func (uk UserKey) BoltKey() []byte {
	switch uk.Kind {
	case KeyText:
		return []byte(uk.Text)
	case KeyNumber:
		return binary.BigEndian.AppendUint64(nil, math.Float64bits(uk.Num))
	case KeyBytes:
		return uk.Raw
	default:
		return nil
	}
}

func (uk UserKey) String() string {
	switch uk.Kind {
	case KeyText:
		return strconv.Quote(uk.Text)
	case KeyNumber:
		return strconv.FormatFloat(uk.Num, 'g', -1, 64)
	case KeyBytes:
		return hex.EncodeToString(uk.Raw)
	default:
		return "<none>"
	}
}

func (key CompositeKey) String() string {
	return fmt.Sprintf("%d/%d/%d/%s", key.DatabaseID, key.ObjectStoreID, key.IndexID, key.UserKey)
}
