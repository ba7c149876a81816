package idbmigrate

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

var (
	metaBucket       = []byte("meta")
	schemaVersionKey = []byte("schemaVersion")
)

const valueStructured = 1 << 0

// Target is the destination document store: a Bolt database with one bucket
// per logical store plus a meta bucket holding the schema version.
type Target struct {
	bdb *bbolt.DB
}

// Provision is handed to the schema callback when the target is created (or
// upgraded) and allows it to declare the named stores before any writes.
type Provision struct {
	btx *bbolt.Tx
}

func (pv *Provision) CreateStore(name string) error {
	_, err := pv.btx.CreateBucketIfNotExists([]byte(name))
	return err
}

// OpenTarget opens or creates the target database. When the stored schema
// version is missing or older than version, the provisioning callback runs
// once, inside the same transaction that stamps the new version, so a crash
// mid-provisioning leaves the database unversioned and provisioning reruns.
func OpenTarget(path string, version uint32, provision func(*Provision) error) (*Target, error) {
	bdb, err := bbolt.Open(path, 0666, &bbolt.Options{
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	err = bdb.Update(func(btx *bbolt.Tx) error {
		meta, err := btx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		if cur, ok := storedVersion(meta); ok && cur >= version {
			return nil
		}
		if provision != nil {
			if err := provision(&Provision{btx: btx}); err != nil {
				return fmt.Errorf("schema provisioning: %w", err)
			}
		}
		return meta.Put(schemaVersionKey, binary.BigEndian.AppendUint32(nil, version))
	})
	if err != nil {
		bdb.Close()
		return nil, err
	}
	return &Target{bdb: bdb}, nil
}

func storedVersion(meta *bbolt.Bucket) (uint32, bool) {
	raw := meta.Get(schemaVersionKey)
	if len(raw) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(raw), true
}

func (t *Target) Close() error {
	return t.bdb.Close()
}

// WriteStore runs fn inside one readwrite transaction scoped to the named
// store. An error from an individual Put or Add does not poison the Bolt
// transaction; fn decides per entry whether to continue, and the
// transaction commits unless fn itself fails.
func (t *Target) WriteStore(name string, fn func(stx *StoreTx) error) error {
	return t.bdb.Update(func(btx *bbolt.Tx) error {
		b := btx.Bucket([]byte(name))
		if b == nil {
			return fmt.Errorf("store %q has not been provisioned", name)
		}
		return fn(&StoreTx{name: name, b: b})
	})
}

// ReadStore runs fn inside a read-only transaction scoped to the named store.
func (t *Target) ReadStore(name string, fn func(stx *StoreTx) error) error {
	return t.bdb.View(func(btx *bbolt.Tx) error {
		b := btx.Bucket([]byte(name))
		if b == nil {
			return fmt.Errorf("store %q has not been provisioned", name)
		}
		return fn(&StoreTx{name: name, b: b})
	})
}

// StoreTx is a transaction handle scoped to one logical store.
type StoreTx struct {
	name string
	b    *bbolt.Bucket
}

// Put upserts a record under the given key.
func (stx *StoreTx) Put(key []byte, val DecodedValue) error {
	raw, err := appendStoredValue(nil, val)
	if err != nil {
		return err
	}
	return stx.b.Put(key, raw)
}

// Add inserts a record under the next auto-assigned key, rendered as 8
// big-endian bytes so auto keys stay fixed-width and ordered.
func (stx *StoreTx) Add(val DecodedValue) error {
	seq, err := stx.b.NextSequence()
	if err != nil {
		return err
	}
	return stx.Put(binary.BigEndian.AppendUint64(nil, seq), val)
}

// Get reads a record back. Mostly a consumer and test convenience.
func (stx *StoreTx) Get(key []byte) (DecodedValue, bool, error) {
	raw := stx.b.Get(key)
	if raw == nil {
		return DecodedValue{}, false, nil
	}
	val, err := decodeStoredValue(raw)
	if err != nil {
		return DecodedValue{}, false, err
	}
	return val, true, nil
}

// Count returns the number of records in the store.
func (stx *StoreTx) Count() int {
	return stx.b.Stats().KeyN
}

// appendStoredValue encodes a record value: flags uvarint, then either the
// msgpack encoding of the structured value or the opaque bytes unchanged.
func appendStoredValue(buf []byte, val DecodedValue) ([]byte, error) {
	if val.IsStruct {
		buf = binary.AppendUvarint(buf, valueStructured)
		payload, err := msgpack.Marshal(val.Structured)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %T using MsgPack: %w", val.Structured, err)
		}
		return append(buf, payload...), nil
	}
	buf = binary.AppendUvarint(buf, 0)
	return append(buf, val.Opaque...), nil
}

func decodeStoredValue(raw []byte) (DecodedValue, error) {
	flags, n := binary.Uvarint(raw)
	if n <= 0 {
		return DecodedValue{}, fmt.Errorf("invalid value header: %s", hexstr(raw))
	}
	payload := raw[n:]
	if flags&valueStructured != 0 {
		var v any
		if err := msgpack.Unmarshal(payload, &v); err != nil {
			return DecodedValue{}, fmt.Errorf("failed to decode msgpack value: %w", err)
		}
		return DecodedValue{Structured: v, IsStruct: true}, nil
	}
	return DecodedValue{Opaque: append([]byte(nil), payload...)}, nil
}
