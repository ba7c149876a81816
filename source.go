package idbmigrate

import (
	"context"
	"errors"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// errStopScan ends an iterate walk early without reporting an error.
var errStopScan = errors.New("stop scan")

// sourceDB wraps a read-only handle on the foreign LevelDB store. The
// migrator owns it exclusively for the duration of one scan.
type sourceDB struct {
	ldb  *leveldb.DB
	path string
}

// openSource opens the source store read-only. Existence of the path is the
// caller's concern; any failure here is a real open failure and maps to
// SourceOpenError. A manifest whose comparer field does not match the
// default comparator is reported by goleveldb as manifest corruption; that
// is the comparator-mismatch case and gets its own remediation message.
func openSource(path string) (*sourceDB, error) {
	ldb, err := leveldb.OpenFile(path, &opt.Options{
		ReadOnly:       true,
		ErrorIfMissing: true,
	})
	if err != nil {
		return nil, &SourceOpenError{
			Path:               path,
			Err:                err,
			ComparatorMismatch: isComparatorMismatch(err),
		}
	}
	return &sourceDB{ldb: ldb, path: path}, nil
}

func isComparatorMismatch(err error) bool {
	return ldberrors.IsCorrupted(err) && strings.Contains(err.Error(), "comparer")
}

// iterate walks every record once, in the engine's native key order, and
// hands fn copies of the key and value bytes (the iterator reuses its
// buffers between steps). fn may return errStopScan to end the walk early
// without reporting an error. Cancellation is checked between steps.
func (src *sourceDB) iterate(ctx context.Context, fn func(rawKey, rawValue []byte) error) error {
	it := src.ldb.NewIterator(nil, nil)
	defer it.Release()
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		k := append([]byte(nil), it.Key()...)
		v := append([]byte(nil), it.Value()...)
		if err := fn(k, v); err != nil {
			if err == errStopScan {
				return nil
			}
			return err
		}
	}
	return it.Error()
}

func (src *sourceDB) close() error {
	return src.ldb.Close()
}
