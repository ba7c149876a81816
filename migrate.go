package idbmigrate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// DecodedEntry is one migrated record. Entries live only inside a run's
// per-store buffers; the target store is the durable sink.
type DecodedEntry struct {
	StoreName string
	Key       UserKey
	Value     DecodedValue
}

// Options configures a Migrator. The zero value is usable: default store
// map, default logger, schema provisioning derived from the store map, no
// scan cap.
type Options struct {
	// Logger is the structured event sink the migrator reports to.
	// Defaults to slog.Default().
	Logger *slog.Logger

	// Stores overrides the object-store-id table. Defaults to
	// DefaultStoreMap().
	Stores *StoreMap

	// TargetVersion is the schema version stamped into the target.
	// Defaults to 1.
	TargetVersion uint32

	// Provision is invoked once if the target database does not exist yet
	// (or carries an older schema version). The consumer of the migrated
	// data owns the target schema; the default callback simply creates a
	// store per mapped name.
	Provision func(*Provision) error

	// MaxRecords caps the number of source records scanned, as a resource
	// safety bound. 0 means no cap. Hitting the cap stops the scan with a
	// warning and the records read so far are still migrated.
	MaxRecords int
}

// Migrator performs a one-shot batch migration from a source IndexedDB
// backing store into a target document store. It is single-use: one scan,
// one target, strictly sequential store writes.
type Migrator struct {
	sourcePath string
	targetPath string
	stores     *StoreMap
	log        *slog.Logger
	opt        Options
}

func NewMigrator(sourcePath, targetPath string, opt Options) *Migrator {
	m := &Migrator{
		sourcePath: sourcePath,
		targetPath: targetPath,
		stores:     opt.Stores,
		log:        opt.Logger,
		opt:        opt,
	}
	if m.stores == nil {
		m.stores = DefaultStoreMap()
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.opt.TargetVersion == 0 {
		m.opt.TargetVersion = 1
	}
	return m
}

// Run executes the migration and always returns a summary. The returned
// error is non-nil only for the two fatal conditions, an unopenable source
// (SourceOpenError) or an unopenable target (TargetOpenError), and for
// context cancellation; every other problem degrades into Summary.Warnings.
// A missing source path is a normal outcome, not an error: there is nothing
// to migrate.
func (m *Migrator) Run(ctx context.Context) (*Summary, error) {
	summary := newSummary()

	if _, err := os.Stat(m.sourcePath); err != nil {
		m.warnf(summary, "source database not found at %s, nothing to migrate", m.sourcePath)
		return summary, nil
	}

	src, err := openSource(m.sourcePath)
	if err != nil {
		return summary, err
	}

	buffers, scanErr := m.scan(ctx, src, summary)
	if cerr := src.close(); cerr != nil {
		m.warnf(summary, "closing source database: %v", cerr)
	}
	if scanErr != nil {
		return summary, scanErr
	}

	for name, entries := range buffers {
		summary.PerStoreCounts[name] = len(entries)
	}

	provision := m.opt.Provision
	if provision == nil {
		names := m.stores.Names()
		provision = func(pv *Provision) error {
			for _, name := range names {
				if err := pv.CreateStore(name); err != nil {
					return err
				}
			}
			return nil
		}
	}

	tgt, err := OpenTarget(m.targetPath, m.opt.TargetVersion, provision)
	if err != nil {
		return summary, &TargetOpenError{Path: m.targetPath, Err: err}
	}
	defer tgt.Close()

	// Stores are written strictly sequentially, in store map order, one
	// transaction per store. Writes to a store never begin before the
	// previous store's transaction has completed.
	for _, name := range m.stores.Names() {
		entries := buffers[name]
		if len(entries) == 0 {
			continue
		}
		synced := 0
		err := tgt.WriteStore(name, func(stx *StoreTx) error {
			for _, e := range entries {
				if err := m.writeEntry(stx, e); err != nil {
					m.warnf(summary, "store %s: failed to write entry %s: %v", name, e.Key, err)
					continue
				}
				synced++
			}
			return nil
		})
		if err != nil {
			m.warnf(summary, "store %s: transaction failed, %d entries lost: %v", name, len(entries), err)
			continue
		}
		summary.SyncedEntries += synced
		m.log.Info("store migrated", slog.String("store", name), slog.Int("entries", synced))
	}

	m.log.Info("migration complete",
		slog.Int("total", summary.TotalEntries),
		slog.Int("parsed", summary.ParsedEntries),
		slog.Int("skipped", summary.SkippedEntries),
		slog.Int("synced", summary.SyncedEntries),
		slog.Int("warnings", len(summary.Warnings)))
	return summary, nil
}

// scan walks the whole source once, decoding and grouping entries per
// logical store. All decoded entries are held in memory until writing
// begins; that is a known constraint of the batch design, bounded only by
// Options.MaxRecords.
func (m *Migrator) scan(ctx context.Context, src *sourceDB, summary *Summary) (map[string][]DecodedEntry, error) {
	buffers := make(map[string][]DecodedEntry)
	err := src.iterate(ctx, func(rawKey, rawValue []byte) error {
		if m.opt.MaxRecords > 0 && summary.TotalEntries >= m.opt.MaxRecords {
			m.warnf(summary, "scan stopped at the %d record cap", m.opt.MaxRecords)
			return errStopScan
		}
		summary.TotalEntries++
		m.scanEntry(rawKey, rawValue, buffers, summary)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return buffers, err
		}
		// An iterator-level failure ends the scan but the entries decoded
		// so far are still worth migrating.
		m.warnf(summary, "source scan ended early: %v", err)
	}
	return buffers, nil
}

// scanEntry decodes one record. Decoding is total by construction, but one
// bad record must never abort the scan, so a panic from any codec is
// contained here and recorded as a warning.
func (m *Migrator) scanEntry(rawKey, rawValue []byte, buffers map[string][]DecodedEntry, summary *Summary) {
	defer func() {
		if r := recover(); r != nil {
			m.warnf(summary, "failed to decode entry with key %s: %v", hexstr(rawKey), r)
		}
	}()

	key := DecodeKey(rawKey)
	name, ok := m.stores.Resolve(key.ObjectStoreID)
	if !ok {
		summary.SkippedEntries++
		m.log.Debug("skipping entry of unmapped store",
			slog.Uint64("objectStoreId", key.ObjectStoreID), hexAttr("key", rawKey))
		return
	}

	val := DecodeValue(rawValue)
	if !val.IsStruct {
		m.log.Debug("value kept opaque",
			slog.String("store", name), slog.String("key", key.UserKey.String()),
			slog.Int("len", len(val.Opaque)))
	}
	buffers[name] = append(buffers[name], DecodedEntry{StoreName: name, Key: key.UserKey, Value: val})
	summary.ParsedEntries++
}

// writeEntry upserts keyed entries and falls back to an auto-keyed insert
// when the decoded user key is absent or unusable.
func (m *Migrator) writeEntry(stx *StoreTx, e DecodedEntry) error {
	if key := e.Key.BoltKey(); len(key) > 0 {
		return stx.Put(key, e.Value)
	}
	return stx.Add(e.Value)
}

func (m *Migrator) warnf(summary *Summary, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	summary.Warnings = append(summary.Warnings, msg)
	m.log.Warn(msg)
}
