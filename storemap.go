package idbmigrate

import "sort"

// StoreMap maps the source engine's numeric object store ids to logical
// store names. The default table is a reconstruction of the sequential ids
// the source engine assigned on schema creation, not a protocol guarantee,
// which is why it lives in data rather than in the decode logic and can be
// replaced wholesale through Options.Stores.
type StoreMap struct {
	Version string
	names   map[uint64]string
}

// NewStoreMap builds a StoreMap from an explicit id to name table.
func NewStoreMap(version string, names map[uint64]string) *StoreMap {
	m := make(map[uint64]string, len(names))
	for id, name := range names {
		m[id] = name
	}
	return &StoreMap{Version: version, names: m}
}

// DefaultStoreMap returns the store table of the dictionary database schema.
func DefaultStoreMap() *StoreMap {
	return NewStoreMap("dict-v1", map[uint64]string{
		1: "dictionaries",
		2: "terms",
		3: "kanji",
		4: "termMeta",
		5: "kanjiMeta",
		6: "tagMeta",
		7: "media",
	})
}

// Resolve returns the logical name for an object store id. A miss is the
// expected outcome for the source database's auxiliary stores and is never
// an error.
func (sm *StoreMap) Resolve(id uint64) (string, bool) {
	name, ok := sm.names[id]
	return name, ok
}

// Names returns all logical store names in ascending id order. This is the
// order stores are provisioned and written in.
func (sm *StoreMap) Names() []string {
	ids := make([]uint64, 0, len(sm.names))
	for id := range sm.names {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = sm.names[id]
	}
	return names
}
