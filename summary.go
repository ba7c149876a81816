package idbmigrate

// Summary is the result of one migration run. It is always produced, even
// when the run aborts on a fatal open error; in that case the counts cover
// whatever work happened before the abort.
type Summary struct {
	// TotalEntries is the number of raw records seen in the source.
	TotalEntries int
	// ParsedEntries is the number of records whose store id resolved to a
	// logical store and that entered a store buffer.
	ParsedEntries int
	// SkippedEntries counts records belonging to unmapped stores. Nonzero
	// is normal: the source database keeps internal bookkeeping stores we
	// have no interest in.
	SkippedEntries int
	// SyncedEntries is the number of records durably written to the target.
	SyncedEntries int

	PerStoreCounts map[string]int

	// Warnings preserves per-record and per-store problems in the order
	// they occurred. None of them aborted the run.
	Warnings []string
}

func newSummary() *Summary {
	return &Summary{PerStoreCounts: make(map[string]int)}
}

// Ok reports whether the run synced anything, for callers that only want a
// boolean outcome.
func (s *Summary) Ok() bool {
	return s.SyncedEntries > 0
}
