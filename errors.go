package idbmigrate

import "fmt"

// SourceOpenError means the source database exists but could not be opened.
// The common cause is Chromium's private idb_cmp1 record comparator, which
// the embedded LevelDB reader cannot interpret; that case carries a
// remediation hint because the user can work around it (export from the
// browser and re-import) while we cannot.
type SourceOpenError struct {
	Path               string
	Err                error
	ComparatorMismatch bool
}

func (e *SourceOpenError) Unwrap() error {
	return e.Err
}

func (e *SourceOpenError) Error() string {
	if e.ComparatorMismatch {
		return fmt.Sprintf("source database %s uses an unsupported record comparator; export the data from the browser and re-import it instead: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("cannot open source database %s: %v", e.Path, e.Err)
}

// TargetOpenError means the destination store could not be created or
// opened. Always fatal to the run.
type TargetOpenError struct {
	Path string
	Err  error
}

func (e *TargetOpenError) Unwrap() error {
	return e.Err
}

func (e *TargetOpenError) Error() string {
	return fmt.Sprintf("cannot open target database %s: %v", e.Path, e.Err)
}
