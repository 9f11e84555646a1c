package unpack

import "fmt"

// OpenError reports an archive that could not be opened at all; no
// entries were processed.
type OpenError struct {
	Path string // Archive path that failed to open
	Err  error  // Underlying error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("unable to open archive %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// EntryFailure records one archive entry that could not be extracted.
type EntryFailure struct {
	Name string // Entry name as stored in the archive
	Err  error  // What went wrong for this entry
}

// PartialError reports an extraction that ran to the end of the
// archive but failed on one or more individual entries. Entries that
// extracted cleanly are on disk; the failed ones are listed here.
type PartialError struct {
	Archive  string
	Failures []EntryFailure
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("extracted %s with %d failed entries", e.Archive, len(e.Failures))
}
