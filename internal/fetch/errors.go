package fetch

import "fmt"

// InvalidRequestError represents a download request rejected before
// any network or filesystem work happens: malformed URLs, or a
// directory destination with no derivable filename.
type InvalidRequestError struct {
	URL    string // The offending URL
	Reason string // Human-readable explanation
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid download request for %s: %s", e.URL, e.Reason)
}

// InitError represents a transport session that could not be
// established within the retry budget. No data was transferred.
type InitError struct {
	URL      string
	Attempts int   // How many attempts were made
	Err      error // Error of the last attempt
}

func (e *InitError) Error() string {
	return fmt.Sprintf("failed to initialize transfer session for %s after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// TransportError represents a network-level failure during the data
// transfer. The destination file has been rolled back.
type TransportError struct {
	URL string
	Err error // Provider error, preserved verbatim
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transfer of %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// EmptyResultError represents a transfer that completed but produced a
// zero-length file, which was removed again.
type EmptyResultError struct {
	URL  string
	Path string // Destination that was rolled back
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("download of %s produced an empty file at %s", e.URL, e.Path)
}
