package watch

import (
	"errors"
	"fmt"
)

// FetchCause narrows a fetch failure for reporting.
type FetchCause string

// Fetch failure causes surfaced in logs and the rendered report.
const (
	CauseTimeout    FetchCause = "timeout"
	CauseConnection FetchCause = "connection"
	CauseHTTPStatus FetchCause = "http_status"
	CauseTLS        FetchCause = "tls"
	CauseOversize   FetchCause = "oversize"
)

// FetchError reports a failed page retrieval. It is recovered into a
// FETCH_ERROR run result, never a process failure.
type FetchError struct {
	URL        string
	Cause      FetchCause
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Cause == CauseHTTPStatus {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.Cause, e.Err)
}

// Unwrap exposes the underlying transport error.
func (e *FetchError) Unwrap() error { return e.Err }

// DecodeError reports content that could not be decoded to text.
// Downstream it is treated exactly like a fetch failure.
type DecodeError struct {
	Charset string
	Err     error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Charset != "" {
		return fmt.Sprintf("decode content (charset %q): %v", e.Charset, e.Err)
	}
	return fmt.Sprintf("decode content: %v", e.Err)
}

// Unwrap exposes the underlying decoding error.
func (e *DecodeError) Unwrap() error { return e.Err }

// ErrCorruptState marks a state file that exists but cannot be trusted
// (unparseable, wrong schema version). Loads wrapping it are treated as
// "no prior snapshot" but logged distinctly from a missing file.
var ErrCorruptState = errors.New("corrupt snapshot state")

// IsRecoverable reports whether err should be folded into a FETCH_ERROR
// result rather than aborting the run.
func IsRecoverable(err error) bool {
	var fe *FetchError
	var de *DecodeError
	return errors.As(err, &fe) || errors.As(err, &de)
}
