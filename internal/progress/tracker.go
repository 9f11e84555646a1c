package progress

import (
	"errors"
	"math"
	"sync/atomic"
)

// Unknown is the percentage reported before any progress has been
// observed, and after an operation is aborted.
const Unknown = -1

// ErrAborted is returned by an operation that stopped at a cooperative
// cancellation checkpoint.
var ErrAborted = errors.New("operation aborted")

// Tracker holds the shared progress state for a single operation: a
// percentage and an abort flag. Both are plain atomics so the transfer
// engine can update them from its read loop at high frequency without
// blocking, while any other goroutine reads or requests an abort.
//
// A Tracker is owned by exactly one in-flight operation. Callers that
// need to run a download and an extraction at the same time use one
// Tracker per operation.
type Tracker struct {
	pct   atomic.Int32
	done  atomic.Int64
	abort atomic.Bool
}

// NewTracker returns a Tracker with the percentage set to Unknown and
// the abort flag clear.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.pct.Store(Unknown)

	return t
}

// Update stores the completion percentage for totalSoFar out of
// totalExpected units, rounded half up. The percentage is untouched
// when totalExpected is not positive, and it tolerates repeated or
// decreasing totals: the stored value is always within [0, 100]. The
// processed count is recorded either way.
func (t *Tracker) Update(totalExpected, totalSoFar int64) {
	t.done.Store(totalSoFar)

	if totalExpected <= 0 {
		return
	}

	pct := int32(math.Round(float64(totalSoFar) / float64(totalExpected) * 100))
	if pct < 0 {
		pct = 0
	} else if pct > 100 {
		pct = 100
	}

	t.pct.Store(pct)
}

// Percentage returns the last stored percentage, or Unknown.
func (t *Tracker) Percentage() int {
	return int(t.pct.Load())
}

// Processed returns the units (bytes, entries) last reported through
// Update.
func (t *Tracker) Processed() int64 {
	return t.done.Load()
}

// MarkUnknown resets the percentage to the Unknown sentinel.
func (t *Tracker) MarkUnknown() {
	t.pct.Store(Unknown)
}

// RequestAbort asks the operation using this tracker to stop at its
// next cooperative checkpoint. Safe to call from any goroutine.
func (t *Tracker) RequestAbort() {
	t.abort.Store(true)
}

// ConsumeAbort reports whether an abort was requested and clears the
// flag, so the tracker is ready for reuse once the abort is honored.
func (t *Tracker) ConsumeAbort() bool {
	return t.abort.Swap(false)
}

// Reset clears the abort flag. Operations call it on entry so a stale
// abort request from a previous run cannot cancel a fresh one.
func (t *Tracker) Reset() {
	t.abort.Store(false)
}
