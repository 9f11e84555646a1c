package progress

import (
	"context"
	"io"
)

// Reader wraps an io.Reader and feeds a Tracker as bytes flow through.
// It is the cooperative cancellation checkpoint for a transfer: before
// every read it polls the tracker's abort flag and the context, so an
// in-flight chunk always completes before a cancellation takes effect.
type Reader struct {
	ctx     context.Context
	reader  io.Reader
	total   int64
	read    int64
	tracker *Tracker
}

// NewReader returns a Reader reporting progress against total expected
// bytes. A total of zero or less disables percentage updates but keeps
// the cancellation checkpoints.
func NewReader(ctx context.Context, r io.Reader, total int64, tracker *Tracker) *Reader {
	return &Reader{
		ctx:     ctx,
		reader:  r,
		total:   total,
		tracker: tracker,
	}
}

func (pr *Reader) Read(p []byte) (int, error) {
	if err := pr.ctx.Err(); err != nil {
		pr.tracker.MarkUnknown()

		return 0, err
	}

	if pr.tracker.ConsumeAbort() {
		pr.tracker.MarkUnknown()

		return 0, ErrAborted
	}

	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.read += int64(n)
		pr.tracker.Update(pr.total, pr.read)
	}

	return n, err
}
