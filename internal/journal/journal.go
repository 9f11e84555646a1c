// Package journal appends timestamped log lines to a file on the
// target device. It implements slog.Handler so it can be fanned out
// next to the structured stdout handler.
//
// The file is opened per record in append mode and a mutex serializes
// writers, so log lines from the transfer engine's goroutine and the
// caller's never interleave. If the log destination cannot be opened
// the record is dropped silently; logging must never take down an
// operation.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

type Handler struct {
	path  string
	level slog.Leveler

	mu    *sync.Mutex
	attrs []slog.Attr
	group string
}

// NewHandler returns a handler appending to the file at path. Records
// below level are discarded.
func NewHandler(path string, level slog.Leveler) *Handler {
	return &Handler{
		path:  path,
		level: level,
		mu:    &sync.Mutex{},
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", r.Time.Format(time.RFC3339), r.Message)

	for _, a := range h.attrs {
		h.writeAttr(&b, a)
	}

	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&b, a)

		return true
	})

	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		// Log destination unavailable; drop the record.
		return nil
	}
	defer f.Close()

	_, _ = f.WriteString(b.String())

	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)

	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	clone := *h
	if clone.group != "" {
		clone.group += "."
	}

	clone.group += name

	return &clone
}

func (h *Handler) writeAttr(b *strings.Builder, a slog.Attr) {
	key := a.Key
	if h.group != "" {
		key = h.group + "." + key
	}

	fmt.Fprintf(b, " %s=%v", key, a.Value)
}
