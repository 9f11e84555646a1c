// Package unpack expands a zip archive into a directory tree on a
// storage-constrained target, with a cooperative cancellation
// checkpoint between entries.
package unpack

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fetchkit/fetchkit/internal/logctx"
	"github.com/fetchkit/fetchkit/internal/progress"
)

const (
	copyBufferSize = 4096
	dirPerm        = 0o755
	filePerm       = 0o644

	// Entry paths ending in this marker are artifacts of truncated
	// names and are skipped rather than written.
	truncatedMarker = "..."
)

// Extractor expands archives entry by entry. The zero value is usable.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract expands the archive at archivePath under destDir. It blocks
// until the archive is exhausted, an abort is observed, or the archive
// itself cannot be read.
//
// Individual entry failures do not stop the run: the remaining entries
// are still extracted and the failures are reported together as a
// *PartialError. An abort requested on the tracker is honored between
// entries and returns progress.ErrAborted; entries already written
// stay on disk.
func (e *Extractor) Extract(ctx context.Context, archivePath, destDir string, tracker *progress.Tracker) error {
	logger := logctx.LoggerFromContext(ctx)

	if tracker == nil {
		tracker = progress.NewTracker()
	}

	tracker.Reset()

	archive, err := zip.OpenReader(archivePath)
	if err != nil {
		logger.Error("failed to open archive", "archive", archivePath, "err", err)

		return &OpenError{Path: archivePath, Err: err}
	}
	defer archive.Close()

	if !strings.HasSuffix(destDir, "/") {
		destDir += "/"
	}

	var failures []EntryFailure

	total := int64(len(archive.File))
	buf := make([]byte, copyBufferSize)

	for i, entry := range archive.File {
		if err := ctx.Err(); err != nil {
			tracker.MarkUnknown()

			return err
		}

		if tracker.ConsumeAbort() {
			tracker.MarkUnknown()
			logger.Info("extraction aborted", "archive", archivePath, "entries_done", i)

			return progress.ErrAborted
		}

		if err := e.extractEntry(entry, destDir, buf); err != nil {
			logger.Error("failed to extract entry", "archive", archivePath, "entry", entry.Name, "err", err)

			failures = append(failures, EntryFailure{Name: entry.Name, Err: err})
		}

		tracker.Update(total, int64(i+1))
	}

	if len(failures) > 0 {
		return &PartialError{Archive: archivePath, Failures: failures}
	}

	logger.Info("extraction complete", "archive", archivePath, "entries", total, "target", destDir)

	return nil
}

// extractEntry writes a single entry beneath destDir. A nil return
// means the entry was either written or deliberately skipped.
func (e *Extractor) extractEntry(entry *zip.File, destDir string, buf []byte) error {
	if entry.Name == "" {
		return nil
	}

	target := destDir + entry.Name
	if strings.HasSuffix(target, truncatedMarker) {
		return nil
	}

	target = SanitizePath(target)

	// Directory entries are never materialized on their own; the
	// directories that matter are created below for each file.
	if strings.HasSuffix(target, "/") {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	in, err := entry.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer out.Close()

	// The writer is wrapped so io.CopyBuffer cannot bypass buf via
	// the file's ReadFrom; entries stream through in fixed chunks.
	if _, err := io.CopyBuffer(struct{ io.Writer }{out}, in, buf); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}

	return nil
}
