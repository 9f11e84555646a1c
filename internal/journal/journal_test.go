package journal_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetchkit/fetchkit/internal/journal"
)

func TestHandlerAppendsTimestampedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	logger := slog.New(journal.NewHandler(path, slog.LevelInfo))

	logger.Info("download complete", "url", "http://example.com/a.zip")
	logger.Info("second line")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)

	assert.True(t, strings.HasPrefix(lines[0], "["), "lines start with a timestamp")
	assert.Contains(t, lines[0], "] download complete")
	assert.Contains(t, lines[0], "url=http://example.com/a.zip")
	assert.Contains(t, lines[1], "second line")
}

func TestHandlerRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	logger := slog.New(journal.NewHandler(path, slog.LevelInfo))

	logger.Debug("too quiet to record")

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "filtered records must not create the file")
}

func TestHandlerCarriesBoundAttrs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	logger := slog.New(journal.NewHandler(path, slog.LevelInfo)).With("job_id", "42")

	logger.Info("running")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "job_id=42")
}

func TestHandlerSwallowsUnopenableDestination(t *testing.T) {
	logger := slog.New(journal.NewHandler(filepath.Join(t.TempDir(), "no", "such", "dir", "j.log"), slog.LevelInfo))

	assert.NotPanics(t, func() {
		logger.Info("dropped silently")
	})
}

func TestHandlerSerializesConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	logger := slog.New(journal.NewHandler(path, slog.LevelInfo))

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < 20; j++ {
				logger.Info("concurrent append")
			}
		}()
	}

	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Len(t, lines, 160)

	for _, line := range lines {
		assert.Contains(t, line, "concurrent append", "lines must not interleave")
	}
}
