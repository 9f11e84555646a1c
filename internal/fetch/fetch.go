// Package fetch downloads a single resource over HTTP to local
// storage. Transfers block the caller, report progress through a
// tracker, honor cooperative cancellation at the read cadence, and
// never leave a partial or empty file behind.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/fetchkit/fetchkit/internal/logctx"
	"github.com/fetchkit/fetchkit/internal/progress"
	"github.com/fetchkit/fetchkit/internal/retry"
)

const (
	defaultBufferSize   = 4096
	defaultInitAttempts = 3
	dirPerm             = 0o755

	// Some mirrors refuse requests without a browser user agent.
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Options configures a Fetcher. Zero values fall back to defaults.
type Options struct {
	// Client is the HTTP client driving transfers. The default client
	// follows redirects, which downloads rely on.
	Client *http.Client

	// UserAgent is sent with every request.
	UserAgent string

	// BufferSize is the chunk size for streaming the body to disk.
	BufferSize int

	// InitAttempts bounds the retries around establishing the
	// transfer session. The data transfer itself is never retried.
	InitAttempts uint
}

type Fetcher struct {
	client       *http.Client
	userAgent    string
	bufferSize   int
	initAttempts uint
}

func New(opts Options) *Fetcher {
	f := &Fetcher{
		client:       opts.Client,
		userAgent:    opts.UserAgent,
		bufferSize:   opts.BufferSize,
		initAttempts: opts.InitAttempts,
	}

	if f.client == nil {
		f.client = &http.Client{}
	}

	if f.userAgent == "" {
		f.userAgent = defaultUserAgent
	}

	if f.bufferSize <= 0 {
		f.bufferSize = defaultBufferSize
	}

	if f.initAttempts == 0 {
		f.initAttempts = defaultInitAttempts
	}

	return f
}

// Download fetches url to destination and blocks until the transfer
// completes, fails, or is cancelled through the tracker or the
// context. A destination ending in a path separator is treated as a
// directory and the filename is taken from the URL.
//
// On any failure, including cancellation, no destination file is left
// behind. Cancellation is reported as progress.ErrAborted and resets
// the tracker's percentage to unknown.
func (f *Fetcher) Download(ctx context.Context, url, destination string, tracker *progress.Tracker) error {
	logger := logctx.LoggerFromContext(ctx)

	if tracker == nil {
		tracker = progress.NewTracker()
	}

	tracker.Reset()

	if strings.ContainsAny(url, "{}") {
		logger.Error("invalid download url", "url", url)

		return &InvalidRequestError{URL: url, Reason: "url contains template markers"}
	}

	target, err := resolveDestination(url, destination)
	if err != nil {
		logger.Error("failed to resolve destination", "url", url, "destination", destination, "err", err)

		return err
	}

	resp, err := f.openSession(ctx, url, logger)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		err := fmt.Errorf("unexpected status %s", resp.Status)
		logger.Error("download failed", "url", url, "err", err)

		return &TransportError{URL: url, Err: err}
	}

	out, err := os.Create(target)
	if err != nil {
		logger.Error("failed to open destination file", "target", target, "err", err)

		return fmt.Errorf("failed to open destination file %s: %w", target, err)
	}

	reader := progress.NewReader(ctx, resp.Body, resp.ContentLength, tracker)
	buf := make([]byte, f.bufferSize)

	// The writer is wrapped so io.CopyBuffer cannot bypass buf via
	// the file's ReadFrom; the body streams through in fixed chunks
	// and every chunk passes the reader's cancellation checkpoint.
	_, err = io.CopyBuffer(struct{ io.Writer }{out}, reader, buf)
	if cerr := out.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		os.Remove(target)

		if errors.Is(err, progress.ErrAborted) || errors.Is(err, context.Canceled) {
			logger.Info("download aborted", "url", url, "target", target)

			return progress.ErrAborted
		}

		logger.Error("download failed", "url", url, "err", err)

		return &TransportError{URL: url, Err: err}
	}

	info, err := os.Stat(target)
	if err != nil {
		logger.Error("failed to stat downloaded file", "target", target, "err", err)

		return fmt.Errorf("failed to stat downloaded file %s: %w", target, err)
	}

	if info.Size() == 0 {
		os.Remove(target)
		logger.Error("download produced an empty file", "url", url, "target", target)

		return &EmptyResultError{URL: url, Path: target}
	}

	logger.Info("download complete", "url", url, "target", target, "size", humanize.Bytes(uint64(info.Size())))

	return nil
}

// openSession establishes the transfer: the request is built and sent,
// and the call returns once response headers arrive. Only this step
// sits inside the retry budget.
func (f *Fetcher) openSession(ctx context.Context, url string, logger *slog.Logger) (*http.Response, error) {
	resp, err := retry.Do(ctx, f.initAttempts, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("User-Agent", f.userAgent)

		return f.client.Do(req)
	}, func(err error) {
		logger.Warn("failed to initialize transfer session, retrying", "url", url, "err", err)
	})
	if err != nil {
		logger.Error("failed to initialize transfer session", "url", url, "attempts", f.initAttempts, "err", err)

		return nil, &InitError{URL: url, Attempts: int(f.initAttempts), Err: err}
	}

	return resp, nil
}

// resolveDestination turns the requested destination into a concrete
// file path, creating the directories above it.
func resolveDestination(url, destination string) (string, error) {
	if strings.HasSuffix(destination, "/") {
		if err := os.MkdirAll(destination, dirPerm); err != nil {
			return "", fmt.Errorf("failed to create destination directory: %w", err)
		}

		idx := strings.LastIndex(url, "/")
		if idx < 0 || idx == len(url)-1 {
			return "", &InvalidRequestError{URL: url, Reason: "no filename can be derived from url"}
		}

		return destination + url[idx+1:], nil
	}

	if err := os.MkdirAll(filepath.Dir(destination), dirPerm); err != nil {
		return "", fmt.Errorf("failed to create destination directory: %w", err)
	}

	return destination, nil
}
