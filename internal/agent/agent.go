// Package agent serializes download and extraction jobs: one worker
// per operation kind, so at most one operation of each kind is in
// flight against its progress state at any time.
package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fetchkit/fetchkit/internal/fetch"
	"github.com/fetchkit/fetchkit/internal/logctx"
	"github.com/fetchkit/fetchkit/internal/progress"
	"github.com/fetchkit/fetchkit/internal/storage"
	"github.com/fetchkit/fetchkit/internal/telemetry"
	"github.com/fetchkit/fetchkit/internal/unpack"
)

// ErrQueueFull is returned when a job cannot be accepted because the
// queue for its kind is at capacity.
var ErrQueueFull = errors.New("job queue is full")

const defaultQueueSize = 16

// Job is one queued unit of work.
type Job struct {
	ID          string
	Kind        storage.JobKind
	Source      string // URL for downloads, archive path for extractions
	Destination string
}

// operation is the in-flight job of one kind and its progress state.
type operation struct {
	jobID   string
	tracker *progress.Tracker
}

// Status is a snapshot of one operation kind for the control surface.
type Status struct {
	Active     bool   `json:"active"`
	JobID      string `json:"job_id,omitempty"`
	Percentage int    `json:"percentage"`
}

type Agent struct {
	fetcher   *fetch.Fetcher
	extractor *unpack.Extractor
	repo      storage.JobRepository
	tel       *telemetry.Telemetry

	downloads   chan Job
	extractions chan Job

	mu      sync.Mutex
	current map[storage.JobKind]*operation
}

func New(fetcher *fetch.Fetcher, extractor *unpack.Extractor, repo storage.JobRepository, tel *telemetry.Telemetry, queueSize int) *Agent {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &Agent{
		fetcher:     fetcher,
		extractor:   extractor,
		repo:        repo,
		tel:         tel,
		downloads:   make(chan Job, queueSize),
		extractions: make(chan Job, queueSize),
		current:     make(map[storage.JobKind]*operation),
	}
}

// Run blocks processing jobs until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.work(ctx, storage.JobDownload, a.downloads) })
	g.Go(func() error { return a.work(ctx, storage.JobExtract, a.extractions) })

	return g.Wait()
}

func (a *Agent) work(ctx context.Context, kind storage.JobKind, jobs <-chan Job) error {
	logger := logctx.LoggerFromContext(ctx)

	logger.Info("worker started", "kind", kind)

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutting down", "kind", kind)

			return ctx.Err()
		case job := <-jobs:
			a.runJob(ctx, job)
		}
	}
}

// EnqueueDownload queues a download of url to destination and returns
// the job id.
func (a *Agent) EnqueueDownload(url, destination string) (string, error) {
	return a.enqueue(a.downloads, Job{
		ID:          uuid.NewString(),
		Kind:        storage.JobDownload,
		Source:      url,
		Destination: destination,
	})
}

// EnqueueExtraction queues expansion of the archive at archivePath
// under destination and returns the job id.
func (a *Agent) EnqueueExtraction(archivePath, destination string) (string, error) {
	return a.enqueue(a.extractions, Job{
		ID:          uuid.NewString(),
		Kind:        storage.JobExtract,
		Source:      archivePath,
		Destination: destination,
	})
}

func (a *Agent) enqueue(queue chan Job, job Job) (string, error) {
	if err := a.repo.TrackJob(job.ID, job.Kind, job.Source, job.Destination); err != nil {
		return "", err
	}

	select {
	case queue <- job:
		return job.ID, nil
	default:
		_ = a.repo.UpdateJobStatus(job.ID, storage.StatusFailed, ErrQueueFull.Error())

		return "", ErrQueueFull
	}
}

// Abort asks the in-flight operation of the given kind to stop at its
// next checkpoint. It reports whether an operation was active.
func (a *Agent) Abort(kind storage.JobKind) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	op := a.current[kind]
	if op == nil {
		return false
	}

	op.tracker.RequestAbort()

	return true
}

// StatusOf returns a snapshot of the given operation kind.
func (a *Agent) StatusOf(kind storage.JobKind) Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	op := a.current[kind]
	if op == nil {
		return Status{Percentage: progress.Unknown}
	}

	return Status{
		Active:     true,
		JobID:      op.jobID,
		Percentage: op.tracker.Percentage(),
	}
}

func (a *Agent) runJob(ctx context.Context, job Job) {
	logger := logctx.LoggerFromContext(ctx).With("job_id", job.ID, "kind", job.Kind)
	ctx = logctx.WithLogger(ctx, logger)

	tracker := progress.NewTracker()

	a.mu.Lock()
	a.current[job.Kind] = &operation{jobID: job.ID, tracker: tracker}
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.current, job.Kind)
		a.mu.Unlock()
	}()

	if err := a.repo.UpdateJobStatus(job.ID, storage.StatusRunning, ""); err != nil {
		logger.Error("failed to mark job running", "err", err)
	}

	a.tel.OperationStarted(ctx, string(job.Kind))
	defer a.tel.OperationFinished(ctx, string(job.Kind))

	var err error

	switch job.Kind {
	case storage.JobDownload:
		err = a.fetcher.Download(ctx, job.Source, job.Destination, tracker)
	case storage.JobExtract:
		err = a.extractor.Extract(ctx, job.Source, job.Destination, tracker)
	}

	status := storage.StatusCompleted

	var detail string

	switch {
	case err == nil:
	case errors.Is(err, progress.ErrAborted):
		status = storage.StatusCancelled
	default:
		status = storage.StatusFailed
		detail = err.Error()
	}

	if uerr := a.repo.UpdateJobStatus(job.ID, status, detail); uerr != nil {
		logger.Error("failed to update job status", "err", uerr)
	}

	a.tel.RecordJob(ctx, string(job.Kind), string(status))

	if err == nil {
		switch job.Kind {
		case storage.JobDownload:
			a.tel.AddBytesDownloaded(ctx, tracker.Processed())
		case storage.JobExtract:
			a.tel.AddEntriesExtracted(ctx, tracker.Processed())
		}
	}
}
