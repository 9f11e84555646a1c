package storage

// JobKind identifies which worker handles a job.
type JobKind string

const (
	JobDownload JobKind = "download"
	JobExtract  JobKind = "extract"
)

// JobStatus tracks a job through its lifetime.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// JobRecord represents one download or extraction job in the history.
type JobRecord struct {
	ID          string    `json:"id"`
	Kind        JobKind   `json:"kind"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Status      JobStatus `json:"status"`
	Detail      string    `json:"detail,omitempty"` // error text for failed jobs
	CreatedAt   string    `json:"created_at"`
	UpdatedAt   string    `json:"updated_at"`
}

// JobRepository persists the job history.
type JobRepository interface {
	TrackJob(id string, kind JobKind, source, destination string) error
	UpdateJobStatus(id string, status JobStatus, detail string) error
	GetJobs(limit int) ([]JobRecord, error)
}
