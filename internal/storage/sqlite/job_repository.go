package sqlite

import (
	"database/sql"
	"time"

	"github.com/fetchkit/fetchkit/internal/storage"
)

// JobRepository implements storage.JobRepository on SQLite.
type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) TrackJob(id string, kind storage.JobKind, source, destination string) error {
	now := time.Now().Format(time.RFC3339)

	_, err := r.db.Exec(
		`INSERT INTO jobs (id, kind, source, destination, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'queued', ?, ?)`,
		id, string(kind), source, destination, now, now,
	)

	return err
}

// UpdateJobStatus sets the status for a job, keeping the error text of
// failed jobs in the detail column.
func (r *JobRepository) UpdateJobStatus(id string, status storage.JobStatus, detail string) error {
	_, err := r.db.Exec(
		`UPDATE jobs SET status = ?, detail = ?, updated_at = ? WHERE id = ?`,
		string(status), detail, time.Now().Format(time.RFC3339), id,
	)

	return err
}

func (r *JobRepository) GetJobs(limit int) ([]storage.JobRecord, error) {
	rows, err := r.db.Query(
		`SELECT id, kind, source, destination, status, detail, created_at, updated_at
		FROM jobs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []storage.JobRecord

	for rows.Next() {
		var record storage.JobRecord

		var detail sql.NullString

		var kind, status string

		if err := rows.Scan(&record.ID, &kind, &record.Source, &record.Destination, &status, &detail, &record.CreatedAt, &record.UpdatedAt); err != nil {
			return nil, err
		}

		record.Kind = storage.JobKind(kind)
		record.Status = storage.JobStatus(status)

		if detail.Valid {
			record.Detail = detail.String
		}

		jobs = append(jobs, record)
	}

	return jobs, rows.Err()
}
