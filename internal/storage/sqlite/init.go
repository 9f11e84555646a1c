package sqlite

import (
	"database/sql"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// InitDB initializes the SQLite database and creates the jobs table if
// it doesn't exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		source TEXT NOT NULL,
		destination TEXT NOT NULL,
		status TEXT DEFAULT 'queued',
		detail TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`)

	if err != nil {
		return nil, err
	}

	return db, nil
}
