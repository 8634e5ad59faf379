package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite" // Register SQLite driver

	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/model"
)

// maxArtifactBytes caps how large a stored artifact may be. Renders larger
// than this keep their audit row but drop the payload.
const maxArtifactBytes = 20 << 20

// parseTimestamp parses a timestamp string from SQLite, handling multiple formats
func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}

	formats := []string{
		"2006-01-02 15:04:05",           // SQLite standard format (UTC assumed)
		"2006-01-02 15:04:05 -0700 MST", // With timezone offset and name
		"2006-01-02 15:04:05 -0700",     // With timezone offset only
		time.RFC3339,
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return &t
		}
	}

	log.Printf("[STORE] WARNING: Failed to parse timestamp: %s", s)
	return nil
}

// Store records render runs for auditing and retains small artifacts for
// re-download. All writes go through a single-writer queue.
type Store struct {
	db         *sql.DB
	writeQueue *writeQueue
}

// NewStore opens (or creates) the run database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL mode allows concurrent readers with the single writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	log.Println("[STORE] SQLite configured: WAL mode enabled, busy_timeout=5000ms, single writer connection")

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	store.writeQueue = newWriteQueue(store)
	log.Println("[STORE] Write queue initialized for serialized database writes")

	return store, nil
}

// migrate runs database migrations
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id TEXT NOT NULL,
			doc_type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'running',
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			bytes INTEGER NOT NULL DEFAULT 0,
			checksum TEXT,
			error_text TEXT,
			artifact_data BLOB,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_request_id ON runs(request_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_doc_type ON runs(doc_type)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// CreateRun inserts a run record via the write queue.
func (s *Store) CreateRun(run *model.Run) error {
	return s.writeQueue.enqueue(opCreateRun, run)
}

func (s *Store) createRunDirect(run *model.Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = model.RunStatusRunning
	}

	artifact := run.ArtifactData
	if len(artifact) > maxArtifactBytes {
		log.Printf("[STORE] WARNING: artifact for request %s exceeds %d bytes, not retained", run.RequestID, maxArtifactBytes)
		artifact = nil
	}

	result, err := s.db.Exec(`
		INSERT INTO runs (request_id, doc_type, status, started_at, duration_ms, bytes, checksum, error_text, artifact_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RequestID, run.DocType, run.Status, run.StartedAt.UTC().Format("2006-01-02 15:04:05"),
		run.DurationMS, run.Bytes, run.Checksum, run.ErrorText, artifact,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get run ID: %w", err)
	}
	return nil
}

// UpdateRun updates a run's terminal state via the write queue.
func (s *Store) UpdateRun(run *model.Run) error {
	return s.writeQueue.enqueue(opUpdateRun, run)
}

func (s *Store) updateRunDirect(run *model.Run) error {
	finishedAt := ""
	if run.FinishedAt != nil {
		finishedAt = run.FinishedAt.UTC().Format("2006-01-02 15:04:05")
	}

	artifact := run.ArtifactData
	if len(artifact) > maxArtifactBytes {
		log.Printf("[STORE] WARNING: artifact for request %s exceeds %d bytes, not retained", run.RequestID, maxArtifactBytes)
		artifact = nil
	}

	_, err := s.db.Exec(`
		UPDATE runs
		SET status = ?, finished_at = ?, duration_ms = ?, bytes = ?, checksum = ?, error_text = ?, artifact_data = ?
		WHERE id = ?`,
		run.Status, finishedAt, run.DurationMS, run.Bytes, run.Checksum, run.ErrorText, artifact, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// GetRun returns one run by ID, without the artifact payload.
func (s *Store) GetRun(id int64) (*model.Run, error) {
	row := s.db.QueryRow(`
		SELECT id, request_id, doc_type, status, started_at, COALESCE(finished_at, ''), duration_ms, bytes,
		       COALESCE(checksum, ''), COALESCE(error_text, ''), created_at
		FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetRunArtifact returns the stored artifact payload for a run, or an error
// when none was retained.
func (s *Store) GetRunArtifact(id int64) ([]byte, string, error) {
	var data []byte
	var docType string
	err := s.db.QueryRow(`SELECT COALESCE(artifact_data, x''), doc_type FROM runs WHERE id = ?`, id).Scan(&data, &docType)
	if err == sql.ErrNoRows {
		return nil, "", fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get run artifact: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("run %d has no retained artifact", id)
	}
	return data, docType, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]*model.Run, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT id, request_id, doc_type, status, started_at, COALESCE(finished_at, ''), duration_ms, bytes,
		       COALESCE(checksum, ''), COALESCE(error_text, ''), created_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// PurgeBefore removes runs started before the cutoff. Returns rows removed.
func (s *Store) PurgeBefore(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return 0, fmt.Errorf("failed to purge runs: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	var run model.Run
	var startedAt, finishedAt, createdAt string

	err := row.Scan(&run.ID, &run.RequestID, &run.DocType, &run.Status, &startedAt, &finishedAt,
		&run.DurationMS, &run.Bytes, &run.Checksum, &run.ErrorText, &createdAt)
	if err != nil {
		return nil, err
	}

	if t := parseTimestamp(startedAt); t != nil {
		run.StartedAt = *t
	}
	run.FinishedAt = parseTimestamp(finishedAt)
	if t := parseTimestamp(createdAt); t != nil {
		run.CreatedAt = *t
	}
	return &run, nil
}

// Close shuts down the write queue and closes the database.
func (s *Store) Close() error {
	if s.writeQueue != nil {
		s.writeQueue.shutdown()
	}
	return s.db.Close()
}
