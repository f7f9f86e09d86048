package lms

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/scorm"
)

const attemptsSchema = `CREATE TABLE IF NOT EXISTS attempts (
	attempt_id TEXT NOT NULL,
	learner_id TEXT NOT NULL,
	course_id TEXT NOT NULL,
	version TEXT NOT NULL,
	sessions INTEGER NOT NULL DEFAULT 0,
	data TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (learner_id, course_id)
)`

// SQLiteStore keeps attempts in a single-file database. The data model is
// stored as a JSON object column.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(attemptsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) LoadAttempt(ctx context.Context, learnerID, courseID string) (*Attempt, error) {
	if learnerID == "" {
		return nil, ErrEmptyLearnerID
	}

	var (
		attempt            Attempt
		version, data      string
		createdAt, updated int64
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT attempt_id, learner_id, course_id, version, sessions, data, created_at, updated_at
		 FROM attempts WHERE learner_id = ? AND course_id = ?`, learnerID, courseID)
	err := row.Scan(&attempt.AttemptID, &attempt.LearnerID, &attempt.CourseID, &version,
		&attempt.Sessions, &data, &createdAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query attempt: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &attempt.Data); err != nil {
		return nil, fmt.Errorf("decode attempt data: %w", err)
	}
	if attempt.Data == nil {
		attempt.Data = make(map[string]string)
	}
	attempt.Version = scorm.Version(version)
	attempt.CreatedAt = time.UnixMilli(createdAt).UTC()
	attempt.UpdatedAt = time.UnixMilli(updated).UTC()
	return &attempt, nil
}

func (s *SQLiteStore) SaveAttempt(ctx context.Context, attempt *Attempt) error {
	if err := attempt.validate(); err != nil {
		return err
	}
	data, err := json.Marshal(attempt.Data)
	if err != nil {
		return fmt.Errorf("encode attempt data: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO attempts (attempt_id, learner_id, course_id, version, sessions, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(learner_id, course_id) DO UPDATE SET
			attempt_id = excluded.attempt_id,
			version = excluded.version,
			sessions = excluded.sessions,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		attempt.AttemptID, attempt.LearnerID, attempt.CourseID, string(attempt.Version),
		attempt.Sessions, string(data), attempt.CreatedAt.UnixMilli(), attempt.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert attempt: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteAttempt(ctx context.Context, learnerID, courseID string) error {
	if learnerID == "" {
		return ErrEmptyLearnerID
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM attempts WHERE learner_id = ? AND course_id = ?`, learnerID, courseID); err != nil {
		return fmt.Errorf("delete attempt: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close(context.Context) error {
	return s.db.Close()
}
