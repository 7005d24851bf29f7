package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/clearcheck/dossier-api/internal/model"
)

// SQLiteStore implements Store on a local sqlite database. Suited to
// development and single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the sqlite database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// sqlite allows a single writer; serialize access through one connection.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{db: conn}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id            TEXT PRIMARY KEY,
	identifier    TEXT NOT NULL,
	kind          TEXT NOT NULL,
	buyer_contact TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'pending',
	stage         INTEGER NOT NULL DEFAULT 0,
	payment_id    TEXT NOT NULL DEFAULT '',
	report_id     TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_status_updated ON jobs (status, updated_at);

CREATE TABLE IF NOT EXISTS reports (
	id           TEXT PRIMARY KEY,
	identifier   TEXT NOT NULL,
	kind         TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	payload      TEXT NOT NULL,
	synopsis     TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP NOT NULL,
	expires_at   TIMESTAMP NOT NULL
);
`

// Migrate creates the schema if missing.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

// CreateJob inserts a new job record. Missing id and timestamps are filled in.
func (s *SQLiteStore) CreateJob(ctx context.Context, job *model.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, identifier, kind, buyer_contact, status, stage, payment_id, report_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Identifier, string(job.Kind), job.BuyerContact, string(job.Status),
		job.Stage, job.PaymentID, job.ReportID, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: create job")
	}
	return nil
}

// GetJob fetches a job by id.
func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, identifier, kind, buyer_contact, status, stage, payment_id, report_id, created_at, updated_at
		 FROM jobs WHERE id = ?`, jobID)
	return scanSQLiteJob(row)
}

// UpdateJob applies a partial update and bumps updated_at.
func (s *SQLiteStore) UpdateJob(ctx context.Context, jobID string, patch model.JobPatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.Stage != nil {
		sets = append(sets, "stage = ?")
		args = append(args, *patch.Stage)
	}
	if patch.PaymentID != nil {
		sets = append(sets, "payment_id = ?")
		args = append(args, *patch.PaymentID)
	}
	if patch.ReportID != nil {
		sets = append(sets, "report_id = ?")
		args = append(args, *patch.ReportID)
	}

	args = append(args, jobID)
	res, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return eris.Wrap(err, "sqlite: update job")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: update job rows affected")
	}
	if affected == 0 {
		return eris.Wrapf(ErrNotFound, "job %s", jobID)
	}
	return nil
}

// ListStuckJobs returns processing jobs not updated since the cutoff that
// have a payment reference to refund against.
func (s *SQLiteStore) ListStuckJobs(ctx context.Context, updatedBefore time.Time) ([]model.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, identifier, kind, buyer_contact, status, stage, payment_id, report_id, created_at, updated_at
		 FROM jobs
		 WHERE status = ? AND updated_at < ? AND payment_id <> ''
		 ORDER BY updated_at ASC`,
		string(model.JobStatusProcessing), updatedBefore)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list stuck jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		job, err := scanSQLiteJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate stuck jobs")
	}
	return jobs, nil
}

// CreateReport inserts a report and returns its id.
func (s *SQLiteStore) CreateReport(ctx context.Context, report *model.Report) (string, error) {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(report.Payload)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal report payload")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, identifier, kind, display_name, payload, synopsis, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.Identifier, string(report.Kind), report.DisplayName,
		string(payload), report.Synopsis, report.CreatedAt, report.ExpiresAt,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: create report")
	}
	return report.ID, nil
}

// GetReport fetches a report by id.
func (s *SQLiteStore) GetReport(ctx context.Context, reportID string) (*model.Report, error) {
	var (
		report  model.Report
		kind    string
		payload string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, identifier, kind, display_name, payload, synopsis, created_at, expires_at
		 FROM reports WHERE id = ?`, reportID).
		Scan(&report.ID, &report.Identifier, &kind, &report.DisplayName,
			&payload, &report.Synopsis, &report.CreatedAt, &report.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "report %s", reportID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get report")
	}
	report.Kind = model.IdentifierKind(kind)
	if err := json.Unmarshal([]byte(payload), &report.Payload); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal report payload")
	}
	return &report, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanSQLiteJob(row rowScanner) (*model.Job, error) {
	var (
		job    model.Job
		kind   string
		status string
	)
	err := row.Scan(&job.ID, &job.Identifier, &kind, &job.BuyerContact, &status,
		&job.Stage, &job.PaymentID, &job.ReportID, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "job")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}
	job.Kind = model.IdentifierKind(kind)
	job.Status = model.JobStatus(status)
	return &job, nil
}
