package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/clearcheck/dossier-api/internal/db"
	"github.com/clearcheck/dossier-api/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool, for tests.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id            TEXT PRIMARY KEY,
	identifier    TEXT NOT NULL,
	kind          TEXT NOT NULL,
	buyer_contact TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'pending',
	stage         INT  NOT NULL DEFAULT 0,
	payment_id    TEXT NOT NULL DEFAULT '',
	report_id     TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_jobs_status_updated ON jobs (status, updated_at);

CREATE TABLE IF NOT EXISTS reports (
	id           TEXT PRIMARY KEY,
	identifier   TEXT NOT NULL,
	kind         TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	payload      JSONB NOT NULL,
	synopsis     TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at   TIMESTAMPTZ NOT NULL
);
`

// Migrate creates the schema if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// CreateJob inserts a new job record. Missing id and timestamps are filled in.
func (s *PostgresStore) CreateJob(ctx context.Context, job *model.Job) error {
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, identifier, kind, buyer_contact, status, stage, payment_id, report_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.Identifier, string(job.Kind), job.BuyerContact, string(job.Status),
		job.Stage, job.PaymentID, job.ReportID, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: create job")
	}
	return nil
}

// GetJob fetches a job by id.
func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, identifier, kind, buyer_contact, status, stage, payment_id, report_id, created_at, updated_at
		 FROM jobs WHERE id = $1`, jobID)
	return scanJob(row)
}

// UpdateJob applies a partial update and bumps updated_at.
func (s *PostgresStore) UpdateJob(ctx context.Context, jobID string, patch model.JobPatch) error {
	sets := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}

	if patch.Status != nil {
		args = append(args, string(*patch.Status))
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if patch.Stage != nil {
		args = append(args, *patch.Stage)
		sets = append(sets, fmt.Sprintf("stage = $%d", len(args)))
	}
	if patch.PaymentID != nil {
		args = append(args, *patch.PaymentID)
		sets = append(sets, fmt.Sprintf("payment_id = $%d", len(args)))
	}
	if patch.ReportID != nil {
		args = append(args, *patch.ReportID)
		sets = append(sets, fmt.Sprintf("report_id = $%d", len(args)))
	}

	args = append(args, jobID)
	sql := fmt.Sprintf("UPDATE jobs SET %s WHERE id = $%d", joinSets(sets), len(args))

	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return eris.Wrap(err, "postgres: update job")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "job %s", jobID)
	}
	return nil
}

// ListStuckJobs returns processing jobs not updated since the cutoff that
// have a payment reference to refund against.
func (s *PostgresStore) ListStuckJobs(ctx context.Context, updatedBefore time.Time) ([]model.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, identifier, kind, buyer_contact, status, stage, payment_id, report_id, created_at, updated_at
		 FROM jobs
		 WHERE status = $1 AND updated_at < $2 AND payment_id <> ''
		 ORDER BY updated_at ASC`,
		string(model.JobStatusProcessing), updatedBefore)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list stuck jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate stuck jobs")
	}
	return jobs, nil
}

// CreateReport inserts a report and returns its id.
func (s *PostgresStore) CreateReport(ctx context.Context, report *model.Report) (string, error) {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(report.Payload)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal report payload")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (id, identifier, kind, display_name, payload, synopsis, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		report.ID, report.Identifier, string(report.Kind), report.DisplayName,
		payload, report.Synopsis, report.CreatedAt, report.ExpiresAt,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: create report")
	}
	return report.ID, nil
}

// GetReport fetches a report by id.
func (s *PostgresStore) GetReport(ctx context.Context, reportID string) (*model.Report, error) {
	var (
		report  model.Report
		kind    string
		payload []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, identifier, kind, display_name, payload, synopsis, created_at, expires_at
		 FROM reports WHERE id = $1`, reportID).
		Scan(&report.ID, &report.Identifier, &kind, &report.DisplayName,
			&payload, &report.Synopsis, &report.CreatedAt, &report.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "report %s", reportID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get report")
	}
	report.Kind = model.IdentifierKind(kind)
	if err := json.Unmarshal(payload, &report.Payload); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal report payload")
	}
	return &report, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var (
		job    model.Job
		kind   string
		status string
	)
	err := row.Scan(&job.ID, &job.Identifier, &kind, &job.BuyerContact, &status,
		&job.Stage, &job.PaymentID, &job.ReportID, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "job")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan job")
	}
	job.Kind = model.IdentifierKind(kind)
	job.Status = model.JobStatus(status)
	return &job, nil
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}
