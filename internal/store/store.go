// Package store persists jobs and reports. The pipeline treats it as a small
// record store: find/update jobs, create-once reports, plus the stuck-job
// query the refund sweep runs on.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/clearcheck/dossier-api/internal/model"
)

// ErrNotFound is returned when a job or report does not exist.
var ErrNotFound = eris.New("store: not found")

// Store is the persistence contract of the fulfillment core.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	UpdateJob(ctx context.Context, jobID string, patch model.JobPatch) error
	// ListStuckJobs returns jobs still in processing whose last update is
	// older than the cutoff and that carry a payment reference.
	ListStuckJobs(ctx context.Context, updatedBefore time.Time) ([]model.Job, error)

	// Reports
	CreateReport(ctx context.Context, report *model.Report) (string, error)
	GetReport(ctx context.Context, reportID string) (*model.Report, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
