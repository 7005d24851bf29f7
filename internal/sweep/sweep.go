// Package sweep is the safety net for jobs abandoned mid-fulfillment: any
// job still `processing` past the staleness threshold gets its payment
// refunded and is closed out as `refunded`.
package sweep

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/clearcheck/dossier-api/internal/model"
	"github.com/clearcheck/dossier-api/internal/store"
	"github.com/clearcheck/dossier-api/pkg/payment"
)

// The threshold must comfortably exceed the worst-case stage latency, or the
// sweep would refund jobs that are still making progress.
const defaultStaleAfter = 30 * time.Minute

// Sweeper scans for stuck jobs and refunds them.
type Sweeper struct {
	store      store.Store
	payments   payment.Client
	staleAfter time.Duration
	now        func() time.Time
}

// New creates a Sweeper. A zero staleAfter selects the 30-minute default.
func New(st store.Store, payments payment.Client, staleAfter time.Duration) *Sweeper {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &Sweeper{
		store:      st,
		payments:   payments,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (s *Sweeper) WithNow(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run performs one sweep pass and returns how many jobs were refunded.
// A failed refund is logged and left `processing`, so the next pass retries
// it; refunds are idempotent on the provider side.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.staleAfter)
	jobs, err := s.store.ListStuckJobs(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}
	zap.L().Info("sweep: stuck jobs found", zap.Int("count", len(jobs)))

	refunded := 0
	for _, job := range jobs {
		log := zap.L().With(
			zap.String("job_id", job.ID),
			zap.String("payment_id", job.PaymentID),
			zap.String("stage", model.StageName(job.Stage)),
		)

		result, err := s.payments.Refund(ctx, job.PaymentID)
		if err != nil {
			log.Warn("sweep: refund failed, will retry next pass", zap.Error(err))
			continue
		}
		if !result.Success {
			log.Warn("sweep: refund rejected by provider, will retry next pass")
			continue
		}

		if err := s.store.UpdateJob(ctx, job.ID, model.StatusPatch(model.JobStatusRefunded)); err != nil {
			// The refund went through but the status write did not; the next
			// pass re-refunds, which the provider treats as a no-op.
			log.Error("sweep: refunded but status update failed", zap.Error(err))
			continue
		}
		log.Info("sweep: job refunded", zap.String("refund_id", result.RefundID))
		refunded++
	}
	return refunded, nil
}

// Start runs sweep passes at the interval until the context is canceled.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	zap.L().Info("sweep: started",
		zap.Duration("interval", interval),
		zap.Duration("stale_after", s.staleAfter))
	for {
		select {
		case <-ctx.Done():
			zap.L().Info("sweep: stopped")
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				zap.L().Error("sweep: pass failed", zap.Error(err))
			}
		}
	}
}
