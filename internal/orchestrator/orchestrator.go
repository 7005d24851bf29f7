// Package orchestrator owns the fulfillment state machine: six stages from
// identity resolution to report persistence, with the progress stage written
// to the store before each stage's work starts. Jobs run in parallel with
// respect to each other; within a job the stages are sequential, except that
// the three data-collection stages fan out once their stage markers are
// persisted.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clearcheck/dossier-api/internal/aggregate"
	"github.com/clearcheck/dossier-api/internal/model"
	"github.com/clearcheck/dossier-api/internal/notify"
	"github.com/clearcheck/dossier-api/internal/provider"
	"github.com/clearcheck/dossier-api/internal/resilience"
	"github.com/clearcheck/dossier-api/internal/store"
	"github.com/clearcheck/dossier-api/pkg/summarize"
)

// ErrNotPayable is returned when fulfillment is requested for a job whose
// status does not allow it (still pending payment, refunded, or failed).
var ErrNotPayable = eris.New("orchestrator: job not in a fulfillable status")

const defaultReportTTL = 30 * 24 * time.Hour

// Config tunes the orchestrator.
type Config struct {
	// ReportTTL is how long a report stays fresh. Zero selects 30 days.
	ReportTTL time.Duration
	// ReportBaseURL prefixes the report link sent in notifications.
	ReportBaseURL string
	// Retry governs the per-stage retry of transient failures.
	Retry resilience.RetryConfig
	// NotifyTimeout bounds the notification dispatch. Zero selects 10s.
	NotifyTimeout time.Duration
}

// Orchestrator drives jobs through fulfillment.
type Orchestrator struct {
	store      store.Store
	aggregator *aggregate.Aggregator
	summarizer summarize.Client
	notifier   notify.Dispatcher
	dlq        *resilience.DeadLetterLog
	cfg        Config
}

// New creates an Orchestrator.
func New(st store.Store, agg *aggregate.Aggregator, sum summarize.Client, notifier notify.Dispatcher, dlq *resilience.DeadLetterLog, cfg Config) *Orchestrator {
	if cfg.ReportTTL <= 0 {
		cfg.ReportTTL = defaultReportTTL
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	return &Orchestrator{
		store:      st,
		aggregator: agg,
		summarizer: sum,
		notifier:   notifier,
		dlq:        dlq,
		cfg:        cfg,
	}
}

// Fulfill runs a paid job through all six stages and returns its report.
// Calling it for an already-completed job returns the existing report without
// re-running anything. A failed stage leaves the job `failed` with the stage
// number frozen at the point of failure.
func (o *Orchestrator) Fulfill(ctx context.Context, jobID string) (*model.Report, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status == model.JobStatusCompleted && job.ReportID != "" {
		return o.store.GetReport(ctx, job.ReportID)
	}
	if job.Status != model.JobStatusPaid && job.Status != model.JobStatusProcessing {
		return nil, eris.Wrapf(ErrNotPayable, "job %s is %s", job.ID, job.Status)
	}

	if job.Status != model.JobStatusProcessing {
		if err := o.store.UpdateJob(ctx, job.ID, model.StatusPatch(model.JobStatusProcessing)); err != nil {
			return nil, err
		}
	}

	log := zap.L().With(
		zap.String("job_id", job.ID),
		zap.String("identifier", model.MaskIdentifier(job.Identifier)),
		zap.String("kind", string(job.Kind)),
	)
	log.Info("fulfillment started")

	query := provider.Query{Identifier: job.Identifier, Kind: job.Kind}

	// Stage 1: identity resolution. The only stage whose source failure is
	// fatal: without a display name there is nothing to search for.
	if err := o.setStage(ctx, job.ID, model.StageIdentity); err != nil {
		return nil, err
	}
	identity, err := resilience.DoVal(ctx, o.retryConfig("identity"), func(ctx context.Context) (*aggregate.Identity, error) {
		return o.aggregator.ResolveIdentity(ctx, query)
	})
	if err != nil {
		return nil, o.fail(ctx, job.ID, log, model.StageIdentity, err)
	}
	query.Name = identity.DisplayName
	log.Info("identity resolved", zap.String("display_name", identity.DisplayName))

	// Stages 2-4: independent collection. Each stage marker is persisted, in
	// order, before that stage's work launches; the three calls then run
	// concurrently and join before the synopsis stage. Failures inside are
	// recovered by the aggregator as empty contributions.
	var (
		wg        sync.WaitGroup
		financial *model.FinancialData
		records   []model.CourtRecord
		mentions  []model.WebMention
		finSrc    []string
		courtSrc  []string
		webSrc    []string
	)
	collect := []struct {
		stage int
		run   func(ctx context.Context)
	}{
		{model.StageFinancial, func(ctx context.Context) { financial, finSrc = o.aggregator.Financial(ctx, query) }},
		{model.StageCourts, func(ctx context.Context) { records, courtSrc = o.aggregator.Courts(ctx, query) }},
		{model.StageWeb, func(ctx context.Context) { mentions, webSrc = o.aggregator.Mentions(ctx, query) }},
	}
	for _, c := range collect {
		if err := o.setStage(ctx, job.ID, c.stage); err != nil {
			return nil, err
		}
		wg.Add(1)
		go func(run func(ctx context.Context)) {
			defer wg.Done()
			run(ctx)
		}(c.run)
	}
	wg.Wait()

	// Stage 5: synopsis. Degraded, never fatal: a report without the AI
	// synopsis is still a report.
	if err := o.setStage(ctx, job.ID, model.StageSynopsis); err != nil {
		return nil, err
	}
	synopsis := o.summarizeOrDegrade(ctx, job.ID, log, summarize.Input{
		DisplayName:  identity.DisplayName,
		Kind:         job.Kind,
		Financial:    financial,
		CourtRecords: records,
		Mentions:     mentions,
	})
	mentions = applySentiments(mentions, synopsis.MentionSentiments)

	// Stage 6: report persistence, all or nothing. The existing-report check
	// makes a resumed job reuse the report it already wrote instead of
	// creating a second one.
	if err := o.setStage(ctx, job.ID, model.StagePersist); err != nil {
		return nil, err
	}
	reportID := job.ReportID
	if reportID == "" {
		report := &model.Report{
			Identifier:  job.Identifier,
			Kind:        job.Kind,
			DisplayName: identity.DisplayName,
			Payload: model.ReportPayload{
				Cadastral:    identity.Subject,
				Corporate:    identity.Corporate,
				Financial:    financial,
				CourtRecords: records,
				WebMentions:  mentions,
				Sources:      mergeSources(identity.Sources, finSrc, courtSrc, webSrc),
			},
			Synopsis:  synopsis.Synopsis,
			ExpiresAt: time.Now().UTC().Add(o.cfg.ReportTTL),
		}
		reportID, err = resilience.DoVal(ctx, o.retryConfig("persist"), func(ctx context.Context) (string, error) {
			return o.store.CreateReport(ctx, report)
		})
		if err != nil {
			return nil, o.fail(ctx, job.ID, log, model.StagePersist, err)
		}
	}

	done := model.JobPatch{}
	completed := model.JobStatusCompleted
	idle := model.StageIdle
	done.Status = &completed
	done.Stage = &idle
	done.ReportID = &reportID
	if err := o.store.UpdateJob(ctx, job.ID, done); err != nil {
		return nil, o.fail(ctx, job.ID, log, model.StagePersist, err)
	}
	log.Info("fulfillment completed", zap.String("report_id", reportID))

	o.dispatchNotification(job, reportID, log)

	return o.store.GetReport(ctx, reportID)
}

// setStage persists the progress marker before the stage's work starts, so an
// observer always sees the stage currently in flight.
func (o *Orchestrator) setStage(ctx context.Context, jobID string, stage int) error {
	return o.store.UpdateJob(ctx, jobID, model.StagePatch(stage))
}

// fail marks the job failed, leaving the stage frozen where it broke.
func (o *Orchestrator) fail(ctx context.Context, jobID string, log *zap.Logger, stage int, cause error) error {
	log.Error("fulfillment failed",
		zap.String("stage", model.StageName(stage)),
		zap.Error(cause))
	o.dlq.Record(jobID, "fulfillment", cause)
	if err := o.store.UpdateJob(ctx, jobID, model.StatusPatch(model.JobStatusFailed)); err != nil {
		log.Error("could not mark job failed", zap.Error(err))
	}
	return cause
}

// summarizeOrDegrade asks the summarizer for the synopsis and falls back to a
// deterministic one when it stays unavailable through retries.
func (o *Orchestrator) summarizeOrDegrade(ctx context.Context, jobID string, log *zap.Logger, in summarize.Input) *summarize.Summary {
	summary, err := resilience.DoVal(ctx, o.retryConfig("synopsis"), func(ctx context.Context) (*summarize.Summary, error) {
		return o.summarizer.Summarize(ctx, in)
	})
	if err == nil {
		return summary
	}
	log.Warn("synopsis degraded, summarizer unavailable", zap.Error(err))
	o.dlq.Record(jobID, "synopsis", err)
	return &summarize.Summary{Synopsis: fallbackSynopsis(in)}
}

func (o *Orchestrator) dispatchNotification(job *model.Job, reportID string, log *zap.Logger) {
	if job.BuyerContact == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.NotifyTimeout)
	defer cancel()

	msg := notify.Message{
		Contact:          job.BuyerContact,
		MaskedIdentifier: model.MaskIdentifier(job.Identifier),
		ReportURL:        o.cfg.ReportBaseURL + "/reports/" + reportID,
	}
	if err := o.notifier.NotifyReportReady(ctx, msg); err != nil {
		log.Warn("notification dispatch failed", zap.Error(err))
		o.dlq.Record(job.ID, "notification", err)
	}
}

func (o *Orchestrator) retryConfig(operation string) resilience.RetryConfig {
	cfg := o.cfg.Retry
	cfg.OnRetry = resilience.RetryLogger("orchestrator", operation)
	return cfg
}

// fallbackSynopsis is the degraded stand-in when the summarizer is down:
// a factual one-liner from the collected counts.
func fallbackSynopsis(in summarize.Input) string {
	delinquencies := 0
	if in.Financial != nil {
		delinquencies = len(in.Financial.Delinquencies) + len(in.Financial.Protests)
	}
	if delinquencies == 0 && len(in.CourtRecords) == 0 {
		return "No financial delinquencies or court records were found for " + in.DisplayName + "."
	}
	return fmt.Sprintf("Records were found for %s: %d financial delinquencies, %d court records.",
		in.DisplayName, delinquencies, len(in.CourtRecords))
}

func applySentiments(mentions []model.WebMention, sentiments map[string]string) []model.WebMention {
	if len(sentiments) == 0 {
		return mentions
	}
	for i := range mentions {
		if s, ok := sentiments[mentions[i].URL]; ok {
			mentions[i].Sentiment = s
		}
	}
	return mentions
}

func mergeSources(groups ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, g := range groups {
		for _, s := range g {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
