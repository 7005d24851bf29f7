package main

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/clearcheck/dossier-api/internal/model"
	"github.com/clearcheck/dossier-api/internal/ratelimit"
	"github.com/clearcheck/dossier-api/internal/store"
	"github.com/clearcheck/dossier-api/internal/webhook"
)

// newRouter builds the public HTTP surface.
func newRouter(env *appEnv, allowedOrigins []string, webhookSecret string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	api := &apiHandlers{env: env}

	r.Get("/health", api.health)

	r.Group(func(r chi.Router) {
		r.Use(api.rateLimit(ratelimit.ActionValidate))
		r.Post("/jobs", api.createJob)
	})

	r.Group(func(r chi.Router) {
		r.Use(api.rateLimit(ratelimit.ActionDefault))
		r.Get("/jobs/{jobID}", api.jobStatus)
		r.Post("/jobs/{jobID}/fulfill", api.fulfillJob)
		r.Get("/reports/{reportID}", api.getReport)
	})

	wh := webhook.NewHandler(env.Guard, env.Store, env.Orchestrator, webhookSecret)
	r.Group(func(r chi.Router) {
		r.Use(api.rateLimit(ratelimit.ActionWebhook))
		r.Method(http.MethodPost, "/webhooks/payment", wh)
	})

	return r
}

type apiHandlers struct {
	env *appEnv
}

// rateLimit gates a route group under one action's fixed-window budget,
// keyed by client IP.
func (a *apiHandlers) rateLimit(action ratelimit.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			decision := a.env.Limiter.Check(r.Context(), host, action)
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
			if !decision.Allowed {
				retryAfter := decision.RetryAfter(time.Now())
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds()+1)))
				writeJSON(w, http.StatusTooManyRequests, map[string]any{
					"error":            "rate limit exceeded",
					"retry_after_secs": int(retryAfter.Seconds() + 1),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *apiHandlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createJobRequest struct {
	Identifier   string `json:"identifier"`
	BuyerContact string `json:"buyer_contact"`
}

// createJob validates the identifier and records a pending job. Payment and
// the resulting webhook happen elsewhere; this is the purchase entry point.
func (a *apiHandlers) createJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identifier := model.NormalizeIdentifier(req.Identifier)
	kind, err := model.DetectKind(identifier)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "identifier must have 11 or 14 digits")
		return
	}
	if err := model.ValidateIdentifier(identifier); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "identifier check digits do not match")
		return
	}

	job := &model.Job{
		Identifier:   identifier,
		Kind:         kind,
		BuyerContact: req.BuyerContact,
	}
	if err := a.env.Store.CreateJob(r.Context(), job); err != nil {
		zap.L().Error("api: create job", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create job")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"job_id":     job.ID,
		"identifier": model.MaskIdentifier(identifier),
		"kind":       kind,
		"status":     job.Status,
	})
}

func (a *apiHandlers) jobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadJob(w, r)
	if !ok {
		return
	}
	resp := map[string]any{
		"job_id":     job.ID,
		"identifier": model.MaskIdentifier(job.Identifier),
		"kind":       job.Kind,
		"status":     job.Status,
		"stage":      job.Stage,
		"stage_name": model.StageName(job.Stage),
		"updated_at": job.UpdatedAt,
	}
	if job.ReportID != "" {
		resp["report_id"] = job.ReportID
	}
	writeJSON(w, http.StatusOK, resp)
}

// fulfillJob is the synchronous fallback for when the payment webhook was
// lost: the operator confirms payment out of band and triggers fulfillment
// directly.
func (a *apiHandlers) fulfillJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	report, err := a.env.Orchestrator.Fulfill(r.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "job not found")
		default:
			zap.L().Error("api: fulfill job", zap.String("job_id", jobID), zap.Error(err))
			writeError(w, http.StatusBadGateway, "fulfillment failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"report_id":  report.ID,
		"report_url": reportURL(report.ID),
	})
}

func (a *apiHandlers) getReport(w http.ResponseWriter, r *http.Request) {
	reportID := chi.URLParam(r, "reportID")
	report, err := a.env.Store.GetReport(r.Context(), reportID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		zap.L().Error("api: get report", zap.String("report_id", reportID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load report")
		return
	}
	if report.Expired(time.Now().UTC()) {
		writeError(w, http.StatusGone, "report expired")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *apiHandlers) loadJob(w http.ResponseWriter, r *http.Request) (*model.Job, bool) {
	jobID := chi.URLParam(r, "jobID")
	job, err := a.env.Store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return nil, false
		}
		zap.L().Error("api: get job", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load job")
		return nil, false
	}
	return job, true
}

func reportURL(reportID string) string {
	return cfg.Server.ReportBaseURL + "/reports/" + reportID
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
