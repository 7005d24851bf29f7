package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearcheck/dossier-api/internal/aggregate"
	"github.com/clearcheck/dossier-api/internal/config"
	"github.com/clearcheck/dossier-api/internal/kv"
	"github.com/clearcheck/dossier-api/internal/model"
	"github.com/clearcheck/dossier-api/internal/notify"
	"github.com/clearcheck/dossier-api/internal/orchestrator"
	"github.com/clearcheck/dossier-api/internal/provider"
	"github.com/clearcheck/dossier-api/internal/ratelimit"
	"github.com/clearcheck/dossier-api/internal/resilience"
	"github.com/clearcheck/dossier-api/internal/store"
	"github.com/clearcheck/dossier-api/internal/sweep"
	"github.com/clearcheck/dossier-api/internal/webhook"
	"github.com/clearcheck/dossier-api/pkg/summarize"
)

const (
	validIndividual = "52998224725"
	validCompany    = "11222333000181"
)

type fakeAdapter struct {
	name string
	data *model.ProviderData
}

func (f *fakeAdapter) Name() string                       { return f.name }
func (f *fakeAdapter) Supports(model.IdentifierKind) bool { return true }
func (f *fakeAdapter) Fetch(ctx context.Context, q provider.Query) (*model.ProviderData, error) {
	return f.data, nil
}

type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(ctx context.Context, in summarize.Input) (*summarize.Summary, error) {
	return &summarize.Summary{Synopsis: "Clean record for " + in.DisplayName + "."}, nil
}

func newTestEnv(t *testing.T) *appEnv {
	t.Helper()
	cfg = &config.Config{}
	cfg.Server.ReportBaseURL = "https://dossier.example"

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	reg := provider.NewRegistry()
	reg.Register(&fakeAdapter{name: "cadastral", data: &model.ProviderData{
		Provider: "cadastral",
		Name:     "Maria Souza",
		Subject:  &model.SubjectData{Name: "Maria Souza"},
	}})
	reg.Register(&fakeAdapter{name: "corporate", data: &model.ProviderData{
		Provider:  "corporate",
		Name:      "Acme Ltda",
		Corporate: &model.CorporateData{LegalName: "Acme Ltda"},
	}})
	reg.Register(&fakeAdapter{name: "financial", data: &model.ProviderData{
		Provider:  "financial",
		Financial: &model.FinancialData{},
	}})
	reg.Register(&fakeAdapter{name: "courts", data: &model.ProviderData{Provider: "courts"}})
	reg.Register(&fakeAdapter{name: "websearch", data: &model.ProviderData{Provider: "websearch"}})

	breakers := resilience.NewProviderBreakers(resilience.BreakerConfig{FailureThreshold: 100, ResetTimeout: time.Second})
	agg := aggregate.New(reg, breakers, 5*time.Second)
	dlq := resilience.NewDeadLetterLog()

	orch := orchestrator.New(st, agg, fakeSummarizer{},
		notify.NewWebhookDispatcher(""), dlq,
		orchestrator.Config{
			ReportBaseURL: cfg.Server.ReportBaseURL,
			Retry:         resilience.RetryConfig{MaxAttempts: 1},
		})

	return &appEnv{
		Store:        st,
		Limiter:      ratelimit.New(kv.NewMemoryCounters(time.Hour), nil),
		Guard:        webhook.NewGuard(kv.NewMemoryMarkers(0), time.Hour),
		Orchestrator: orch,
		Sweeper:      sweep.New(st, nil, 0),
		DLQ:          dlq,
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "203.0.113.7:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env, nil, "")

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestCreateJob_Individual(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env, nil, "")

	rec := doJSON(t, router, http.MethodPost, "/jobs", map[string]string{
		"identifier":    "529.982.247-25",
		"buyer_contact": "buyer@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decode(t, rec)
	assert.Equal(t, "individual", resp["kind"])
	assert.Equal(t, "pending", resp["status"])
	// Raw digits never appear in responses.
	assert.NotContains(t, rec.Body.String(), validIndividual)

	job, err := env.Store.GetJob(context.Background(), resp["job_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, validIndividual, job.Identifier)
}

func TestCreateJob_Company(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env, nil, "")

	rec := doJSON(t, router, http.MethodPost, "/jobs", map[string]string{
		"identifier": "11.222.333/0001-81",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "company", decode(t, rec)["kind"])
}

func TestCreateJob_BadLength(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env, nil, "")

	rec := doJSON(t, router, http.MethodPost, "/jobs", map[string]string{"identifier": "12345"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateJob_BadCheckDigits(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env, nil, "")

	rec := doJSON(t, router, http.MethodPost, "/jobs", map[string]string{"identifier": "52998224724"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestJobStatus(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env, nil, "")

	job := &model.Job{
		Identifier: validIndividual,
		Kind:       model.KindIndividual,
		Status:     model.JobStatusProcessing,
		Stage:      model.StageCourts,
	}
	require.NoError(t, env.Store.CreateJob(context.Background(), job))

	rec := doJSON(t, router, http.MethodGet, "/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode(t, rec)
	assert.Equal(t, "processing", resp["status"])
	assert.Equal(t, float64(model.StageCourts), resp["stage"])
	assert.Equal(t, "courts", resp["stage_name"])
}

func TestJobStatus_NotFound(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env, nil, "")

	rec := doJSON(t, router, http.MethodGet, "/jobs/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFulfillFallback(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env, nil, "")

	job := &model.Job{
		Identifier: validIndividual,
		Kind:       model.KindIndividual,
		Status:     model.JobStatusPaid,
		PaymentID:  "pay-1",
	}
	require.NoError(t, env.Store.CreateJob(context.Background(), job))

	rec := doJSON(t, router, http.MethodPost, "/jobs/"+job.ID+"/fulfill", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode(t, rec)
	reportID := resp["report_id"].(string)
	assert.Equal(t, "https://dossier.example/reports/"+reportID, resp["report_url"])

	got := doJSON(t, router, http.MethodGet, "/reports/"+reportID, nil)
	require.Equal(t, http.StatusOK, got.Code)
	assert.Contains(t, got.Body.String(), "Maria Souza")
}

func TestGetReport_NotFound(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env, nil, "")

	rec := doJSON(t, router, http.MethodGet, "/reports/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit_ValidateAction(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env, nil, "")

	// The validate action allows 10 per minute per client.
	for i := 0; i < 10; i++ {
		rec := doJSON(t, router, http.MethodPost, "/jobs", map[string]string{"identifier": "529.982.247-25"})
		require.Equal(t, http.StatusCreated, rec.Code, "request %d", i+1)
	}

	rec := doJSON(t, router, http.MethodPost, "/jobs", map[string]string{"identifier": "529.982.247-25"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	resp := decode(t, rec)
	assert.Equal(t, "rate limit exceeded", resp["error"])
	assert.NotZero(t, resp["retry_after_secs"])
}

func TestWebhookRoute(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env, nil, "")

	job := &model.Job{Identifier: validIndividual, Kind: model.KindIndividual}
	require.NoError(t, env.Store.CreateJob(context.Background(), job))

	rec := doJSON(t, router, http.MethodPost, "/webhooks/payment", map[string]string{
		"event_type":         "payment.confirmed",
		"payment_id":         "pay-77",
		"external_reference": job.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["received"])
}
