package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clearcheck/dossier-api/internal/aggregate"
	"github.com/clearcheck/dossier-api/internal/fetcher"
	"github.com/clearcheck/dossier-api/internal/kv"
	"github.com/clearcheck/dossier-api/internal/notify"
	"github.com/clearcheck/dossier-api/internal/orchestrator"
	"github.com/clearcheck/dossier-api/internal/provider"
	"github.com/clearcheck/dossier-api/internal/ratelimit"
	"github.com/clearcheck/dossier-api/internal/resilience"
	"github.com/clearcheck/dossier-api/internal/store"
	"github.com/clearcheck/dossier-api/internal/sweep"
	"github.com/clearcheck/dossier-api/internal/webhook"
	"github.com/clearcheck/dossier-api/pkg/cadastral"
	"github.com/clearcheck/dossier-api/pkg/corporate"
	"github.com/clearcheck/dossier-api/pkg/courtsearch"
	"github.com/clearcheck/dossier-api/pkg/financial"
	"github.com/clearcheck/dossier-api/pkg/payment"
	"github.com/clearcheck/dossier-api/pkg/summarize"
	"github.com/clearcheck/dossier-api/pkg/websearch"
)

const userAgent = "dossier-api/1.0"

// appEnv is the wired application: one of everything, shared by the serve,
// run and sweep commands.
type appEnv struct {
	Store        store.Store
	Limiter      *ratelimit.Limiter
	Guard        *webhook.Guard
	Orchestrator *orchestrator.Orchestrator
	Sweeper      *sweep.Sweeper
	DLQ          *resilience.DeadLetterLog

	redisClient *redis.Client
}

// initApp builds the application from the loaded config, migrating the store
// on the way up.
func initApp(ctx context.Context) (*appEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	env := &appEnv{Store: st, DLQ: resilience.NewDeadLetterLog()}

	counters, markers := env.openKV()
	env.Limiter = ratelimit.New(counters, actionLimits())
	env.Guard = webhook.NewGuard(markers, 0)

	registry, err := buildRegistry()
	if err != nil {
		env.Close()
		return nil, err
	}
	breakers := resilience.NewProviderBreakers(resilience.BreakerConfig{})
	aggregator := aggregate.New(registry, breakers, cfg.Fulfill.CallTimeout())

	summarizer := summarize.NewClient(cfg.Anthropic.Key,
		summarize.WithModel(cfg.Anthropic.Model),
		summarize.WithBaseURL(cfg.Anthropic.BaseURL))

	retry := resilience.DefaultRetryConfig()
	if cfg.Fulfill.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.Fulfill.RetryAttempts
	}
	env.Orchestrator = orchestrator.New(st, aggregator, summarizer,
		notify.NewWebhookDispatcher(cfg.Notify.WebhookURL), env.DLQ,
		orchestrator.Config{
			ReportTTL:     cfg.Fulfill.ReportTTL(),
			ReportBaseURL: cfg.Server.ReportBaseURL,
			Retry:         retry,
		})

	payments := payment.NewClient(cfg.Payment.Key, payment.WithBaseURL(cfg.Payment.BaseURL))
	env.Sweeper = sweep.New(st, payments, cfg.Sweep.StaleAfter())

	return env, nil
}

func (e *appEnv) Close() {
	if e.redisClient != nil {
		e.redisClient.Close() //nolint:errcheck
	}
	if e.Store != nil {
		e.Store.Close() //nolint:errcheck
	}
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store: database_url required for postgres driver")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Store.Driver)
	}
}

// openKV selects the counter/marker backend. Redis when configured, so all
// nodes share limits and webhook markers; in-process otherwise.
func (e *appEnv) openKV() (kv.Counters, kv.Markers) {
	if cfg.Redis.Addr == "" {
		zap.L().Info("kv: no redis configured, using in-process backend")
		return kv.NewMemoryCounters(time.Hour), kv.NewMemoryMarkers(0)
	}
	e.redisClient = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return kv.NewRedisCounters(e.redisClient), kv.NewRedisMarkers(e.redisClient)
}

func actionLimits() map[ratelimit.Action]ratelimit.Limit {
	limits := ratelimit.DefaultLimits()
	for name, override := range cfg.RateLimit.Actions {
		limits[ratelimit.Action(name)] = ratelimit.Limit{
			MaxRequests: int64(override.MaxRequests),
			Window:      time.Duration(override.WindowSecs) * time.Second,
		}
	}
	return limits
}

func buildRegistry() (*provider.Registry, error) {
	f := fetcher.New(fetcher.Options{UserAgent: userAgent})

	jurisdictions := courtsearch.DefaultJurisdictions()
	if cfg.Courts.JurisdictionsFile != "" {
		loaded, err := courtsearch.LoadJurisdictions(cfg.Courts.JurisdictionsFile)
		if err != nil {
			return nil, err
		}
		jurisdictions = loaded
	}

	registry := provider.NewRegistry()
	registry.Register(cadastral.NewAdapter(cadastral.NewClient(cfg.Cadastral.Key,
		cadastral.WithBaseURL(cfg.Cadastral.BaseURL), cadastral.WithFetcher(f))))
	registry.Register(corporate.NewAdapter(corporate.NewClient(cfg.Corporate.Key,
		corporate.WithBaseURL(cfg.Corporate.BaseURL), corporate.WithFetcher(f))))
	registry.Register(financial.NewAdapter(financial.NewClient(cfg.Financial.Key,
		financial.WithBaseURL(cfg.Financial.BaseURL), financial.WithFetcher(f))))
	registry.Register(courtsearch.NewAdapter(courtsearch.NewClient(cfg.Courts.Key,
		courtsearch.WithFetcher(f)), jurisdictions,
		time.Duration(cfg.Courts.PerCourtTimeoutS)*time.Second))
	registry.Register(websearch.NewAdapter(websearch.NewClient(cfg.Websearch.Key,
		websearch.WithBaseURL(cfg.Websearch.BaseURL), websearch.WithFetcher(f))))
	return registry, nil
}
