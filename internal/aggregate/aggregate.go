// Package aggregate fans a subject query out to the provider adapters that
// apply to its identifier kind and folds the responses into report material.
// Every source failure except identity resolution is recovered locally: the
// caller always gets a complete structure with some fields empty.
package aggregate

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clearcheck/dossier-api/internal/courts"
	"github.com/clearcheck/dossier-api/internal/model"
	"github.com/clearcheck/dossier-api/internal/provider"
	"github.com/clearcheck/dossier-api/internal/resilience"
	"github.com/clearcheck/dossier-api/pkg/cadastral"
	"github.com/clearcheck/dossier-api/pkg/corporate"
	"github.com/clearcheck/dossier-api/pkg/courtsearch"
	"github.com/clearcheck/dossier-api/pkg/financial"
	"github.com/clearcheck/dossier-api/pkg/websearch"
)

// ErrIdentityResolution is returned when no source can produce a display name
// for the subject. Without a name the court and web stages have nothing to
// search for, so this is the one aggregation failure that escalates.
var ErrIdentityResolution = eris.New("aggregate: identity resolution failed")

const defaultCallTimeout = 20 * time.Second

// Aggregator selects and invokes adapters from the registry, one circuit
// breaker per provider.
type Aggregator struct {
	registry    *provider.Registry
	breakers    *resilience.ProviderBreakers
	callTimeout time.Duration
}

// New creates an Aggregator. A zero callTimeout selects the default.
func New(registry *provider.Registry, breakers *resilience.ProviderBreakers, callTimeout time.Duration) *Aggregator {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &Aggregator{registry: registry, breakers: breakers, callTimeout: callTimeout}
}

// Identity is the outcome of the name-resolution stage.
type Identity struct {
	DisplayName string
	Subject     *model.SubjectData
	Corporate   *model.CorporateData
	Sources     []string
}

// ResolveIdentity resolves the subject's display name. Individuals go through
// the cadastral registry, which is the sole source and therefore fatal on
// failure. Companies prefer the corporate registry and fall back to the
// credit registry, which carries a legal name on its records.
func (a *Aggregator) ResolveIdentity(ctx context.Context, q provider.Query) (*Identity, error) {
	if q.Kind == model.KindCompany {
		return a.resolveCompany(ctx, q)
	}

	pd, err := a.fetch(ctx, cadastral.AdapterName, q)
	if err != nil {
		return nil, eris.Wrap(ErrIdentityResolution, err.Error())
	}
	return &Identity{
		DisplayName: pd.Name,
		Subject:     pd.Subject,
		Sources:     []string{pd.Provider},
	}, nil
}

func (a *Aggregator) resolveCompany(ctx context.Context, q provider.Query) (*Identity, error) {
	pd, err := a.fetch(ctx, corporate.AdapterName, q)
	if err == nil {
		return &Identity{
			DisplayName: pd.Name,
			Corporate:   pd.Corporate,
			Sources:     []string{pd.Provider},
		}, nil
	}
	zap.L().Warn("aggregate: corporate registry unavailable, trying credit registry for name",
		zap.String("identifier", model.MaskIdentifier(q.Identifier)),
		zap.Error(err))

	// The credit registry carries the registered legal name on its records,
	// which is enough to run the remaining stages.
	fallback, ferr := a.fetch(ctx, financial.AdapterName, q)
	if ferr != nil || fallback.Name == "" {
		return nil, eris.Wrap(ErrIdentityResolution, err.Error())
	}
	return &Identity{
		DisplayName: fallback.Name,
		Sources:     []string{fallback.Provider},
	}, nil
}

// Financial fetches delinquency data. Failures are recovered as an empty
// contribution.
func (a *Aggregator) Financial(ctx context.Context, q provider.Query) (*model.FinancialData, []string) {
	pd, err := a.fetch(ctx, financial.AdapterName, q)
	if err != nil {
		a.logRecovered(financial.AdapterName, q, err)
		return nil, nil
	}
	return pd.Financial, []string{pd.Provider}
}

// Courts fetches court records across jurisdictions, then deduplicates and
// ranks them by gravity. Failures are recovered as an empty contribution;
// per-jurisdiction failures inside the adapter surface as partial errors and
// never discard the hits from the jurisdictions that answered.
func (a *Aggregator) Courts(ctx context.Context, q provider.Query) ([]model.CourtRecord, []string) {
	pd, err := a.fetch(ctx, courtsearch.AdapterName, q)
	if err != nil {
		a.logRecovered(courtsearch.AdapterName, q, err)
		return nil, nil
	}
	for _, partial := range pd.PartialErrors {
		zap.L().Warn("aggregate: jurisdiction skipped",
			zap.String("provider", pd.Provider),
			zap.String("cause", partial))
	}
	return courts.DedupAndRank(pd.CourtRecords), []string{pd.Provider}
}

// Mentions fetches web mentions of the subject. Failures are recovered as an
// empty contribution.
func (a *Aggregator) Mentions(ctx context.Context, q provider.Query) ([]model.WebMention, []string) {
	pd, err := a.fetch(ctx, websearch.AdapterName, q)
	if err != nil {
		a.logRecovered(websearch.AdapterName, q, err)
		return nil, nil
	}
	return pd.WebMentions, []string{pd.Provider}
}

// fetch runs one adapter call under the per-call timeout and the provider's
// circuit breaker.
func (a *Aggregator) fetch(ctx context.Context, name string, q provider.Query) (*model.ProviderData, error) {
	adapter := a.registry.Get(name)
	if adapter == nil {
		return nil, eris.Errorf("aggregate: adapter %s not registered", name)
	}
	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	breaker := a.breakers.Get(name)
	return resilience.ExecuteVal(callCtx, breaker, func(ctx context.Context) (*model.ProviderData, error) {
		return adapter.Fetch(ctx, q)
	})
}

func (a *Aggregator) logRecovered(name string, q provider.Query, err error) {
	zap.L().Warn("aggregate: source failed, continuing without it",
		zap.String("provider", name),
		zap.String("identifier", model.MaskIdentifier(q.Identifier)),
		zap.Error(err))
}
