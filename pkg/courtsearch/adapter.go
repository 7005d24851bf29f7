package courtsearch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clearcheck/dossier-api/internal/model"
	"github.com/clearcheck/dossier-api/internal/provider"
)

// AdapterName is the provenance tag prefix for court-record contributions.
// Individual records are tagged "courts-<jurisdiction>".
const AdapterName = "courts"

// maxConcurrentSearches bounds the per-call fan-out so a job does not open a
// connection to every court at once.
const maxConcurrentSearches = 8

// Adapter fans one search out across every configured jurisdiction and
// merges the hits. It needs the resolved subject name, so the aggregator
// only invokes it after identity resolution.
type Adapter struct {
	client        Client
	jurisdictions []Jurisdiction
	perCourtWait  time.Duration
}

// NewAdapter wraps a court index client as a provider adapter.
func NewAdapter(client Client, jurisdictions []Jurisdiction, perCourtTimeout time.Duration) *Adapter {
	if len(jurisdictions) == 0 {
		jurisdictions = DefaultJurisdictions()
	}
	if perCourtTimeout <= 0 {
		perCourtTimeout = 10 * time.Second
	}
	return &Adapter{client: client, jurisdictions: jurisdictions, perCourtWait: perCourtTimeout}
}

func (a *Adapter) Name() string { return AdapterName }

func (a *Adapter) Supports(model.IdentifierKind) bool { return true }

// Fetch searches every jurisdiction in parallel. A jurisdiction that times
// out or errors contributes zero records and a partial-error note; the call
// itself only fails when no subject name is available to search with.
func (a *Adapter) Fetch(ctx context.Context, q provider.Query) (*model.ProviderData, error) {
	if q.Name == "" {
		return nil, provider.WrapError(AdapterName, fmt.Errorf("subject name not resolved for %s", q.Identifier))
	}

	var mu sync.Mutex
	var records []model.CourtRecord
	var partials []string

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSearches)
	for _, j := range a.jurisdictions {
		g.Go(func() error {
			courtCtx, cancel := context.WithTimeout(ctx, a.perCourtWait)
			defer cancel()

			hits, err := a.client.Search(courtCtx, j, q.Name)
			if err != nil {
				zap.L().Warn("courtsearch: jurisdiction failed, contributing no records",
					zap.String("jurisdiction", j.Code),
					zap.String("identifier", q.Identifier),
					zap.Error(err),
				)
				mu.Lock()
				partials = append(partials, j.Code+": "+err.Error())
				mu.Unlock()
				return nil // partial, never fatal
			}

			normalized := make([]model.CourtRecord, 0, len(hits))
			for _, h := range hits {
				normalized = append(normalized, normalizeHit(j, h))
			}
			mu.Lock()
			records = append(records, normalized...)
			mu.Unlock()
			return nil
		})
	}
	// Branches never return errors; the group is the join barrier.
	_ = g.Wait()

	return &model.ProviderData{
		Provider:      AdapterName,
		CourtRecords:  records,
		PartialErrors: partials,
	}, nil
}

func normalizeHit(j Jurisdiction, h CaseHit) model.CourtRecord {
	filedAt, err := time.Parse("2006-01-02", h.FiledAt)
	if err != nil {
		filedAt = time.Time{}
	}
	return model.CourtRecord{
		Jurisdiction: j.Code,
		Reference:    h.Reference,
		FiledAt:      filedAt,
		CaseClass:    h.CaseClass,
		Role:         normalizeRole(h.Role),
		Source:       AdapterName + "-" + j.Code,
	}
}

// normalizeRole maps the index's participation label to the shared role
// vocabulary. Labels vary per court.
func normalizeRole(raw string) model.CaseRole {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "reu", "réu", "ré", "executado", "reclamado", "defendant":
		return model.RoleDefendant
	case "autor", "autora", "exequente", "reclamante", "requerente", "plaintiff":
		return model.RolePlaintiff
	case "testemunha", "witness":
		return model.RoleWitness
	default:
		return model.RoleUnknown
	}
}
