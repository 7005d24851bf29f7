package financial

import (
	"context"

	"github.com/clearcheck/dossier-api/internal/model"
	"github.com/clearcheck/dossier-api/internal/provider"
)

// AdapterName is the provenance tag for credit-registry contributions.
const AdapterName = "financial"

// Adapter exposes the credit registry through the uniform provider contract.
// It applies to both identifier kinds.
type Adapter struct {
	client Client
}

// NewAdapter wraps a financial client as a provider adapter.
func NewAdapter(client Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Name() string { return AdapterName }

func (a *Adapter) Supports(model.IdentifierKind) bool { return true }

// Fetch queries the registry and normalizes its entries.
func (a *Adapter) Fetch(ctx context.Context, q provider.Query) (*model.ProviderData, error) {
	rec, err := a.client.LookupRecord(ctx, q.Identifier)
	if err != nil {
		return nil, provider.WrapError(AdapterName, err)
	}

	return &model.ProviderData{
		Provider: AdapterName,
		Name:     rec.Name,
		Financial: &model.FinancialData{
			Score:         rec.Score,
			Delinquencies: toDelinquencies(rec.Delinquencies),
			Protests:      toDelinquencies(rec.Protests),
		},
	}, nil
}

func toDelinquencies(entries []Entry) []model.Delinquency {
	out := make([]model.Delinquency, 0, len(entries))
	for _, e := range entries {
		out = append(out, model.Delinquency{
			Creditor:   e.Creditor,
			AmountBRL:  e.AmountBRL,
			RecordedAt: e.RecordedAt,
			Origin:     e.Origin,
		})
	}
	return out
}
