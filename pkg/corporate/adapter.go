package corporate

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/clearcheck/dossier-api/internal/model"
	"github.com/clearcheck/dossier-api/internal/provider"
)

// AdapterName is the provenance tag for corporate-registry contributions.
const AdapterName = "corporate"

// Adapter exposes the corporate registry through the uniform provider
// contract.
type Adapter struct {
	client Client
}

// NewAdapter wraps a corporate client as a provider adapter.
func NewAdapter(client Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Name() string { return AdapterName }

func (a *Adapter) Supports(kind model.IdentifierKind) bool {
	return kind == model.KindCompany
}

// Fetch resolves the company and normalizes the registry response. The
// resolved name is the legal name; the trade name is kept in the corporate
// section.
func (a *Adapter) Fetch(ctx context.Context, q provider.Query) (*model.ProviderData, error) {
	co, err := a.client.LookupCompany(ctx, q.Identifier)
	if err != nil {
		return nil, provider.WrapError(AdapterName, err)
	}
	if co.LegalName == "" {
		return nil, provider.WrapError(AdapterName, eris.Wrap(provider.ErrNotFound, q.Identifier))
	}

	officers := make([]model.Officer, 0, len(co.Partners))
	for _, p := range co.Partners {
		officers = append(officers, model.Officer{Name: p.Name, Role: p.Role})
	}

	return &model.ProviderData{
		Provider: AdapterName,
		Name:     co.LegalName,
		Corporate: &model.CorporateData{
			LegalName:   co.LegalName,
			TradeName:   co.TradeName,
			OpenedAt:    co.OpenedAt,
			Situation:   co.Situation,
			MainCNAE:    co.MainCNAE,
			Addresses:   co.Addresses,
			Phones:      co.Phones,
			Officers:    officers,
			CapitalBRL:  co.CapitalBRL,
			CompanySize: co.CompanySize,
		},
	}, nil
}
