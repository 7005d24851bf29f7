package cadastral

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/clearcheck/dossier-api/internal/model"
	"github.com/clearcheck/dossier-api/internal/provider"
)

// AdapterName is the provenance tag for cadastral contributions.
const AdapterName = "cadastral"

// Adapter exposes the cadastral registry through the uniform provider
// contract. It is the identity-resolution source for individuals, so its
// failure is the one the aggregator escalates.
type Adapter struct {
	client Client
}

// NewAdapter wraps a cadastral client as a provider adapter.
func NewAdapter(client Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Name() string { return AdapterName }

func (a *Adapter) Supports(kind model.IdentifierKind) bool {
	return kind == model.KindIndividual
}

// Fetch resolves the individual and normalizes the registry response.
func (a *Adapter) Fetch(ctx context.Context, q provider.Query) (*model.ProviderData, error) {
	p, err := a.client.LookupPerson(ctx, q.Identifier)
	if err != nil {
		return nil, provider.WrapError(AdapterName, err)
	}
	if p.Name == "" {
		return nil, provider.WrapError(AdapterName, eris.Wrap(provider.ErrNotFound, q.Identifier))
	}
	return &model.ProviderData{
		Provider: AdapterName,
		Name:     p.Name,
		Subject: &model.SubjectData{
			Name:      p.Name,
			BirthDate: p.BirthDate,
			Situation: p.Situation,
			Addresses: p.Addresses,
			Phones:    p.Phones,
		},
	}, nil
}
