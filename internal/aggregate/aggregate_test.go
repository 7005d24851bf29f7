package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearcheck/dossier-api/internal/model"
	"github.com/clearcheck/dossier-api/internal/provider"
	"github.com/clearcheck/dossier-api/internal/resilience"
)

type stubAdapter struct {
	name  string
	kinds map[model.IdentifierKind]bool
	data  *model.ProviderData
	err   error
	calls int
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Supports(kind model.IdentifierKind) bool {
	if s.kinds == nil {
		return true
	}
	return s.kinds[kind]
}

func (s *stubAdapter) Fetch(ctx context.Context, q provider.Query) (*model.ProviderData, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.data, nil
}

func newTestAggregator(adapters ...provider.Adapter) *Aggregator {
	reg := provider.NewRegistry()
	for _, a := range adapters {
		reg.Register(a)
	}
	breakers := resilience.NewProviderBreakers(resilience.BreakerConfig{
		FailureThreshold: 100,
		ResetTimeout:     time.Second,
	})
	return New(reg, breakers, 5*time.Second)
}

func TestResolveIdentity_Individual(t *testing.T) {
	cad := &stubAdapter{name: "cadastral", data: &model.ProviderData{
		Provider: "cadastral",
		Name:     "Maria Souza",
		Subject:  &model.SubjectData{Name: "Maria Souza"},
	}}
	agg := newTestAggregator(cad)

	id, err := agg.ResolveIdentity(context.Background(), provider.Query{
		Identifier: "52998224725", Kind: model.KindIndividual,
	})
	require.NoError(t, err)
	assert.Equal(t, "Maria Souza", id.DisplayName)
	require.NotNil(t, id.Subject)
	assert.Equal(t, []string{"cadastral"}, id.Sources)
}

func TestResolveIdentity_IndividualFailureIsFatal(t *testing.T) {
	cad := &stubAdapter{name: "cadastral", err: errors.New("registry down")}
	agg := newTestAggregator(cad)

	_, err := agg.ResolveIdentity(context.Background(), provider.Query{
		Identifier: "52998224725", Kind: model.KindIndividual,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIdentityResolution))
}

func TestResolveIdentity_CompanyPrefersCorporate(t *testing.T) {
	corp := &stubAdapter{name: "corporate", data: &model.ProviderData{
		Provider:  "corporate",
		Name:      "Acme Ltda",
		Corporate: &model.CorporateData{LegalName: "Acme Ltda"},
	}}
	fin := &stubAdapter{name: "financial", data: &model.ProviderData{
		Provider: "financial",
		Name:     "Acme Comercio Ltda",
	}}
	agg := newTestAggregator(corp, fin)

	id, err := agg.ResolveIdentity(context.Background(), provider.Query{
		Identifier: "11222333000181", Kind: model.KindCompany,
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltda", id.DisplayName)
	assert.Zero(t, fin.calls)
}

func TestResolveIdentity_CompanyFallsBackToFinancialName(t *testing.T) {
	corp := &stubAdapter{name: "corporate", err: errors.New("registry down")}
	fin := &stubAdapter{name: "financial", data: &model.ProviderData{
		Provider: "financial",
		Name:     "Acme Ltda",
	}}
	agg := newTestAggregator(corp, fin)

	id, err := agg.ResolveIdentity(context.Background(), provider.Query{
		Identifier: "11222333000181", Kind: model.KindCompany,
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltda", id.DisplayName)
	assert.Equal(t, []string{"financial"}, id.Sources)
}

func TestResolveIdentity_CompanyNoNameAnywhere(t *testing.T) {
	corp := &stubAdapter{name: "corporate", err: errors.New("registry down")}
	fin := &stubAdapter{name: "financial", err: errors.New("also down")}
	agg := newTestAggregator(corp, fin)

	_, err := agg.ResolveIdentity(context.Background(), provider.Query{
		Identifier: "11222333000181", Kind: model.KindCompany,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIdentityResolution))
}

func TestFinancial_FailureRecoveredAsEmpty(t *testing.T) {
	fin := &stubAdapter{name: "financial", err: errors.New("timeout")}
	agg := newTestAggregator(fin)

	data, sources := agg.Financial(context.Background(), provider.Query{
		Identifier: "52998224725", Kind: model.KindIndividual,
	})
	assert.Nil(t, data)
	assert.Empty(t, sources)
}

func TestCourts_DedupsAndRanks(t *testing.T) {
	filed := time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC)
	courtsStub := &stubAdapter{name: "courts", data: &model.ProviderData{
		Provider: "courts",
		CourtRecords: []model.CourtRecord{
			{Jurisdiction: "tjsp", Reference: "REF-1", FiledAt: filed, CaseClass: "Cobrança", Role: model.RolePlaintiff},
			{Jurisdiction: "tjrj", Reference: "REF-1", FiledAt: filed, CaseClass: "Cobrança", Role: model.RolePlaintiff},
			{Jurisdiction: "trt2", Reference: "REF-2", FiledAt: filed, CaseClass: "Reclamação Trabalhista", Role: model.RoleDefendant},
		},
	}}
	agg := newTestAggregator(courtsStub)

	records, sources := agg.Courts(context.Background(), provider.Query{
		Identifier: "52998224725", Kind: model.KindIndividual, Name: "Maria Souza",
	})
	require.Len(t, records, 2)
	// The labor case against the subject outranks the collection case they filed.
	assert.Equal(t, "REF-2", records[0].Reference)
	assert.Equal(t, []string{"courts"}, sources)
}

func TestCourts_AdapterFailureRecovered(t *testing.T) {
	courtsStub := &stubAdapter{name: "courts", err: errors.New("all jurisdictions down")}
	agg := newTestAggregator(courtsStub)

	records, sources := agg.Courts(context.Background(), provider.Query{
		Identifier: "52998224725", Kind: model.KindIndividual, Name: "Maria Souza",
	})
	assert.Empty(t, records)
	assert.Empty(t, sources)
}

func TestMentions(t *testing.T) {
	web := &stubAdapter{name: "websearch", data: &model.ProviderData{
		Provider: "websearch",
		WebMentions: []model.WebMention{
			{Title: "Local news", URL: "https://news.example/1"},
		},
	}}
	agg := newTestAggregator(web)

	mentions, sources := agg.Mentions(context.Background(), provider.Query{
		Identifier: "52998224725", Kind: model.KindIndividual, Name: "Maria Souza",
	})
	require.Len(t, mentions, 1)
	assert.Equal(t, []string{"websearch"}, sources)
}

func TestFetch_UnregisteredAdapter(t *testing.T) {
	agg := newTestAggregator()

	_, err := agg.ResolveIdentity(context.Background(), provider.Query{
		Identifier: "52998224725", Kind: model.KindIndividual,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIdentityResolution))
}
