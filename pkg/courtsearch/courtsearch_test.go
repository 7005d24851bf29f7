package courtsearch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearcheck/dossier-api/internal/model"
	"github.com/clearcheck/dossier-api/internal/provider"
)

type stubClient struct {
	hits map[string][]CaseHit
	errs map[string]error
}

func (s *stubClient) Search(ctx context.Context, j Jurisdiction, subjectName string) ([]CaseHit, error) {
	if err, ok := s.errs[j.Code]; ok {
		return nil, err
	}
	return s.hits[j.Code], nil
}

func twoCourts() []Jurisdiction {
	return []Jurisdiction{
		{Code: "tjsp", Label: "TJ-SP", BaseURL: "https://tjsp.example"},
		{Code: "trt2", Label: "TRT-2", BaseURL: "https://trt2.example"},
	}
}

func TestAdapter_MergesAllJurisdictions(t *testing.T) {
	client := &stubClient{hits: map[string][]CaseHit{
		"tjsp": {{Reference: "REF-1", FiledAt: "2023-05-10", CaseClass: "Cobrança", Role: "réu"}},
		"trt2": {{Reference: "REF-2", FiledAt: "2024-01-20", CaseClass: "Reclamação Trabalhista", Role: "reclamado"}},
	}}
	a := NewAdapter(client, twoCourts(), time.Second)

	pd, err := a.Fetch(context.Background(), provider.Query{Identifier: "52998224725", Name: "Maria Souza"})
	require.NoError(t, err)
	assert.Len(t, pd.CourtRecords, 2)
	assert.Empty(t, pd.PartialErrors)

	byRef := map[string]model.CourtRecord{}
	for _, r := range pd.CourtRecords {
		byRef[r.Reference] = r
	}
	assert.Equal(t, "tjsp", byRef["REF-1"].Jurisdiction)
	assert.Equal(t, model.RoleDefendant, byRef["REF-1"].Role)
	assert.Equal(t, "courts-trt2", byRef["REF-2"].Source)
	assert.Equal(t, 2023, byRef["REF-1"].FiledAt.Year())
}

func TestAdapter_JurisdictionFailureIsPartial(t *testing.T) {
	client := &stubClient{
		hits: map[string][]CaseHit{
			"tjsp": {{Reference: "REF-1", FiledAt: "2023-05-10", CaseClass: "Cobrança", Role: "autor"}},
		},
		errs: map[string]error{"trt2": errors.New("index timeout")},
	}
	a := NewAdapter(client, twoCourts(), time.Second)

	pd, err := a.Fetch(context.Background(), provider.Query{Identifier: "52998224725", Name: "Maria Souza"})
	require.NoError(t, err)
	// The answering jurisdiction's hits survive the other's outage.
	require.Len(t, pd.CourtRecords, 1)
	assert.Equal(t, "REF-1", pd.CourtRecords[0].Reference)
	require.Len(t, pd.PartialErrors, 1)
	assert.Contains(t, pd.PartialErrors[0], "trt2")
}

func TestAdapter_RequiresResolvedName(t *testing.T) {
	a := NewAdapter(&stubClient{}, twoCourts(), time.Second)

	_, err := a.Fetch(context.Background(), provider.Query{Identifier: "52998224725"})
	require.Error(t, err)

	var perr *provider.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, AdapterName, perr.Provider)
}

func TestNormalizeRole(t *testing.T) {
	cases := map[string]model.CaseRole{
		"Réu":        model.RoleDefendant,
		"executado":  model.RoleDefendant,
		"reclamado":  model.RoleDefendant,
		"Autora":     model.RolePlaintiff,
		"exequente":  model.RolePlaintiff,
		"testemunha": model.RoleWitness,
		"":           model.RoleUnknown,
		"interested": model.RoleUnknown,
	}
	for raw, want := range cases {
		assert.Equal(t, want, normalizeRole(raw), "role %q", raw)
	}
}

func TestNormalizeHit_BadDate(t *testing.T) {
	r := normalizeHit(Jurisdiction{Code: "tjsp"}, CaseHit{Reference: "REF-1", FiledAt: "soon"})
	assert.True(t, r.FiledAt.IsZero())
}

func TestLoadJurisdictions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courts.yaml")
	yaml := `
jurisdictions:
  - code: tjsp
    label: TJ-SP
    base_url: https://esaj.tjsp.jus.br/api
  - code: tjba
    label: TJ-BA
    base_url: https://pje.tjba.jus.br/api
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	list, err := LoadJurisdictions(path)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "tjba", list[1].Code)
}

func TestLoadJurisdictions_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jurisdictions: []"), 0644))

	_, err := LoadJurisdictions(path)
	require.Error(t, err)
}
