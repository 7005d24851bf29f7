// Package courtsearch integrates the per-jurisdiction court-record indices.
// One adapter call fans out across every configured jurisdiction; a single
// jurisdiction failing contributes zero records instead of failing the call.
package courtsearch

import (
	"context"
	"net/url"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/clearcheck/dossier-api/internal/fetcher"
)

// Jurisdiction is one court index endpoint.
type Jurisdiction struct {
	Code    string `yaml:"code"`
	Label   string `yaml:"label"`
	BaseURL string `yaml:"base_url"`
}

// DefaultJurisdictions returns the compiled-in court list used when no
// jurisdictions file is configured.
func DefaultJurisdictions() []Jurisdiction {
	return []Jurisdiction{
		{Code: "tjsp", Label: "TJ-SP", BaseURL: "https://esaj.tjsp.jus.br/api"},
		{Code: "tjrj", Label: "TJ-RJ", BaseURL: "https://www3.tjrj.jus.br/api"},
		{Code: "tjmg", Label: "TJ-MG", BaseURL: "https://pje.tjmg.jus.br/api"},
		{Code: "trt2", Label: "TRT-2", BaseURL: "https://pje.trt2.jus.br/api"},
		{Code: "trf3", Label: "TRF-3", BaseURL: "https://web.trf3.jus.br/api"},
	}
}

// LoadJurisdictions reads a jurisdiction list from a YAML file.
func LoadJurisdictions(path string) ([]Jurisdiction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "courtsearch: read jurisdictions %s", path)
	}
	var wrapper struct {
		Jurisdictions []Jurisdiction `yaml:"jurisdictions"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "courtsearch: parse jurisdictions")
	}
	if len(wrapper.Jurisdictions) == 0 {
		return nil, eris.New("courtsearch: jurisdictions file lists no courts")
	}
	return wrapper.Jurisdictions, nil
}

// Client searches one jurisdiction's index.
type Client interface {
	Search(ctx context.Context, j Jurisdiction, subjectName string) ([]CaseHit, error)
}

// CaseHit is one raw index hit before normalization.
type CaseHit struct {
	Reference string `json:"numero"`
	FiledAt   string `json:"distribuicao"` // YYYY-MM-DD
	CaseClass string `json:"classe"`
	Role      string `json:"participacao"` // source-specific role label
}

// Option configures the client.
type Option func(*httpClient)

// WithFetcher overrides the default HTTP layer.
func WithFetcher(f *fetcher.Client) Option {
	return func(c *httpClient) { c.fetch = f }
}

type httpClient struct {
	apiKey string
	fetch  *fetcher.Client
}

// NewClient creates a court index client. Searches against slow public
// indices get a shorter default timeout than registry lookups.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey: apiKey,
		fetch:  fetcher.New(fetcher.Options{Timeout: 10 * time.Second}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, j Jurisdiction, subjectName string) ([]CaseHit, error) {
	var resp struct {
		Hits []CaseHit `json:"processos"`
	}
	err := c.fetch.GetJSON(ctx,
		j.BaseURL+"/v1/consulta?nome="+url.QueryEscape(subjectName),
		map[string]string{"X-Api-Key": c.apiKey},
		&resp,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "courtsearch: search %s", j.Code)
	}
	return resp.Hits, nil
}
