// Package corporate integrates the company-registry provider, the preferred
// name-resolution source for company identifiers.
package corporate

import (
	"context"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/clearcheck/dossier-api/internal/fetcher"
)

const defaultBaseURL = "https://api.registro-empresas.com.br"

// Client queries the corporate registry.
type Client interface {
	LookupCompany(ctx context.Context, identifier string) (*Company, error)
}

// Company is the registry's response for one company id.
type Company struct {
	Identifier  string    `json:"ni"`
	LegalName   string    `json:"razao_social"`
	TradeName   string    `json:"nome_fantasia"`
	OpenedAt    string    `json:"abertura"`
	Situation   string    `json:"situacao"`
	MainCNAE    string    `json:"cnae_principal"`
	Addresses   []string  `json:"enderecos"`
	Phones      []string  `json:"telefones"`
	Partners    []Partner `json:"socios"`
	CapitalBRL  float64   `json:"capital_social"`
	CompanySize string    `json:"porte"`
}

// Partner is one registered partner or officer.
type Partner struct {
	Name string `json:"nome"`
	Role string `json:"qualificacao"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithFetcher overrides the default HTTP layer.
func WithFetcher(f *fetcher.Client) Option {
	return func(c *httpClient) { c.fetch = f }
}

type httpClient struct {
	apiKey  string
	baseURL string
	fetch   *fetcher.Client
}

// NewClient creates a corporate registry client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		fetch:   fetcher.New(fetcher.Options{Timeout: 15 * time.Second}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) LookupCompany(ctx context.Context, identifier string) (*Company, error) {
	var co Company
	err := c.fetch.GetJSON(ctx,
		c.baseURL+"/v1/empresas/"+url.PathEscape(identifier),
		map[string]string{"Authorization": "Bearer " + c.apiKey},
		&co,
	)
	if err != nil {
		return nil, eris.Wrap(err, "corporate: lookup company")
	}
	return &co, nil
}
