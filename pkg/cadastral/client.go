// Package cadastral integrates the national individual-registry provider,
// the primary identity source for individual identifiers.
package cadastral

import (
	"context"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/clearcheck/dossier-api/internal/fetcher"
)

const defaultBaseURL = "https://api.cadastro-nacional.com.br"

// Client queries the cadastral registry.
type Client interface {
	LookupPerson(ctx context.Context, identifier string) (*Person, error)
}

// Person is the registry's response for one individual.
type Person struct {
	Identifier string   `json:"ni"`
	Name       string   `json:"nome"`
	BirthDate  string   `json:"nascimento"`
	Situation  string   `json:"situacao_cadastral"`
	Addresses  []string `json:"enderecos"`
	Phones     []string `json:"telefones"`
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

// NewClient creates a cadastral registry client.
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

func (c *httpClient) LookupPerson(ctx context.Context, identifier string) (*Person, error) {
	var p Person
	err := c.fetch.GetJSON(ctx,
		c.baseURL+"/v1/pessoas/"+url.PathEscape(identifier),
		map[string]string{"Authorization": "Bearer " + c.apiKey},
		&p,
	)
	if err != nil {
		return nil, eris.Wrap(err, "cadastral: lookup person")
	}
	if p.Name == "" {
		return nil, eris.Errorf("cadastral: registry returned no name for %s", identifier)
	}
	return &p, nil
}
