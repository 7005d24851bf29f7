// Package financial integrates the credit/delinquency registry provider. It
// also returns the subject's registered name, which the aggregator uses as a
// name-resolution fallback when the corporate registry is unavailable.
package financial

import (
	"context"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/clearcheck/dossier-api/internal/fetcher"
)

const defaultBaseURL = "https://api.registro-credito.com.br"

// Client queries the credit registry.
type Client interface {
	LookupRecord(ctx context.Context, identifier string) (*Record, error)
}

// Record is the registry's delinquency view of one identifier.
type Record struct {
	Identifier    string  `json:"ni"`
	Name          string  `json:"nome"`
	Score         int     `json:"score"`
	Delinquencies []Entry `json:"pendencias"`
	Protests      []Entry `json:"protestos"`
}

// Entry is one negative record.
type Entry struct {
	Creditor   string  `json:"credor"`
	AmountBRL  float64 `json:"valor"`
	RecordedAt string  `json:"data"`
	Origin     string  `json:"origem"`
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

// NewClient creates a credit registry client.
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

func (c *httpClient) LookupRecord(ctx context.Context, identifier string) (*Record, error) {
	var rec Record
	err := c.fetch.GetJSON(ctx,
		c.baseURL+"/v2/consultas/"+url.PathEscape(identifier),
		map[string]string{"X-Api-Key": c.apiKey},
		&rec,
	)
	if err != nil {
		return nil, eris.Wrap(err, "financial: lookup record")
	}
	return &rec, nil
}
