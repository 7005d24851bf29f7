// Package websearch integrates the web/news search provider that surfaces
// public mentions of the subject.
package websearch

import (
	"context"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/clearcheck/dossier-api/internal/fetcher"
)

const defaultBaseURL = "https://api.newsindex.io"

// Client runs a mention search.
type Client interface {
	Search(ctx context.Context, query string) ([]Hit, error)
}

// Hit is one raw search result.
type Hit struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Snippet   string `json:"snippet"`
	SiteName  string `json:"site_name"`
	Published string `json:"published_at"`
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

// NewClient creates a web search client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		fetch:   fetcher.New(fetcher.Options{Timeout: 20 * time.Second}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string) ([]Hit, error) {
	var resp struct {
		Results []Hit `json:"results"`
	}
	err := c.fetch.GetJSON(ctx,
		c.baseURL+"/v1/search?q="+url.QueryEscape(query),
		map[string]string{"Authorization": "Bearer " + c.apiKey},
		&resp,
	)
	if err != nil {
		return nil, eris.Wrap(err, "websearch: search")
	}
	return resp.Results, nil
}
