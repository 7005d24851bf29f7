// Package fetcher is the shared outbound HTTP layer for provider adapters:
// per-host request pacing, retry on transient failures, and JSON decoding.
// Every adapter call is timeout-bounded by the context the aggregator sets.
package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clearcheck/dossier-api/internal/resilience"
)

// Options configures a Client.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	Retry     resilience.RetryConfig

	// PerHost overrides the default pacing for specific hosts.
	PerHost map[string]*rate.Limiter
}

// Client wraps net/http with pacing and retries. Safe for concurrent use.
type Client struct {
	http    *http.Client
	opts    Options
	mu      sync.Mutex
	pacing  map[string]*rate.Limiter
	defRate rate.Limit
	defBur  int
}

// New creates a fetcher client.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "dossier-api/1.0"
	}
	pacing := make(map[string]*rate.Limiter)
	for host, lim := range opts.PerHost {
		pacing[host] = lim
	}
	return &Client{
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:    opts,
		pacing:  pacing,
		defRate: 20,
		defBur:  20,
	}
}

// Do sends the request with pacing and retry, returning the response with an
// already-consumed-safe body. Non-2xx statuses are returned as errors,
// transient ones wrapped for the retry layer.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	return resilience.DoVal(ctx, c.opts.Retry, func(ctx context.Context) (*http.Response, error) {
		if err := c.limiterFor(req.URL).Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: pacing wait")
		}

		cloned := req.Clone(ctx)
		if cloned.Header.Get("User-Agent") == "" {
			cloned.Header.Set("User-Agent", c.opts.UserAgent)
		}

		resp, err := c.http.Do(cloned)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrapf(err, "fetcher: %s %s", req.Method, req.URL), 0)
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			_ = resp.Body.Close()
			err := eris.Errorf("fetcher: http %d from %s: %s", resp.StatusCode, req.URL.Host, string(body))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				zap.L().Warn("fetcher: transient upstream status",
					zap.String("host", req.URL.Host),
					zap.Int("status", resp.StatusCode),
				)
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}
		return resp, nil
	})
}

// GetJSON issues a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return eris.Wrap(err, "fetcher: build request")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrapf(err, "fetcher: decode response from %s", req.URL.Host)
	}
	return nil
}

func (c *Client) limiterFor(u *url.URL) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if lim, ok := c.pacing[u.Host]; ok {
		return lim
	}
	lim := rate.NewLimiter(c.defRate, c.defBur)
	c.pacing[u.Host] = lim
	return lim
}
