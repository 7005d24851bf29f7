// Package notify dispatches the report-ready notification. Dispatch is
// fire-and-forget from the orchestrator's perspective: failures are logged
// and recorded in the dead-letter log, never retried inline.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Message is one report-ready notification. The identifier is always masked
// before it reaches this package's callers' logs or the delivery channel.
type Message struct {
	Contact          string `json:"contact"`
	MaskedIdentifier string `json:"masked_identifier"`
	ReportURL        string `json:"report_url"`
}

// Dispatcher sends notifications.
type Dispatcher interface {
	NotifyReportReady(ctx context.Context, msg Message) error
}

// WebhookDispatcher posts notifications to a delivery webhook (the mailer
// service sits behind it).
type WebhookDispatcher struct {
	url  string
	http *http.Client
}

// NewWebhookDispatcher creates a dispatcher posting to url.
func NewWebhookDispatcher(url string) *WebhookDispatcher {
	return &WebhookDispatcher{
		url:  url,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// NotifyReportReady implements Dispatcher.
func (d *WebhookDispatcher) NotifyReportReady(ctx context.Context, msg Message) error {
	if d.url == "" {
		zap.L().Debug("notify: no webhook configured, skipping dispatch")
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return eris.Wrap(err, "notify: marshal message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "notify: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: send")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return eris.Errorf("notify: delivery webhook returned http %d", resp.StatusCode)
	}
	return nil
}
