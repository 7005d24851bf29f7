// Package summarize generates the plain-language report synopsis and the
// per-mention sentiment labels via the Anthropic API.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/clearcheck/dossier-api/internal/model"
)

const (
	defaultModel     = "claude-haiku-4-5-20251001"
	defaultMaxTokens = 1500
)

// Input is the merged payload the synopsis is generated from.
type Input struct {
	DisplayName  string
	Kind         model.IdentifierKind
	Financial    *model.FinancialData
	CourtRecords []model.CourtRecord
	Mentions     []model.WebMention
}

// Summary is the structured result of one summarization call.
type Summary struct {
	Synopsis string
	// MentionSentiments maps mention URL to "positive", "neutral" or
	// "negative"; the orchestrator back-applies these to the payload.
	MentionSentiments map[string]string
}

// Client produces report summaries.
type Client interface {
	Summarize(ctx context.Context, in Input) (*Summary, error)
}

// Option configures the client.
type Option func(*sdkClient)

// WithModel overrides the default model.
func WithModel(m string) Option {
	return func(c *sdkClient) { c.model = m }
}

// WithBaseURL points the SDK at a different endpoint, for tests.
func WithBaseURL(u string) Option {
	return func(c *sdkClient) { c.baseURL = u }
}

type sdkClient struct {
	model   string
	baseURL string
	client  sdk.Client
}

// NewClient creates a summarizer backed by the official SDK.
func NewClient(apiKey string, opts ...Option) Client {
	c := &sdkClient{model: defaultModel}
	for _, o := range opts {
		o(c)
	}
	sdkOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if c.baseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(c.baseURL))
	}
	c.client = sdk.NewClient(sdkOpts...)
	return c
}

const systemPrompt = `You summarize background-check data for a lay reader.
Respond with a single JSON object:
{"synopsis": "<2-4 sentence plain-language summary>",
 "sentiments": [{"url": "<mention url>", "sentiment": "positive|neutral|negative"}]}
Do not interpret beyond the data given. If there are no negative findings,
say so plainly.`

func (c *sdkClient) Summarize(ctx context.Context, in Input) (*Summary, error) {
	prompt, err := buildPrompt(in)
	if err != nil {
		return nil, err
	}

	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: defaultMaxTokens,
		System:    []sdk.TextBlockParam{{Text: systemPrompt}},
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
	})
	if err != nil {
		return nil, eris.Wrap(err, "summarize: create message")
	}

	var text strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			text.WriteString(b.Text)
		}
	}
	return parseSummary(text.String())
}

func buildPrompt(in Input) (string, error) {
	payload := map[string]any{
		"subject_name":  in.DisplayName,
		"subject_kind":  in.Kind,
		"financial":     in.Financial,
		"court_records": in.CourtRecords,
		"web_mentions":  in.Mentions,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "summarize: marshal payload")
	}
	return fmt.Sprintf("Summarize this background-check result:\n\n%s", data), nil
}

// parseSummary extracts the JSON object from the model's reply, tolerating
// surrounding prose or markdown fences.
func parseSummary(text string) (*Summary, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, eris.Errorf("summarize: no JSON object in reply: %.120s", text)
	}

	var parsed struct {
		Synopsis   string `json:"synopsis"`
		Sentiments []struct {
			URL       string `json:"url"`
			Sentiment string `json:"sentiment"`
		} `json:"sentiments"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return nil, eris.Wrap(err, "summarize: parse reply")
	}
	if parsed.Synopsis == "" {
		return nil, eris.New("summarize: reply missing synopsis")
	}

	sentiments := make(map[string]string, len(parsed.Sentiments))
	for _, s := range parsed.Sentiments {
		switch s.Sentiment {
		case "positive", "neutral", "negative":
			sentiments[s.URL] = s.Sentiment
		}
	}
	return &Summary{Synopsis: parsed.Synopsis, MentionSentiments: sentiments}, nil
}
