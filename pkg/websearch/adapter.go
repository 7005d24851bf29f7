package websearch

import (
	"context"
	"fmt"

	"github.com/clearcheck/dossier-api/internal/model"
	"github.com/clearcheck/dossier-api/internal/provider"
)

// AdapterName is the provenance tag for web-mention contributions.
const AdapterName = "websearch"

// maxMentions caps how many hits one report carries.
const maxMentions = 20

// Adapter exposes web search through the uniform provider contract. Like the
// court search, it needs the resolved subject name.
type Adapter struct {
	client Client
}

// NewAdapter wraps a search client as a provider adapter.
func NewAdapter(client Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Name() string { return AdapterName }

func (a *Adapter) Supports(model.IdentifierKind) bool { return true }

// Fetch searches for the subject name quoted, so common names do not flood
// the report with unrelated hits. Sentiment labels are filled in later by
// the synopsis step.
func (a *Adapter) Fetch(ctx context.Context, q provider.Query) (*model.ProviderData, error) {
	if q.Name == "" {
		return nil, provider.WrapError(AdapterName, fmt.Errorf("subject name not resolved for %s", q.Identifier))
	}

	hits, err := a.client.Search(ctx, fmt.Sprintf("%q", q.Name))
	if err != nil {
		return nil, provider.WrapError(AdapterName, err)
	}
	if len(hits) > maxMentions {
		hits = hits[:maxMentions]
	}

	mentions := make([]model.WebMention, 0, len(hits))
	for _, h := range hits {
		mentions = append(mentions, model.WebMention{
			Title:   h.Title,
			URL:     h.URL,
			Snippet: h.Snippet,
			Source:  h.SiteName,
		})
	}
	return &model.ProviderData{
		Provider:    AdapterName,
		WebMentions: mentions,
	}, nil
}
