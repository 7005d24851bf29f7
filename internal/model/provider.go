package model

import (
	"encoding/json"
)

// ProviderData is the shared vocabulary every adapter normalizes its
// source-specific response into. Every field is optional; an adapter fills
// only what its source knows about.
type ProviderData struct {
	Provider      string          `json:"provider"`
	Name          string          `json:"name,omitempty"`
	Subject       *SubjectData    `json:"subject,omitempty"`
	Corporate     *CorporateData  `json:"corporate,omitempty"`
	Financial     *FinancialData  `json:"financial,omitempty"`
	CourtRecords  []CourtRecord   `json:"court_records,omitempty"`
	WebMentions   []WebMention    `json:"web_mentions,omitempty"`
	Raw           json.RawMessage `json:"raw,omitempty"`
	PartialErrors []string        `json:"partial_errors,omitempty"`
}
