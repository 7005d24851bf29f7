package model

import (
	"time"
)

// Report is the final consolidated result for one identifier. Reports are
// created exactly once per job and never mutated afterward. The link back to
// the job lives on the Job record only.
type Report struct {
	ID          string         `json:"id"`
	Identifier  string         `json:"identifier"`
	Kind        IdentifierKind `json:"kind"`
	DisplayName string         `json:"display_name"`
	Payload     ReportPayload  `json:"payload"`
	Synopsis    string         `json:"synopsis"`
	CreatedAt   time.Time      `json:"created_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

// Expired reports are considered stale for display but are kept on record.
func (r *Report) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// ReportPayload carries the per-provider data merged into a report. Absent
// sections mean the provider contributed nothing (failure or genuinely no
// data, distinguishable by the provenance log, not here).
type ReportPayload struct {
	Cadastral    *SubjectData   `json:"cadastral,omitempty"`
	Corporate    *CorporateData `json:"corporate,omitempty"`
	Financial    *FinancialData `json:"financial,omitempty"`
	CourtRecords []CourtRecord  `json:"court_records"`
	WebMentions  []WebMention   `json:"web_mentions"`
	Sources      []string       `json:"sources"`
}

// SubjectData is the normalized cadastral view of an individual or, as a
// fallback name source, a company.
type SubjectData struct {
	Name      string   `json:"name"`
	BirthDate string   `json:"birth_date,omitempty"`
	Situation string   `json:"situation,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
	Phones    []string `json:"phones,omitempty"`
}

// CorporateData is the normalized corporate-registry view of a company.
type CorporateData struct {
	LegalName   string    `json:"legal_name"`
	TradeName   string    `json:"trade_name,omitempty"`
	OpenedAt    string    `json:"opened_at,omitempty"`
	Situation   string    `json:"situation,omitempty"`
	MainCNAE    string    `json:"main_cnae,omitempty"`
	Addresses   []string  `json:"addresses,omitempty"`
	Phones      []string  `json:"phones,omitempty"`
	Officers    []Officer `json:"officers,omitempty"`
	CapitalBRL  float64   `json:"capital_brl,omitempty"`
	CompanySize string    `json:"company_size,omitempty"`
}

// Officer is a corporate officer or partner listed in the registry.
type Officer struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// FinancialData is the normalized delinquency view from the credit registry.
type FinancialData struct {
	Score         int           `json:"score,omitempty"`
	Delinquencies []Delinquency `json:"delinquencies"`
	Protests      []Delinquency `json:"protests,omitempty"`
}

// Delinquency is one negative financial entry (unpaid debt, protest).
type Delinquency struct {
	Creditor   string  `json:"creditor"`
	AmountBRL  float64 `json:"amount_brl"`
	RecordedAt string  `json:"recorded_at,omitempty"`
	Origin     string  `json:"origin,omitempty"`
}

// WebMention is one web/news hit about the subject, with the sentiment label
// back-applied from the synopsis step.
type WebMention struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Snippet   string `json:"snippet,omitempty"`
	Source    string `json:"source,omitempty"`
	Sentiment string `json:"sentiment,omitempty"` // positive | neutral | negative
}
