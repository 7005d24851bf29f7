package model

import (
	"time"
)

// CaseRole is the subject's side in a court case.
type CaseRole string

const (
	RoleDefendant CaseRole = "defendant"
	RolePlaintiff CaseRole = "plaintiff"
	RoleWitness   CaseRole = "witness"
	RoleUnknown   CaseRole = "unknown"
)

// CourtRecord is one court-case hit from a jurisdiction index. Records are
// not persisted on their own; they are embedded in the report payload after
// deduplication.
type CourtRecord struct {
	Jurisdiction string    `json:"jurisdiction"`
	Reference    string    `json:"reference,omitempty"`
	FiledAt      time.Time `json:"filed_at"`
	CaseClass    string    `json:"case_class"`
	Role         CaseRole  `json:"role"`
	Source       string    `json:"source"`
}

// DedupKey returns the identity under which duplicate records are merged:
// the filing reference number when present, otherwise a composite of
// jurisdiction, filing date and case class.
func (c CourtRecord) DedupKey() string {
	if c.Reference != "" {
		return "ref:" + c.Reference
	}
	return "cmp:" + c.Jurisdiction + "|" + c.FiledAt.Format("2006-01-02") + "|" + c.CaseClass
}
