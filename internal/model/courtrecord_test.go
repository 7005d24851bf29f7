package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedupKey_ReferencePreferred(t *testing.T) {
	filed := time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC)
	a := CourtRecord{Jurisdiction: "tjsp", Reference: "REF-1", FiledAt: filed, CaseClass: "Cobrança"}
	b := CourtRecord{Jurisdiction: "tjrj", Reference: "REF-1", FiledAt: filed.AddDate(0, 1, 0), CaseClass: "Execução"}

	// The same filing surfaced by two jurisdictions collapses on reference.
	assert.Equal(t, a.DedupKey(), b.DedupKey())
}

func TestDedupKey_CompositeFallback(t *testing.T) {
	filed := time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC)
	a := CourtRecord{Jurisdiction: "tjsp", FiledAt: filed, CaseClass: "Cobrança"}
	same := CourtRecord{Jurisdiction: "tjsp", FiledAt: filed, CaseClass: "Cobrança"}
	otherDay := CourtRecord{Jurisdiction: "tjsp", FiledAt: filed.AddDate(0, 0, 1), CaseClass: "Cobrança"}
	otherCourt := CourtRecord{Jurisdiction: "tjmg", FiledAt: filed, CaseClass: "Cobrança"}

	assert.Equal(t, a.DedupKey(), same.DedupKey())
	assert.NotEqual(t, a.DedupKey(), otherDay.DedupKey())
	assert.NotEqual(t, a.DedupKey(), otherCourt.DedupKey())
}

func TestStageName(t *testing.T) {
	assert.Equal(t, "identity", StageName(StageIdentity))
	assert.Equal(t, "persist", StageName(StagePersist))
	assert.Equal(t, "idle", StageName(StageIdle))
	assert.Equal(t, "idle", StageName(99))
}
