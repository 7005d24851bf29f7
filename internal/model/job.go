package model

import (
	"time"
)

// JobStatus represents the lifecycle state of a fulfillment job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusPaid       JobStatus = "paid"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRefunded   JobStatus = "refunded"
)

// Stage numbers of the fulfillment state machine. The stage field on a Job is
// written before the corresponding work starts, so an observer always sees
// the stage currently in flight. Zero means idle (not started, or finished).
const (
	StageIdle      = 0
	StageIdentity  = 1
	StageFinancial = 2
	StageCourts    = 3
	StageWeb       = 4
	StageSynopsis  = 5
	StagePersist   = 6
)

// StageName returns a short label for a stage number, for logs and the
// status endpoint.
func StageName(stage int) string {
	switch stage {
	case StageIdentity:
		return "identity"
	case StageFinancial:
		return "financial"
	case StageCourts:
		return "courts"
	case StageWeb:
		return "web"
	case StageSynopsis:
		return "synopsis"
	case StagePersist:
		return "persist"
	default:
		return "idle"
	}
}

// Job is one fulfillment attempt tied to a paid purchase. Jobs are never
// deleted, only status-transitioned; the orchestrator and the refund sweep
// are the only writers after creation.
type Job struct {
	ID           string         `json:"id"`
	Identifier   string         `json:"identifier"`
	Kind         IdentifierKind `json:"kind"`
	BuyerContact string         `json:"buyer_contact"`
	Status       JobStatus      `json:"status"`
	Stage        int            `json:"stage"`
	PaymentID    string         `json:"payment_id,omitempty"`
	ReportID     string         `json:"report_id,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// JobPatch is a partial update applied to a Job. Nil fields are left
// untouched.
type JobPatch struct {
	Status    *JobStatus
	Stage     *int
	PaymentID *string
	ReportID  *string
}

// StatusPatch builds a patch that only changes the status.
func StatusPatch(s JobStatus) JobPatch {
	return JobPatch{Status: &s}
}

// StagePatch builds a patch that only changes the progress stage.
func StagePatch(stage int) JobPatch {
	return JobPatch{Stage: &stage}
}
