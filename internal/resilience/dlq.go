package resilience

import (
	"sync"
	"time"
)

// DeadLetter is a fire-and-forget side effect that failed and was swallowed:
// typically a notification dispatch. Entries are retained in memory for
// operator inspection, bounded to the most recent maxDeadLetters.
type DeadLetter struct {
	JobID      string    `json:"job_id"`
	Kind       string    `json:"kind"` // e.g. "notification"
	Error      string    `json:"error"`
	ErrorClass string    `json:"error_class"` // "transient" or "permanent"
	FailedAt   time.Time `json:"failed_at"`
}

const maxDeadLetters = 1000

// DeadLetterLog is a bounded in-memory log of swallowed failures.
type DeadLetterLog struct {
	mu      sync.Mutex
	entries []DeadLetter
}

// NewDeadLetterLog creates an empty dead-letter log.
func NewDeadLetterLog() *DeadLetterLog {
	return &DeadLetterLog{}
}

// Record appends a failure, dropping the oldest entry beyond the cap.
func (d *DeadLetterLog) Record(jobID, kind string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, DeadLetter{
		JobID:      jobID,
		Kind:       kind,
		Error:      err.Error(),
		ErrorClass: ClassifyError(err),
		FailedAt:   time.Now(),
	})
	if len(d.entries) > maxDeadLetters {
		d.entries = d.entries[len(d.entries)-maxDeadLetters:]
	}
}

// Entries returns a copy of the current log, newest last.
func (d *DeadLetterLog) Entries() []DeadLetter {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DeadLetter, len(d.entries))
	copy(out, d.entries)
	return out
}

// ClassifyError labels an error transient or permanent.
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
