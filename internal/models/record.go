package models

import "time"

// Outcome summarizes how an analysis call ended
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeEmpty     Outcome = "empty"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeCanceled  Outcome = "canceled"
)

// AnalysisRecord is the journal entry written for every analysis call.
// It never contains the extracted payload.
type AnalysisRecord struct {
	CallID       string     `json:"call_id"`
	InstanceID   string     `json:"instance_id"`
	AgentID      string     `json:"agent_id,omitempty"`
	FileID       string     `json:"file_id,omitempty"`
	ThreadID     string     `json:"thread_id,omitempty"`
	RunID        string     `json:"run_id,omitempty"`
	RunStatus    RunStatus  `json:"run_status,omitempty"`
	MimeType     string     `json:"mime_type"`
	DocumentSize int64      `json:"document_size"`
	Outcome      Outcome    `json:"outcome"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Duration returns the wall-clock time of the call, or zero while it is running
func (r *AnalysisRecord) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
