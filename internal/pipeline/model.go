package pipeline

import (
	"encoding/json"
	"time"
)

// Application is the mutable aggregate root of the pipeline. Its stage is
// only ever changed through Service.Transition; direct writes to Status
// bypass history and audit and are disallowed by policy.
type Application struct {
	ID           string         `json:"id"`
	CandidateID  string         `json:"candidate"`
	JobID        string         `json:"job"`
	Status       Stage          `json:"status"`
	Score        *int           `json:"score"`
	AppliedAt    time.Time      `json:"applied_at"`
	HiredAt      *time.Time     `json:"hired_at"`
	Meta         map[string]any `json:"meta,omitempty"`
	StageHistory []StageHistory `json:"stage_history"`
}

// DaysToHire returns the whole number of days between applied_at and
// hired_at, or nil while the application is not hired.
func (a *Application) DaysToHire() *int {
	if a.HiredAt == nil {
		return nil
	}
	days := int(a.HiredAt.Sub(a.AppliedAt).Hours() / 24)
	return &days
}

// CurrentTimeInStage returns the elapsed duration since the most recent
// stage-history entry. ok is false when no history exists yet.
func (a *Application) CurrentTimeInStage(now time.Time) (time.Duration, bool) {
	if len(a.StageHistory) == 0 {
		return 0, false
	}
	last := a.StageHistory[0].EnteredAt
	for _, h := range a.StageHistory[1:] {
		if h.EnteredAt.After(last) {
			last = h.EnteredAt
		}
	}
	return now.Sub(last), true
}

// StageHistory is one immutable, append-only record of a stage entry.
// Entries are never updated or deleted.
type StageHistory struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"-"`
	Stage         Stage     `json:"stage"`
	EnteredAt     time.Time `json:"entered_at"`
	Note          string    `json:"note"`
}

// AuditLog is one immutable, system-wide record of an actor performing a
// verb against a target entity. Actor is nil for anonymous/system actions.
// Targets are referenced loosely by (type, id) so an entry outlives the
// entity it describes.
type AuditLog struct {
	ID         string          `json:"id"`
	Actor      *string         `json:"actor"`
	Verb       string          `json:"verb"`
	TargetType string          `json:"target_type"`
	TargetID   string          `json:"target_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Data       json.RawMessage `json:"data"`
}

// Job is a posting open for recruitment.
type Job struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Department string    `json:"department"`
	Location   string    `json:"location"`
	IsOpen     bool      `json:"is_open"`
	CreatedAt  time.Time `json:"created_at"`
}

// Candidate is an individual applicant.
type Candidate struct {
	ID        string         `json:"id"`
	FullName  string         `json:"full_name"`
	Email     string         `json:"email"`
	ResumeURL *string        `json:"resume_url"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
