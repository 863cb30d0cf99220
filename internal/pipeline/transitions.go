// Package pipeline defines the recruitment pipeline state machine for
// applications.
//
// Valid stage graph:
//
//	applied ──► phone_screen ──► onsite ──► offer ──► hired
//	   │             │              │          │
//	   └─────────────┴──────────────┴──────────┴──► rejected
//
// hired and rejected are terminal stages.
package pipeline

import "fmt"

// Stage values mirror the application status column in PostgreSQL.
type Stage string

const (
	StageApplied     Stage = "applied"
	StagePhoneScreen Stage = "phone_screen"
	StageOnsite      Stage = "onsite"
	StageOffer       Stage = "offer"
	StageHired       Stage = "hired"
	StageRejected    Stage = "rejected"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[Stage][]Stage{
	StageApplied:     {StagePhoneScreen, StageRejected},
	StagePhoneScreen: {StageOnsite, StageRejected},
	StageOnsite:      {StageOffer, StageRejected},
	StageOffer:       {StageHired, StageRejected},
	// hired and rejected are terminal — no outgoing transitions
}

// ParseStage converts a raw string to a Stage, returning an error for
// unknown values.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	switch st {
	case StageApplied, StagePhoneScreen, StageOnsite, StageOffer, StageHired, StageRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown application stage %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by the
// state machine.
func IsTransitionAllowed(from, to Stage) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal stage — no outgoing transitions
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true for stages that end the pipeline. Terminal stages
// do not count toward the single-active-application constraint, so a
// candidate may re-apply after rejection.
func IsTerminal(s Stage) bool { return s == StageHired || s == StageRejected }

// IsHired returns true when stage is hired (triggers hired_at stamping).
func IsHired(s Stage) bool { return s == StageHired }
