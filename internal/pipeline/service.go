// Package pipeline contains the transport-agnostic business logic for the
// recruitment pipeline service: the transition engine and the persistence
// contract it drives.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ─── Persistence contract ────────────────────────────────────────────────────

// TxStore is the set of writes the engine performs inside one transaction.
// GetApplicationForUpdate must hold an exclusive lock on the application row
// until the transaction ends, serializing concurrent transitions.
type TxStore interface {
	GetApplicationForUpdate(ctx context.Context, id string) (*Application, error)
	InsertApplication(ctx context.Context, app *Application) error
	// UpdateApplicationStage is conditional on the expected current stage
	// and returns ErrConflict when another transition won the race.
	UpdateApplicationStage(ctx context.Context, id string, from, to Stage, hiredAt *time.Time) error
	InsertStageHistory(ctx context.Context, entry *StageHistory) error
	InsertAuditLog(ctx context.Context, entry *AuditLog) error
}

// Store is the persistence interface the engine consumes. WithTx runs fn in
// a single transaction, committing on nil and rolling back on error — the
// history/mutation/audit unit must never apply partially.
type Store interface {
	WithTx(ctx context.Context, fn func(TxStore) error) error

	GetApplication(ctx context.Context, id string) (*Application, error)
	ListAuditLogs(ctx context.Context, limit int) ([]AuditLog, error)
	CountApplicationsByStage(ctx context.Context) (map[Stage]int64, error)

	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	CreateCandidate(ctx context.Context, c *Candidate) error
	GetCandidate(ctx context.Context, id string) (*Candidate, error)
}

// EventSink receives stage-change notifications after a transition commits.
type EventSink interface {
	StageChanged(ctx context.Context, ev StageChangedEvent)
}

// StageChangedEvent describes one committed transition.
type StageChangedEvent struct {
	ApplicationID string
	From          Stage
	To            Stage
	Actor         *string
}

// ─── Sentinel errors ─────────────────────────────────────────────────────────

// ErrNotFound is returned when an application (or job/candidate) is missing.
var ErrNotFound = fmt.Errorf("not found")

// ErrConflict is returned when a concurrent transition won the race; the
// caller should retry the whole transition.
var ErrConflict = fmt.Errorf("concurrent transition conflict")

// ErrActiveApplicationExists is returned when a candidate already has a
// non-terminal application for the same job.
var ErrActiveApplicationExists = fmt.Errorf("Candidate already has an active application for this job")

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// ─── Service ─────────────────────────────────────────────────────────────────

// Service encapsulates the pipeline engine. It has no dependency on
// net/http — it can be used by any transport layer.
type Service struct {
	store   Store
	reasons RejectReasons
	events  EventSink
}

// NewService returns a configured Service. events may be nil when no
// notification fan-out is wanted (tests, offline tools).
func NewService(store Store, reasons RejectReasons, events EventSink) *Service {
	if reasons == nil {
		reasons = DefaultRejectReasons()
	}
	return &Service{store: store, reasons: reasons, events: events}
}

// auditVerbStatusChanged names the audit verb for pipeline transitions.
const auditVerbStatusChanged = "application_status_changed"

// auditPayload is the structured data attached to a transition audit entry.
type auditPayload struct {
	OldStatus    Stage   `json:"old_status"`
	NewStatus    Stage   `json:"new_status"`
	Note         string  `json:"note"`
	RejectReason *string `json:"reject_reason"`
}

// Transition moves an application to a new stage, enforcing the state
// machine and appending StageHistory and AuditLog entries in the same
// transaction as the stage mutation. Validation order is load, stage-enum
// check, transition check, reject-reason checks — it is user-visible through
// error precedence and must not be reordered.
func (s *Service) Transition(ctx context.Context, appID, newStageStr, note, rejectReason string, actor *string) (*Application, error) {
	var ev StageChangedEvent

	err := s.store.WithTx(ctx, func(tx TxStore) error {
		app, err := tx.GetApplicationForUpdate(ctx, appID)
		if err != nil {
			return err
		}

		newStage, err := ParseStage(newStageStr)
		if err != nil {
			return &ValidationError{Msg: "Invalid status"}
		}

		oldStage := app.Status
		if !IsTransitionAllowed(oldStage, newStage) {
			return &ValidationError{
				Msg: fmt.Sprintf("Transition from '%s' to '%s' is not allowed.", oldStage, newStage),
			}
		}

		if newStage == StageRejected {
			if rejectReason == "" {
				return &ValidationError{Msg: "reject_reason is required when rejecting an application"}
			}
			if !s.reasons.IsValidReason(rejectReason) {
				return &ValidationError{Msg: "Invalid reject reason"}
			}
		}

		now := time.Now().UTC()

		if err := tx.InsertStageHistory(ctx, &StageHistory{
			ID:            uuid.New().String(),
			ApplicationID: appID,
			Stage:         newStage,
			EnteredAt:     now,
			Note:          note,
		}); err != nil {
			return fmt.Errorf("append stage history: %w", err)
		}

		// hired_at is stamped exactly once; an already-set value is kept.
		var hiredAt *time.Time
		if IsHired(newStage) && app.HiredAt == nil {
			hiredAt = &now
		} else {
			hiredAt = app.HiredAt
		}
		if err := tx.UpdateApplicationStage(ctx, appID, oldStage, newStage, hiredAt); err != nil {
			return err
		}

		payload, err := json.Marshal(auditPayload{
			OldStatus:    oldStage,
			NewStatus:    newStage,
			Note:         note,
			RejectReason: emptyToNil(rejectReason),
		})
		if err != nil {
			return fmt.Errorf("marshal audit payload: %w", err)
		}
		if err := tx.InsertAuditLog(ctx, &AuditLog{
			ID:         uuid.New().String(),
			Actor:      actor,
			Verb:       auditVerbStatusChanged,
			TargetType: "Application",
			TargetID:   appID,
			Timestamp:  now,
			Data:       payload,
		}); err != nil {
			return fmt.Errorf("append audit log: %w", err)
		}

		ev = StageChangedEvent{ApplicationID: appID, From: oldStage, To: newStage, Actor: actor}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.StageChanged(ctx, ev)
	}

	return s.store.GetApplication(ctx, appID)
}

// ─── Application lifecycle ───────────────────────────────────────────────────

// CreateApplicationParams collects inputs required to open an application.
type CreateApplicationParams struct {
	CandidateID string
	JobID       string
	Score       *int
	Meta        map[string]any
}

// CreateApplication opens a new application at the applied stage and seeds
// its first StageHistory entry in the same transaction, so the
// latest-history-matches-status invariant holds from birth. The store
// enforces the single-active-application constraint atomically and reports a
// duplicate as ErrActiveApplicationExists.
func (s *Service) CreateApplication(ctx context.Context, p CreateApplicationParams) (*Application, error) {
	if p.Score != nil && (*p.Score < 0 || *p.Score > 100) {
		return nil, &ValidationError{Msg: "Score must be between values 0 and 100 included."}
	}

	now := time.Now().UTC()
	app := &Application{
		ID:          uuid.New().String(),
		CandidateID: p.CandidateID,
		JobID:       p.JobID,
		Status:      StageApplied,
		Score:       p.Score,
		AppliedAt:   now,
		Meta:        p.Meta,
	}

	err := s.store.WithTx(ctx, func(tx TxStore) error {
		if err := tx.InsertApplication(ctx, app); err != nil {
			return err
		}
		return tx.InsertStageHistory(ctx, &StageHistory{
			ID:            uuid.New().String(),
			ApplicationID: app.ID,
			Stage:         StageApplied,
			EnteredAt:     now,
		})
	})
	if err != nil {
		return nil, err
	}

	return s.store.GetApplication(ctx, app.ID)
}

// GetApplication returns an application with its full ordered history.
func (s *Service) GetApplication(ctx context.Context, id string) (*Application, error) {
	return s.store.GetApplication(ctx, id)
}

// ListAuditLogs returns audit entries, newest first.
func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]AuditLog, error) {
	return s.store.ListAuditLogs(ctx, limit)
}

// ─── Jobs and candidates ─────────────────────────────────────────────────────

// CreateJob registers a job posting.
func (s *Service) CreateJob(ctx context.Context, title, department, location string) (*Job, error) {
	if title == "" || department == "" || location == "" {
		return nil, &ValidationError{Msg: "title, department and location are required"}
	}
	job := &Job{
		ID:         uuid.New().String(),
		Title:      title,
		Department: department,
		Location:   location,
		IsOpen:     true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// GetJob returns a job posting by id.
func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.store.GetJob(ctx, id)
}

// CreateCandidate registers a candidate profile.
func (s *Service) CreateCandidate(ctx context.Context, fullName, email string, resumeURL *string, metadata map[string]any) (*Candidate, error) {
	if fullName == "" || email == "" {
		return nil, &ValidationError{Msg: "full_name and email are required"}
	}
	c := &Candidate{
		ID:        uuid.New().String(),
		FullName:  fullName,
		Email:     email,
		ResumeURL: resumeURL,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateCandidate(ctx, c); err != nil {
		return nil, fmt.Errorf("create candidate: %w", err)
	}
	return c, nil
}

// GetCandidate returns a candidate profile by id.
func (s *Service) GetCandidate(ctx context.Context, id string) (*Candidate, error) {
	return s.store.GetCandidate(ctx, id)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func emptyToNil(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
