package pipeline_test

// In-memory pipeline.Store used by the engine and handler tests. WithTx
// operates on copies and swaps them in on success, so a failing unit rolls
// back exactly like the SQL transaction in the production store.

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AngelikiMt/recruitment-pipeline-ms/internal/pipeline"
)

type memStore struct {
	mu      sync.Mutex
	apps    map[string]pipeline.Application
	history []pipeline.StageHistory
	audits  []pipeline.AuditLog
	jobs    map[string]pipeline.Job
	cands   map[string]pipeline.Candidate

	failAudit bool
	// afterLoad runs once after GetApplicationForUpdate, to simulate a
	// concurrent writer committing between load and update.
	afterLoad func(tx *memTx)
}

func newMemStore() *memStore {
	return &memStore{
		apps:  make(map[string]pipeline.Application),
		jobs:  make(map[string]pipeline.Job),
		cands: make(map[string]pipeline.Candidate),
	}
}

// seed inserts an application directly at the given stage, with a matching
// history entry, bypassing the engine.
func (s *memStore) seed(stage pipeline.Stage) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New().String()
	now := time.Now().UTC()
	app := pipeline.Application{
		ID:          id,
		CandidateID: uuid.New().String(),
		JobID:       uuid.New().String(),
		Status:      stage,
		AppliedAt:   now,
	}
	if stage == pipeline.StageHired {
		app.HiredAt = &now
	}
	s.apps[id] = app
	s.history = append(s.history, pipeline.StageHistory{
		ID:            uuid.New().String(),
		ApplicationID: id,
		Stage:         stage,
		EnteredAt:     now,
	})
	return id
}

func (s *memStore) historyFor(id string) []pipeline.StageHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []pipeline.StageHistory
	for _, h := range s.history {
		if h.ApplicationID == id {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EnteredAt.Before(out[j].EnteredAt) })
	return out
}

// ─── pipeline.Store ──────────────────────────────────────────────────────────

func (s *memStore) WithTx(_ context.Context, fn func(pipeline.TxStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{
		s:       s,
		apps:    maps.Clone(s.apps),
		history: slices.Clone(s.history),
		audits:  slices.Clone(s.audits),
	}
	if err := fn(tx); err != nil {
		return err // discard tx copies: rollback
	}
	s.apps, s.history, s.audits = tx.apps, tx.history, tx.audits
	return nil
}

func (s *memStore) GetApplication(_ context.Context, id string) (*pipeline.Application, error) {
	s.mu.Lock()
	a, ok := s.apps[id]
	s.mu.Unlock()
	if !ok {
		return nil, pipeline.ErrNotFound
	}
	a.StageHistory = s.historyFor(id)
	return &a, nil
}

func (s *memStore) ListAuditLogs(_ context.Context, limit int) ([]pipeline.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]pipeline.AuditLog, 0, len(s.audits))
	for i := len(s.audits) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.audits[i])
	}
	return out, nil
}

func (s *memStore) CountApplicationsByStage(_ context.Context) (map[pipeline.Stage]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[pipeline.Stage]int64)
	for _, a := range s.apps {
		counts[a.Status]++
	}
	return counts, nil
}

func (s *memStore) CreateJob(_ context.Context, job *pipeline.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *memStore) GetJob(_ context.Context, id string) (*pipeline.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, pipeline.ErrNotFound
	}
	return &j, nil
}

func (s *memStore) CreateCandidate(_ context.Context, c *pipeline.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cands[c.ID] = *c
	return nil
}

func (s *memStore) GetCandidate(_ context.Context, id string) (*pipeline.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cands[id]
	if !ok {
		return nil, pipeline.ErrNotFound
	}
	return &c, nil
}

// ─── pipeline.TxStore ────────────────────────────────────────────────────────

type memTx struct {
	s       *memStore
	apps    map[string]pipeline.Application
	history []pipeline.StageHistory
	audits  []pipeline.AuditLog
}

func (t *memTx) GetApplicationForUpdate(_ context.Context, id string) (*pipeline.Application, error) {
	a, ok := t.apps[id]
	if !ok {
		return nil, pipeline.ErrNotFound
	}
	if t.s.afterLoad != nil {
		hook := t.s.afterLoad
		t.s.afterLoad = nil
		hook(t)
	}
	return &a, nil
}

func (t *memTx) InsertApplication(_ context.Context, app *pipeline.Application) error {
	for _, existing := range t.apps {
		if existing.CandidateID == app.CandidateID && existing.JobID == app.JobID &&
			!pipeline.IsTerminal(existing.Status) {
			return pipeline.ErrActiveApplicationExists
		}
	}
	t.apps[app.ID] = *app
	return nil
}

func (t *memTx) UpdateApplicationStage(_ context.Context, id string, from, to pipeline.Stage, hiredAt *time.Time) error {
	a, ok := t.apps[id]
	if !ok {
		return pipeline.ErrNotFound
	}
	if a.Status != from {
		return pipeline.ErrConflict
	}
	a.Status = to
	a.HiredAt = hiredAt
	t.apps[id] = a
	return nil
}

func (t *memTx) InsertStageHistory(_ context.Context, entry *pipeline.StageHistory) error {
	t.history = append(t.history, *entry)
	return nil
}

func (t *memTx) InsertAuditLog(_ context.Context, entry *pipeline.AuditLog) error {
	if t.s.failAudit {
		return errors.New("audit insert failed")
	}
	t.audits = append(t.audits, *entry)
	return nil
}

// ─── Event recorder ──────────────────────────────────────────────────────────

type sinkRecorder struct {
	mu     sync.Mutex
	events []pipeline.StageChangedEvent
}

func (r *sinkRecorder) StageChanged(_ context.Context, ev pipeline.StageChangedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}
