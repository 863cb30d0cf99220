// Package store implements the pipeline persistence contract on PostgreSQL.
//
// Two invariants land here because only the database can enforce them
// atomically: concurrent transitions against one application are serialized
// by a row lock (SELECT … FOR UPDATE) plus a stage-guarded UPDATE, and the
// single-active-application rule is a partial unique index scoped to
// non-terminal stages.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AngelikiMt/recruitment-pipeline-ms/internal/pipeline"
)

const uniqueViolation = "23505"
const foreignKeyViolation = "23503"

// Store wraps pgxpool for Postgres persistence. It satisfies pipeline.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a pooled connection to Postgres and verifies it.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// WithTx runs fn inside a single transaction, committing on nil and rolling
// back on error.
func (s *Store) WithTx(ctx context.Context, fn func(pipeline.TxStore) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // safe no-op on commit

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ─── Transactional writes ─────────────────────────────────────────────────────

type txStore struct {
	tx pgx.Tx
}

func (t *txStore) GetApplicationForUpdate(ctx context.Context, id string) (*pipeline.Application, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, candidate_id, job_id, status, score, applied_at, hired_at, meta
		FROM applications WHERE id = $1
		FOR UPDATE
	`, id)
	return scanApplication(row)
}

func (t *txStore) InsertApplication(ctx context.Context, app *pipeline.Application) error {
	meta, err := marshalMeta(app.Meta)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO applications (id, candidate_id, job_id, status, score, applied_at, hired_at, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, app.ID, app.CandidateID, app.JobID, string(app.Status), app.Score, app.AppliedAt, app.HiredAt, meta)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case uniqueViolation:
				return pipeline.ErrActiveApplicationExists
			case foreignKeyViolation:
				return &pipeline.ValidationError{Msg: "candidate or job does not exist"}
			}
		}
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (t *txStore) UpdateApplicationStage(ctx context.Context, id string, from, to pipeline.Stage, hiredAt *time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE applications SET status = $3, hired_at = $4
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to), hiredAt)
	if err != nil {
		return fmt.Errorf("update application stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Another writer changed the stage between our read and this guard.
		return pipeline.ErrConflict
	}
	return nil
}

func (t *txStore) InsertStageHistory(ctx context.Context, entry *pipeline.StageHistory) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO stage_history (id, application_id, stage, entered_at, note)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.ID, entry.ApplicationID, string(entry.Stage), entry.EnteredAt, entry.Note)
	if err != nil {
		return fmt.Errorf("insert stage history: %w", err)
	}
	return nil
}

func (t *txStore) InsertAuditLog(ctx context.Context, entry *pipeline.AuditLog) error {
	data := entry.Data
	if data == nil {
		data = json.RawMessage(`{}`)
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO audit_logs (id, actor, verb, target_type, target_id, ts, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.Actor, entry.Verb, entry.TargetType, entry.TargetID, entry.Timestamp, []byte(data))
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ─── Reads ────────────────────────────────────────────────────────────────────

// GetApplication fetches an application with its full stage history,
// ordered by entry time.
func (s *Store) GetApplication(ctx context.Context, id string) (*pipeline.Application, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, candidate_id, job_id, status, score, applied_at, hired_at, meta
		FROM applications WHERE id = $1
	`, id)
	app, err := scanApplication(row)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, application_id, stage, entered_at, note
		FROM stage_history WHERE application_id = $1
		ORDER BY entered_at, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query stage history: %w", err)
	}
	defer rows.Close()

	history := make([]pipeline.StageHistory, 0)
	for rows.Next() {
		var h pipeline.StageHistory
		var stage string
		if err := rows.Scan(&h.ID, &h.ApplicationID, &stage, &h.EnteredAt, &h.Note); err != nil {
			return nil, fmt.Errorf("scan stage history: %w", err)
		}
		h.Stage = pipeline.Stage(stage)
		history = append(history, h)
	}
	app.StageHistory = history
	return app, nil
}

// ListAuditLogs returns audit entries ordered by timestamp descending.
func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]pipeline.AuditLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, actor, verb, target_type, target_id, ts, data
		FROM audit_logs ORDER BY ts DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]pipeline.AuditLog, 0)
	for rows.Next() {
		var e pipeline.AuditLog
		var data []byte
		if err := rows.Scan(&e.ID, &e.Actor, &e.Verb, &e.TargetType, &e.TargetID, &e.Timestamp, &data); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		e.Data = json.RawMessage(data)
		logs = append(logs, e)
	}
	return logs, nil
}

// CountApplicationsByStage returns the number of applications per stage.
func (s *Store) CountApplicationsByStage(ctx context.Context) (map[pipeline.Stage]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM applications GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count applications by stage: %w", err)
	}
	defer rows.Close()

	counts := make(map[pipeline.Stage]int64)
	for rows.Next() {
		var stage string
		var n int64
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, fmt.Errorf("scan stage count: %w", err)
		}
		counts[pipeline.Stage(stage)] = n
	}
	return counts, nil
}

// ─── Jobs and candidates ─────────────────────────────────────────────────────

// CreateJob inserts a job posting.
func (s *Store) CreateJob(ctx context.Context, job *pipeline.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (id, title, department, location, is_open, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, job.ID, job.Title, job.Department, job.Location, job.IsOpen, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob fetches a job posting by id.
func (s *Store) GetJob(ctx context.Context, id string) (*pipeline.Job, error) {
	var j pipeline.Job
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, department, location, is_open, created_at
		FROM jobs WHERE id = $1
	`, id).Scan(&j.ID, &j.Title, &j.Department, &j.Location, &j.IsOpen, &j.CreatedAt)
	if err != nil {
		return nil, translateNoRows(err, "get job")
	}
	return &j, nil
}

// CreateCandidate inserts a candidate profile.
func (s *Store) CreateCandidate(ctx context.Context, c *pipeline.Candidate) error {
	meta, err := marshalMeta(c.Metadata)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO candidates (id, full_name, email, resume_url, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.FullName, c.Email, c.ResumeURL, meta, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert candidate: %w", err)
	}
	return nil
}

// GetCandidate fetches a candidate profile by id.
func (s *Store) GetCandidate(ctx context.Context, id string) (*pipeline.Candidate, error) {
	var c pipeline.Candidate
	var meta []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, full_name, email, resume_url, metadata, created_at
		FROM candidates WHERE id = $1
	`, id).Scan(&c.ID, &c.FullName, &c.Email, &c.ResumeURL, &meta, &c.CreatedAt)
	if err != nil {
		return nil, translateNoRows(err, "get candidate")
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &c.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal candidate metadata: %w", err)
		}
	}
	return &c, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*pipeline.Application, error) {
	var a pipeline.Application
	var status string
	var meta []byte
	err := row.Scan(&a.ID, &a.CandidateID, &a.JobID, &status, &a.Score, &a.AppliedAt, &a.HiredAt, &meta)
	if err != nil {
		return nil, translateNoRows(err, "get application")
	}
	a.Status = pipeline.Stage(status)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &a.Meta); err != nil {
			return nil, fmt.Errorf("unmarshal application meta: %w", err)
		}
	}
	return &a, nil
}

func marshalMeta(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte(`{}`), nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return raw, nil
}

func translateNoRows(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return pipeline.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
