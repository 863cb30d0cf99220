// HTTP handlers for the pipeline service.
//
// The caller's identity is the optional x-user-id header forwarded by the
// Gateway; a missing header means an anonymous/system action and is audited
// with a null actor.
//
// Routes:
//
//	PATCH /applications/{id}/status/ → run a stage transition
//	POST  /applications/             → open an application (seeds history)
//	GET   /applications/{id}/        → application with ordered history
//	POST  /jobs/, GET /jobs/{id}/    → job postings
//	POST  /candidates/, GET /candidates/{id}/ → candidate profiles
//	GET   /auditlogs/                → audit entries, newest first
//	GET   /healthz/                  → liveness probe
package pipeline

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AngelikiMt/recruitment-pipeline-ms/internal/telemetry"
)

// ServiceName appears in the health probe body and log prefixes.
const ServiceName = "pipeline-service"

// defaultAuditLogLimit caps a single /auditlogs/ read.
const defaultAuditLogLimit = 500

// Handler exposes the Service over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler returns a configured Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Router builds the chi router with all pipeline routes mounted.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz/", h.health)
	r.Mount("/metrics", telemetry.Handler())

	r.Patch("/applications/{id}/status/", h.updateStatus)
	r.Post("/applications/", h.createApplication)
	r.Get("/applications/{id}/", h.getApplication)

	r.Post("/jobs/", h.createJob)
	r.Get("/jobs/{id}/", h.getJob)
	r.Post("/candidates/", h.createCandidate)
	r.Get("/candidates/{id}/", h.getCandidate)

	r.Get("/auditlogs/", h.listAuditLogs)

	return r
}

// ─── Response types ───────────────────────────────────────────────────────────

// applicationResponse is the JSON shape returned for an Application,
// embedding the ordered stage history and the computed days_to_hire.
type applicationResponse struct {
	ID           string         `json:"id"`
	Candidate    string         `json:"candidate"`
	Job          string         `json:"job"`
	Status       Stage          `json:"status"`
	Score        *int           `json:"score"`
	AppliedAt    time.Time      `json:"applied_at"`
	HiredAt      *time.Time     `json:"hired_at"`
	DaysToHire   *int           `json:"days_to_hire"`
	StageHistory []StageHistory `json:"stage_history"`
}

func toResponse(a *Application) applicationResponse {
	history := a.StageHistory
	if history == nil {
		history = []StageHistory{}
	}
	return applicationResponse{
		ID:           a.ID,
		Candidate:    a.CandidateID,
		Job:          a.JobID,
		Status:       a.Status,
		Score:        a.Score,
		AppliedAt:    a.AppliedAt,
		HiredAt:      a.HiredAt,
		DaysToHire:   a.DaysToHire(),
		StageHistory: history,
	}
}

// ─── Individual handlers ──────────────────────────────────────────────────────

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": ServiceName,
	})
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "id")

	var body struct {
		Status       string `json:"status"`
		Note         string `json:"note"`
		RejectReason string `json:"reject_reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonDetail(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	app, err := h.svc.Transition(r.Context(), appID, body.Status, body.Note, body.RejectReason, actorFrom(r))
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			telemetry.TransitionsRejected.Inc()
		}
		h.writeError(w, err)
		return
	}

	telemetry.TransitionsAccepted.Inc()
	writeJSON(w, http.StatusOK, toResponse(app))
}

func (h *Handler) createApplication(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Candidate string         `json:"candidate"`
		Job       string         `json:"job"`
		Score     *int           `json:"score"`
		Meta      map[string]any `json:"meta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonDetail(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if body.Candidate == "" || body.Job == "" {
		jsonDetail(w, "candidate and job are required", http.StatusBadRequest)
		return
	}

	app, err := h.svc.CreateApplication(r.Context(), CreateApplicationParams{
		CandidateID: body.Candidate,
		JobID:       body.Job,
		Score:       body.Score,
		Meta:        body.Meta,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	telemetry.ApplicationsCreated.Inc()
	writeJSON(w, http.StatusCreated, toResponse(app))
}

func (h *Handler) getApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.svc.GetApplication(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(app))
}

func (h *Handler) createJob(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title      string `json:"title"`
		Department string `json:"department"`
		Location   string `json:"location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonDetail(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	job, err := h.svc.CreateJob(r.Context(), body.Title, body.Department, body.Location)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) createCandidate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FullName  string         `json:"full_name"`
		Email     string         `json:"email"`
		ResumeURL *string        `json:"resume_url"`
		Metadata  map[string]any `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonDetail(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	c, err := h.svc.CreateCandidate(r.Context(), body.FullName, body.Email, body.ResumeURL, body.Metadata)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) getCandidate(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCandidate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.svc.ListAuditLogs(r.Context(), defaultAuditLogLimit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if logs == nil {
		logs = []AuditLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// actorFrom extracts the gateway-forwarded identity. nil means anonymous.
func actorFrom(r *http.Request) *string {
	if v := r.Header.Get("x-user-id"); v != "" {
		return &v
	}
	return nil
}

// writeError maps domain errors to the wire taxonomy. Unexpected failures
// return a generic 500; the full error is logged server-side only.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		jsonDetail(w, ve.Msg, http.StatusBadRequest)
	case errors.Is(err, ErrActiveApplicationExists):
		jsonDetail(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		jsonDetail(w, "Not found.", http.StatusNotFound)
	case errors.Is(err, ErrConflict):
		telemetry.TransitionConflicts.Inc()
		jsonDetail(w, "Concurrent status change in progress, retry the transition", http.StatusConflict)
	default:
		log.Printf("[%s] internal error: %v", ServiceName, err)
		jsonDetail(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonDetail(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"detail": msg})
}
