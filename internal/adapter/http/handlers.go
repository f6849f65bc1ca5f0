package http

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/gridsage/gridsage/internal/service"
)

const maxQueryLength = 2000

// Handlers holds the services the REST API dispatches to.
type Handlers struct {
	Agent    *service.AgentService
	Sessions *service.SessionManager
	Loader   service.SnapshotLoader
}

// NewHandlers creates the handler set.
func NewHandlers(agent *service.AgentService, sessions *service.SessionManager, loader service.SnapshotLoader) *Handlers {
	return &Handlers{Agent: agent, Sessions: sessions, Loader: loader}
}

type queryRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id,omitempty"`
}

// HandleQuery handles POST /api/v1/query.
func (h *Handlers) HandleQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[queryRequest](w, r)
	if !ok {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if len(req.Text) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "query too long")
		return
	}

	res, err := h.Agent.ProcessQuery(r.Context(), req.Text, req.SessionID)
	if err != nil {
		writeDomainError(w, err, "process query")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListSessionTurns handles GET /api/v1/sessions/{id}/turns.
func (h *Handlers) ListSessionTurns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	turns, err := h.Sessions.Turns(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, turns)
}

// DeleteSession handles DELETE /api/v1/sessions/{id}.
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Sessions.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err, "delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BillingSummary handles GET /api/v1/billing/summary.
func (h *Handlers) BillingSummary(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Loader.Load(r.Context())
	if err != nil {
		writeDomainError(w, err, "billing summary")
		return
	}
	lines := slices.Collect(service.BillingSummary(snap))
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"lines": lines})
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
