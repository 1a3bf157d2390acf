package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-showcore/internal/session"
)

// SessionResponse describes one recorded play session.
type SessionResponse struct {
	ID          string  `json:"id"`
	ContextID   string  `json:"context_id"`
	ContextName string  `json:"context_name"`
	Sequence    string  `json:"sequence"`
	StartMS     int64   `json:"start_ms"`
	EndMS       int64   `json:"end_ms"`
	StartedAt   string  `json:"started_at"`
	EndedAt     *string `json:"ended_at,omitempty"`
	Status      string  `json:"status"`
}

func toSessionResponse(rec session.Record) SessionResponse {
	resp := SessionResponse{
		ID:          rec.ID,
		ContextID:   rec.ContextID,
		ContextName: rec.ContextName,
		Sequence:    rec.Sequence,
		StartMS:     rec.Start.Milliseconds(),
		EndMS:       rec.End.Milliseconds(),
		StartedAt:   rec.StartedAt.UTC().Format(timeFormat),
		Status:      string(rec.Status),
	}
	if rec.EndedAt != nil {
		ended := rec.EndedAt.UTC().Format(timeFormat)
		resp.EndedAt = &ended
	}
	return resp
}

// timeFormat is used for every timestamp in API responses.
const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// handleListSessions returns recent sessions, optionally filtered by
// ?context_id=. ?limit= bounds the result.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.listSessions(w, r, r.URL.Query().Get("context_id"))
}

// handleListContextSessions returns recent sessions of one context. The
// context need not still be registered.
func (s *Server) handleListContextSessions(w http.ResponseWriter, r *http.Request) {
	s.listSessions(w, r, chi.URLParam(r, "id"))
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request, contextID string) {
	if s.sessions == nil {
		writeUnavailable(w, "session history not configured")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	var (
		records []session.Record
		err     error
	)
	if contextID != "" {
		records, err = s.sessions.ListByContext(r.Context(), contextID, limit)
	} else {
		records, err = s.sessions.List(r.Context(), limit)
	}
	if err != nil {
		s.logger.Error("failed to list sessions", "context_id", contextID, "error", err)
		writeInternalError(w, "failed to list sessions")
		return
	}

	out := make([]SessionResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toSessionResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": out,
		"count":    len(out),
	})
}

// handleGetSession returns one session record.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeUnavailable(w, "session history not configured")
		return
	}

	rec, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, session.ErrSessionNotFound) {
		writeNotFound(w, "session not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get session", "error", err)
		writeInternalError(w, "failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(*rec))
}
