package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-showcore/internal/execution"
	"github.com/nerrad567/gray-logic-showcore/internal/playback"
)

// maxEffectsPerRequest bounds the effects accepted in one request body.
const maxEffectsPerRequest = 10000

// maxMS is the largest millisecond count a time.Duration can hold.
const maxMS = math.MaxInt64 / int64(time.Millisecond)

// EffectRequest is one effect in a request body. Times are milliseconds.
type EffectRequest struct {
	ID         string   `json:"id"`
	StartMS    int64    `json:"start_ms"`
	DurationMS int64    `json:"duration_ms"`
	Targets    []string `json:"targets"`
}

// CreateContextRequest defines a sequence to play in a new context.
type CreateContextRequest struct {
	Name     string          `json:"name"`
	LengthMS int64           `json:"length_ms"`
	Effects  []EffectRequest `json:"effects"`

	// Caching overrides playback.default_caching when set.
	Caching *bool `json:"caching,omitempty"`

	// Start begins playback immediately after creation.
	Start bool `json:"start"`
}

// ContextResponse describes one execution context.
type ContextResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Target     string `json:"target,omitempty"`
	Running    bool   `json:"running"`
	Paused     bool   `json:"paused"`
	PositionMS int64  `json:"position_ms"`
}

func toContextResponse(info execution.Info) ContextResponse {
	return ContextResponse{
		ID:         info.ID,
		Name:       info.Name,
		Target:     string(info.Target),
		Running:    info.Running,
		Paused:     info.Paused,
		PositionMS: info.Position.Milliseconds(),
	}
}

// toEffect validates an effect request and converts it.
func (e EffectRequest) toEffect(index int) (playback.Effect, error) {
	if e.StartMS < 0 {
		return playback.Effect{}, fmt.Errorf("effects[%d]: start_ms must not be negative", index)
	}
	if e.DurationMS <= 0 {
		return playback.Effect{}, fmt.Errorf("effects[%d]: duration_ms must be positive", index)
	}
	if e.StartMS > maxMS || e.DurationMS > maxMS-e.StartMS {
		return playback.Effect{}, fmt.Errorf("effects[%d]: start_ms + duration_ms must not exceed %d", index, maxMS)
	}
	if len(e.Targets) == 0 {
		return playback.Effect{}, fmt.Errorf("effects[%d]: at least one target is required", index)
	}
	for _, t := range e.Targets {
		if t == "" {
			return playback.Effect{}, fmt.Errorf("effects[%d]: targets must not be empty strings", index)
		}
	}

	id := e.ID
	if id == "" {
		id = fmt.Sprintf("fx-%d", index)
	}
	return playback.Effect{
		ID:       id,
		Start:    time.Duration(e.StartMS) * time.Millisecond,
		Duration: time.Duration(e.DurationMS) * time.Millisecond,
		Targets:  append([]string(nil), e.Targets...),
	}, nil
}

// toEffects validates and converts a list of effect requests.
func toEffects(reqs []EffectRequest) ([]playback.Effect, error) {
	if len(reqs) > maxEffectsPerRequest {
		return nil, fmt.Errorf("at most %d effects per request", maxEffectsPerRequest)
	}
	out := make([]playback.Effect, 0, len(reqs))
	for i, r := range reqs {
		fx, err := r.toEffect(i)
		if err != nil {
			return nil, err
		}
		out = append(out, fx)
	}
	return out, nil
}

// handleListContexts returns every registered context in creation order.
func (s *Server) handleListContexts(w http.ResponseWriter, _ *http.Request) {
	ctxs := s.manager.Contexts()
	out := make([]ContextResponse, 0, len(ctxs))
	for _, c := range ctxs {
		out = append(out, toContextResponse(execution.Describe(c)))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"contexts": out,
		"count":    len(out),
	})
}

// handleCreateContext builds a sequence from the request body and registers
// a sequence context for it.
func (s *Server) handleCreateContext(w http.ResponseWriter, r *http.Request) {
	var req CreateContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Name == "" {
		writeValidationError(w, "name is required")
		return
	}
	if req.LengthMS < 0 {
		writeValidationError(w, "length_ms must not be negative")
		return
	}
	if req.LengthMS > maxMS {
		writeValidationError(w, fmt.Sprintf("length_ms must not exceed %d", maxMS))
		return
	}
	effects, err := toEffects(req.Effects)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	seq := playback.NewTimedSequence(req.Name, time.Duration(req.LengthMS)*time.Millisecond)
	for _, fx := range effects {
		seq.AddEffect(fx)
	}

	features := &execution.Features{Caching: s.playCfg.DefaultCaching}
	if req.Caching != nil {
		features.Caching = *req.Caching
	}

	c, err := s.manager.CreateSequenceContext(features, seq)
	if err != nil {
		s.logger.Error("failed to create context", "name", req.Name, "error", err)
		writeInternalError(w, "failed to create context")
		return
	}

	if req.Start {
		c.Start()
		s.countCommand(execution.ActionStart)
	}

	writeJSON(w, http.StatusCreated, toContextResponse(execution.Describe(c)))
}

// handleGetContext returns one context.
func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	c, err := s.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "context not found")
		return
	}
	writeJSON(w, http.StatusOK, toContextResponse(execution.Describe(c)))
}

// handleContextAction applies start, pause, resume, stop or release.
func (s *Server) handleContextAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	action, err := execution.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		writeBadRequest(w, "action must be one of start, pause, resume, stop, release")
		return
	}

	c, err := s.manager.Apply(id, action)
	switch {
	case errors.Is(err, execution.ErrContextNotFound):
		writeNotFound(w, "context not found")
		return
	case err != nil:
		s.logger.Error("failed to apply action", "context_id", id, "action", string(action), "error", err)
		writeInternalError(w, "failed to apply action")
		return
	}
	s.countCommand(action)

	if action == execution.ActionRelease {
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "released": true})
		return
	}
	writeJSON(w, http.StatusOK, toContextResponse(execution.Describe(c)))
}

// handleReleaseContext stops and unregisters a context.
func (s *Server) handleReleaseContext(w http.ResponseWriter, r *http.Request) {
	c, err := s.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "context not found")
		return
	}
	s.manager.ReleaseContext(c)
	s.countCommand(execution.ActionRelease)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) countCommand(action execution.Action) {
	if s.metrics != nil {
		s.metrics.IncCommand("api", string(action))
	}
}
