package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-showcore/internal/execution"
)

// InsertLiveEffectsRequest carries ad-hoc effects. StartMS is an offset
// from the moment of insertion.
type InsertLiveEffectsRequest struct {
	Effects []EffectRequest `json:"effects"`
}

// handleInsertLiveEffects schedules effects on the system live context,
// creating it on first use.
func (s *Server) handleInsertLiveEffects(w http.ResponseWriter, r *http.Request) {
	var req InsertLiveEffectsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Effects) == 0 {
		writeValidationError(w, "at least one effect is required")
		return
	}
	effects, err := toEffects(req.Effects)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	live, err := s.manager.GetSystemLiveContext()
	if err != nil {
		s.logger.Error("failed to get live context", "error", err)
		writeInternalError(w, "live context unavailable")
		return
	}
	inserter, ok := live.(execution.LiveInserter)
	if !ok {
		s.logger.Error("live context does not accept effects", "context_id", live.ID())
		writeInternalError(w, "live context does not accept effects")
		return
	}

	for _, fx := range effects {
		inserter.Insert(fx)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"context_id": live.ID(),
		"inserted":   len(effects),
	})
}
