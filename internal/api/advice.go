package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/crewbrief/crewbrief/internal/advice"
	"github.com/crewbrief/crewbrief/internal/provider"
)

// adviceRequest is the wire shape of one advice call. ActorID attributes the
// request for rate limiting; ScopeID widens retrieval beyond the global
// knowledge base.
type adviceRequest struct {
	Category       string  `json:"category"`
	OccurrenceText string  `json:"occurrence_text"`
	ActorID        *string `json:"actor_id,omitempty"`
	ScopeID        *string `json:"scope_id,omitempty"`
}

type adviceResponse struct {
	Advice    *provider.Advice `json:"advice,omitempty"`
	FromCache bool             `json:"from_cache"`
	Declined  string           `json:"declined,omitempty"`
}

// Advice runs the cache-and-gate flow. Every well-formed request gets a 200
// with either advice or a declined reason; the gate never surfaces provider
// faults as 5xx.
// POST /api/v1/advice
func (h *Handlers) Advice(w http.ResponseWriter, r *http.Request) {
	var req adviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid JSON body")
		return
	}

	decision, err := h.adviser.GetAdvice(r.Context(), advice.Request{
		Category:       req.Category,
		OccurrenceText: req.OccurrenceText,
		ActorID:        req.ActorID,
		ScopeID:        req.ScopeID,
	})
	if err != nil {
		if errors.Is(err, advice.ErrValidation) {
			writeError(w, h.logger, http.StatusBadRequest, "category and occurrence_text are required")
			return
		}
		h.logger.Error("advice request", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "advice unavailable")
		return
	}

	if decision.Declined {
		writeJSON(w, h.logger, http.StatusOK, adviceResponse{Declined: decision.Reason})
		return
	}

	writeJSON(w, h.logger, http.StatusOK, adviceResponse{
		Advice:    decision.Payload,
		FromCache: decision.FromCache,
	})
}
