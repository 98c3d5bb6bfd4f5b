package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ibrasaif1/topspots/internal/interfaces"
	"github.com/ibrasaif1/topspots/internal/services/hydration"
)

// HydrationHandler handles hydration HTTP requests
type HydrationHandler struct {
	hydration       interfaces.HydrationService
	fastConcurrency int
	logger          arbor.ILogger
}

// NewHydrationHandler creates a new hydration handler
func NewHydrationHandler(hydrationService interfaces.HydrationService, fastConcurrency int, logger arbor.ILogger) *HydrationHandler {
	return &HydrationHandler{
		hydration:       hydrationService,
		fastConcurrency: fastConcurrency,
		logger:          logger,
	}
}

// hydrateRequest bounds one hydration invocation. Fast switches to the
// configured high-concurrency window for bulk runs.
type hydrateRequest struct {
	Area        string `json:"area"`
	Concurrency int    `json:"concurrency,omitempty"`
	StartOffset int    `json:"start_offset,omitempty"`
	MaxCount    int    `json:"max_count,omitempty"`
	Fast        bool   `json:"fast,omitempty"`
}

// HydrateHandler handles POST /api/hydrate - hydrates one window of an
// area's discovered IDs into full place records.
func (h *HydrationHandler) HydrateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req hydrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Area == "" {
		WriteError(w, http.StatusBadRequest, "Missing area parameter")
		return
	}

	opts := interfaces.HydrateOptions{
		Concurrency: req.Concurrency,
		StartOffset: req.StartOffset,
		MaxCount:    req.MaxCount,
	}
	if req.Fast && opts.Concurrency == 0 {
		opts.Concurrency = h.fastConcurrency
	}

	result, err := h.hydration.HydrateBatch(r.Context(), req.Area, opts)
	if err != nil {
		switch {
		case errors.Is(err, interfaces.ErrAreaNotFound):
			WriteError(w, http.StatusNotFound, "Area not found, run discovery first")
		case errors.Is(err, hydration.ErrHydrationActive):
			WriteError(w, http.StatusConflict, "Hydration already running for this area")
		default:
			h.logger.Error().Err(err).Str("area", req.Area).Msg("Hydration failed")
			WriteError(w, http.StatusInternalServerError, "Hydration failed")
		}
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
