package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ibrasaif1/topspots/internal/interfaces"
)

// AreaHandler handles search-area HTTP requests
type AreaHandler struct {
	storage interfaces.AreaStorage
	logger  arbor.ILogger
}

// NewAreaHandler creates a new area handler
func NewAreaHandler(storage interfaces.AreaStorage, logger arbor.ILogger) *AreaHandler {
	return &AreaHandler{
		storage: storage,
		logger:  logger,
	}
}

// ListAreasHandler handles GET /api/areas - summarizes all discovered areas
func (h *AreaHandler) ListAreasHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	summaries, err := h.storage.ListAreas(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list areas")
		WriteError(w, http.StatusInternalServerError, "Failed to list areas")
		return
	}

	WriteJSON(w, http.StatusOK, summaries)
}

// AreaSubrouteHandler dispatches /api/areas/{slug} and
// /api/areas/{slug}/places by method and suffix.
func (h *AreaHandler) AreaSubrouteHandler(w http.ResponseWriter, r *http.Request) {
	slug, rest, ok := h.parsePath(w, r)
	if !ok {
		return
	}

	switch {
	case rest == "places" && r.Method == http.MethodGet:
		h.getPlaces(w, r, slug)
	case rest == "" && r.Method == http.MethodDelete:
		h.deleteArea(w, r, slug)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// getPlaces returns the area's hydrated place records, best rated first.
func (h *AreaHandler) getPlaces(w http.ResponseWriter, r *http.Request, slug string) {
	state, err := h.storage.GetHydrationState(r.Context(), slug)
	if err != nil {
		if errors.Is(err, interfaces.ErrAreaNotFound) {
			WriteError(w, http.StatusNotFound, "Area not found")
			return
		}
		h.logger.Error().Err(err).Str("area", slug).Msg("Failed to load hydration state")
		WriteError(w, http.StatusInternalServerError, "Failed to load area")
		return
	}

	records, err := h.storage.GetPlaces(r.Context(), slug)
	if err != nil {
		h.logger.Error().Err(err).Str("area", slug).Msg("Failed to load place records")
		WriteError(w, http.StatusInternalServerError, "Failed to load places")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"area":         slug,
		"total_ids":    len(state.IDs),
		"hydrated":     len(records),
		"rate_limited": state.RateLimited,
		"places":       records,
	})
}

// deleteArea removes everything stored for the area.
func (h *AreaHandler) deleteArea(w http.ResponseWriter, r *http.Request, slug string) {
	if _, err := h.storage.GetHydrationState(r.Context(), slug); err != nil {
		if errors.Is(err, interfaces.ErrAreaNotFound) {
			WriteError(w, http.StatusNotFound, "Area not found")
			return
		}
		h.logger.Error().Err(err).Str("area", slug).Msg("Failed to load hydration state")
		WriteError(w, http.StatusInternalServerError, "Failed to load area")
		return
	}

	if err := h.storage.DeleteArea(r.Context(), slug); err != nil {
		h.logger.Error().Err(err).Str("area", slug).Msg("Failed to delete area")
		WriteError(w, http.StatusInternalServerError, "Failed to delete area")
		return
	}

	WriteSuccess(w, "Area deleted")
}

// parsePath extracts the slug and trailing segment from
// /api/areas/{slug}[/{rest}].
func (h *AreaHandler) parsePath(w http.ResponseWriter, r *http.Request) (slug, rest string, ok bool) {
	path := strings.TrimPrefix(r.URL.Path, "/api/areas/")
	parts := strings.SplitN(path, "/", 2)

	decoded, err := url.QueryUnescape(parts[0])
	if err != nil || decoded == "" {
		WriteError(w, http.StatusBadRequest, "Invalid area slug")
		return "", "", false
	}

	if len(parts) == 2 {
		rest = strings.Trim(parts[1], "/")
	}
	return decoded, rest, true
}
