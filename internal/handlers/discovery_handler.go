package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ibrasaif1/topspots/internal/areainsights"
	"github.com/ibrasaif1/topspots/internal/common"
	"github.com/ibrasaif1/topspots/internal/geo"
	"github.com/ibrasaif1/topspots/internal/geocode"
	"github.com/ibrasaif1/topspots/internal/interfaces"
	"github.com/ibrasaif1/topspots/internal/models"
)

// DiscoveryHandler handles place discovery HTTP requests
type DiscoveryHandler struct {
	discovery interfaces.DiscoveryService
	geocoder  interfaces.GeocodeService
	client    interfaces.AreaClient
	filter    areainsights.AreaFilter
	unitCost  float64
	logger    arbor.ILogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(
	discovery interfaces.DiscoveryService,
	geocoder interfaces.GeocodeService,
	client interfaces.AreaClient,
	filter areainsights.AreaFilter,
	unitCost float64,
	logger arbor.ILogger,
) *DiscoveryHandler {
	return &DiscoveryHandler{
		discovery: discovery,
		geocoder:  geocoder,
		client:    client,
		filter:    filter,
		unitCost:  unitCost,
		logger:    logger,
	}
}

// discoverRequest accepts either a city name to geocode or an explicit
// polygon with a label.
type discoverRequest struct {
	City    string           `json:"city,omitempty"`
	Label   string           `json:"label,omitempty"`
	Polygon []geo.Coordinate `json:"polygon,omitempty"`
}

// CountHandler handles GET /api/count?city={name} - returns the match count
// for a city's bounding box plus a linear hydration cost estimate.
func (h *DiscoveryHandler) CountHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	city := r.URL.Query().Get("city")
	if city == "" {
		WriteError(w, http.StatusBadRequest, "Missing city parameter")
		return
	}

	polygon, err := h.geocoder.ResolveCity(r.Context(), city)
	if err != nil {
		if errors.Is(err, geocode.ErrCityNotFound) {
			WriteError(w, http.StatusNotFound, "City not found")
			return
		}
		h.logger.Error().Err(err).Str("city", city).Msg("Geocoding failed")
		WriteError(w, http.StatusBadGateway, "Failed to resolve city")
		return
	}

	filter := h.filter
	filter.Polygon = polygon

	count, err := h.client.Count(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Str("city", city).Msg("Count failed")
		WriteError(w, http.StatusBadGateway, "Failed to count places")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"city":               city,
		"area":               common.SlugifyArea(city),
		"count":              count,
		"unit_cost_usd":      h.unitCost,
		"estimated_cost_usd": float64(count) * h.unitCost,
	})
}

// DiscoverHandler handles POST /api/discover - runs the subdivision search
// for a city or an explicit polygon and persists the discovered ID list.
func (h *DiscoveryHandler) DiscoverHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	area, status, err := h.resolveArea(r, &req)
	if err != nil {
		WriteError(w, status, err.Error())
		return
	}

	h.logger.Info().Str("area", area.Slug).Msg("Starting discovery run")

	list, err := h.discovery.DiscoverArea(r.Context(), area)
	if err != nil {
		if errors.Is(err, geo.ErrInvalidGeometry) {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("area", area.Slug).Msg("Discovery run failed")
		WriteError(w, http.StatusInternalServerError, "Discovery run failed")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":                       list.RunID,
		"area":                         list.Area,
		"label":                        area.Label,
		"ids":                          len(list.IDs),
		"generated_at":                 list.GeneratedAt,
		"estimated_hydration_cost_usd": float64(len(list.IDs)) * h.unitCost,
	})
}

// resolveArea builds the search area from the request: an explicit polygon
// wins over a city name.
func (h *DiscoveryHandler) resolveArea(r *http.Request, req *discoverRequest) (models.SearchArea, int, error) {
	if len(req.Polygon) > 0 {
		if req.Label == "" {
			return models.SearchArea{}, http.StatusBadRequest, errors.New("label is required with an explicit polygon")
		}
		return models.SearchArea{
			Slug:    common.SlugifyArea(req.Label),
			Label:   req.Label,
			Polygon: geo.Polygon(req.Polygon),
		}, 0, nil
	}

	if req.City == "" {
		return models.SearchArea{}, http.StatusBadRequest, errors.New("either city or polygon is required")
	}

	polygon, err := h.geocoder.ResolveCity(r.Context(), req.City)
	if err != nil {
		if errors.Is(err, geocode.ErrCityNotFound) {
			return models.SearchArea{}, http.StatusNotFound, errors.New("city not found")
		}
		h.logger.Error().Err(err).Str("city", req.City).Msg("Geocoding failed")
		return models.SearchArea{}, http.StatusBadGateway, errors.New("failed to resolve city")
	}

	return models.SearchArea{
		Slug:    common.SlugifyArea(req.City),
		Label:   req.City,
		Polygon: polygon,
	}, 0, nil
}
