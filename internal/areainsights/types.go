// Package areainsights provides a client for the Google Area Insights API
// (aggregate place counts and capped ID enumeration over an area) and the
// Places API v1 details endpoint. This package centralizes all remote place
// interactions for the application.
package areainsights

import (
	"fmt"
	"time"

	"github.com/ibrasaif1/topspots/internal/geo"
)

// ListCap is the hard limit on IDs the INSIGHT_PLACES operation returns for
// one query. The remote silently truncates beyond it, so callers must only
// enumerate areas whose count is at or under the cap.
const ListCap = 100

// AreaFilter describes one area query: the polygon to cover and the place
// filters applied server-side.
type AreaFilter struct {
	Polygon         geo.Polygon
	IncludedTypes   []string
	MinRating       float64
	MaxRating       float64
	OperatingStatus []string
}

// APIError represents a non-2xx response from the remote service.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("area insights API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// RateLimitError represents a 429-class response. It is the authoritative
// stop signal for the hydration pipeline.
type RateLimitError struct {
	RetryAfter time.Duration
	Endpoint   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("area insights rate limit exceeded (endpoint: %s), retry after %v", e.Endpoint, e.RetryAfter)
}

// insightsRequest is the computeInsights request body.
type insightsRequest struct {
	Insights []string       `json:"insights"`
	Filter   insightsFilter `json:"filter"`
}

type insightsFilter struct {
	LocationFilter  locationFilter `json:"locationFilter"`
	TypeFilter      *typeFilter    `json:"typeFilter,omitempty"`
	RatingFilter    *ratingFilter  `json:"ratingFilter,omitempty"`
	OperatingStatus []string       `json:"operatingStatus,omitempty"`
}

type locationFilter struct {
	Circle circleFilter `json:"circle"`
}

type circleFilter struct {
	Center circleCenter `json:"center"`
	Radius float64      `json:"radius"`
}

type circleCenter struct {
	LatLng latLng `json:"latLng"`
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type typeFilter struct {
	IncludedTypes []string `json:"includedTypes"`
}

type ratingFilter struct {
	MinRating float64 `json:"minRating,omitempty"`
	MaxRating float64 `json:"maxRating,omitempty"`
}

// insightsResponse is the computeInsights response body. Count arrives as a
// decimal string; places carry resource names like "places/ChIJ...".
type insightsResponse struct {
	Count  string `json:"count,omitempty"`
	Places []struct {
		Name string `json:"name,omitempty"`
		ID   string `json:"id,omitempty"`
	} `json:"places,omitempty"`
}

// placeDetailsResponse is the Places v1 details response, limited to the
// fields requested via the field mask.
type placeDetailsResponse struct {
	ID                     string         `json:"id"`
	Name                   string         `json:"name"` // resource name, "places/..."
	DisplayName            *localizedText `json:"displayName,omitempty"`
	GoogleMapsURI          string         `json:"googleMapsUri,omitempty"`
	PrimaryType            string         `json:"primaryType,omitempty"`
	PrimaryTypeDisplayName *localizedText `json:"primaryTypeDisplayName,omitempty"`
	Types                  []string       `json:"types,omitempty"`
	Rating                 float64        `json:"rating,omitempty"`
	UserRatingCount        int            `json:"userRatingCount,omitempty"`
	PriceLevel             string         `json:"priceLevel,omitempty"`
	PriceRange             *priceRange    `json:"priceRange,omitempty"`
	Location               *latLng        `json:"location,omitempty"`
}

type localizedText struct {
	Text         string `json:"text,omitempty"`
	LanguageCode string `json:"languageCode,omitempty"`
}

type priceRange struct {
	StartPrice *money `json:"startPrice,omitempty"`
	EndPrice   *money `json:"endPrice,omitempty"`
}

type money struct {
	CurrencyCode string `json:"currencyCode,omitempty"`
	Units        string `json:"units,omitempty"`
	Nanos        int32  `json:"nanos,omitempty"`
}
