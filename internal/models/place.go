package models

import "time"

// LatLng represents a geographic coordinate pair.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Money represents a localized amount as returned by the Places API.
type Money struct {
	CurrencyCode string `json:"currency_code,omitempty"`
	Units        string `json:"units,omitempty"`
	Nanos        int32  `json:"nanos,omitempty"`
}

// PriceRange represents a low/high price band for a place.
type PriceRange struct {
	StartPrice *Money `json:"start_price,omitempty"`
	EndPrice   *Money `json:"end_price,omitempty"`
}

// PlaceRecord is a hydrated place: the full detail record fetched for one
// discovered place ID. Immutable once fetched; identified by ID.
type PlaceRecord struct {
	ID                     string      `json:"id"`
	Area                   string      `json:"area"` // search-area slug this record belongs to
	Name                   string      `json:"name"`
	ResourceName           string      `json:"resource_name"` // e.g. "places/ChIJ..."
	GoogleMapsURI          string      `json:"google_maps_uri,omitempty"`
	PrimaryType            string      `json:"primary_type,omitempty"`
	PrimaryTypeDisplayName string      `json:"primary_type_display_name,omitempty"`
	Types                  []string    `json:"types,omitempty"`
	Rating                 float64     `json:"rating,omitempty"`
	UserRatingCount        int         `json:"user_rating_count,omitempty"`
	PriceLevel             string      `json:"price_level,omitempty"`
	PriceRange             *PriceRange `json:"price_range,omitempty"`
	Location               *LatLng     `json:"location,omitempty"`
	HydratedAt             time.Time   `json:"hydrated_at"`
}
