package common

import (
	"strings"

	"github.com/google/uuid"
)

// NewRunID generates a unique discovery-run ID with the "run_" prefix.
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// SlugifyArea normalizes a city or caller-assigned label into the persistence
// key for a search area. "San Diego" -> "san_diego".
func SlugifyArea(label string) string {
	slug := strings.ToLower(strings.TrimSpace(label))
	slug = strings.Join(strings.Fields(slug), "_")
	return slug
}
