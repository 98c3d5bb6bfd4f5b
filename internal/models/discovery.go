package models

import (
	"time"

	"github.com/ibrasaif1/topspots/internal/geo"
)

// SearchArea is the immutable root polygon for one discovery run. The slug is
// the persistence key for everything derived from the run.
type SearchArea struct {
	Slug    string      `json:"slug"`
	Label   string      `json:"label"`
	Polygon geo.Polygon `json:"polygon"`
}

// AreaIDList is the persisted, deduplicated, sorted set of place IDs
// discovered for a search area. RunID identifies the discovery run that
// produced it, correlating the stored list with the run's log events.
type AreaIDList struct {
	RunID       string    `json:"run_id"`
	Area        string    `json:"area"`
	IDs         []string  `json:"ids"`
	GeneratedAt time.Time `json:"generated_at"`
}

// HydrationState is the persisted hydration checkpoint for one area. It is
// created when subdivision search completes and only ever extended: each
// hydration batch advances Offset and appends records, never removes.
type HydrationState struct {
	Area        string    `json:"area"`
	IDs         []string  `json:"ids"`    // full discovered ID list, hydration input
	Offset      int       `json:"offset"` // ids attempted so far (end of last settled batch)
	RateLimited bool      `json:"rate_limited"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Remaining returns how many IDs have not yet been attempted.
func (s *HydrationState) Remaining() int {
	if s.Offset >= len(s.IDs) {
		return 0
	}
	return len(s.IDs) - s.Offset
}

// AreaSummary is the list view of a persisted search area.
type AreaSummary struct {
	Area        string    `json:"area"`
	TotalIDs    int       `json:"total_ids"`
	Hydrated    int       `json:"hydrated"`
	RateLimited bool      `json:"rate_limited"`
	UpdatedAt   time.Time `json:"updated_at"`
}
