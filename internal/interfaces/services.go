package interfaces

import (
	"context"
	"time"

	"github.com/ibrasaif1/topspots/internal/areainsights"
	"github.com/ibrasaif1/topspots/internal/geo"
	"github.com/ibrasaif1/topspots/internal/models"
)

// AreaClient defines the three remote operations the discovery and hydration
// services depend on. Implemented by areainsights.Client; tests substitute
// deterministic fakes.
type AreaClient interface {
	// Count returns the number of matching places inside the filter area.
	Count(ctx context.Context, filter areainsights.AreaFilter) (int, error)

	// ListPlaceIDs enumerates matching place resource names; the remote
	// silently truncates beyond areainsights.ListCap.
	ListPlaceIDs(ctx context.Context, filter areainsights.AreaFilter) ([]string, error)

	// PlaceDetails fetches one place's detail record. (nil, nil) means the
	// remote reports the place as gone (stale ID).
	PlaceDetails(ctx context.Context, resourceName string) (*models.PlaceRecord, error)
}

// GeocodeService resolves a city name to a bounding polygon.
type GeocodeService interface {
	ResolveCity(ctx context.Context, city string) (geo.Polygon, error)
}

// DiscoveryService runs the subdivision search for an area and persists the
// resulting ID list.
type DiscoveryService interface {
	// DiscoverArea discovers, deduplicates, sorts, and persists the place IDs
	// inside the area, and initializes the area's hydration state.
	DiscoverArea(ctx context.Context, area models.SearchArea) (*models.AreaIDList, error)
}

// HydrationService fetches detail records for previously discovered IDs in
// resumable, checkpointed batches.
type HydrationService interface {
	HydrateBatch(ctx context.Context, area string, opts HydrateOptions) (*HydrateResult, error)
}

// HydrateOptions bounds one hydration invocation. Zero values fall back to
// configured defaults.
type HydrateOptions struct {
	Concurrency int           `json:"concurrency,omitempty"`
	BatchDelay  time.Duration `json:"-"`
	StartOffset int           `json:"start_offset,omitempty"`
	MaxCount    int           `json:"max_count,omitempty"`
}

// HydrateResult is the aggregate outcome of one hydration invocation.
// NextStart is meaningful only when HasMore is true: the offset the caller
// should pass to the next invocation.
type HydrateResult struct {
	Processed    int  `json:"processed"`
	Successful   int  `json:"successful"`
	TotalRecords int  `json:"total_records"`
	RateLimitHit bool `json:"rate_limit_hit"`
	HasMore      bool `json:"has_more"`
	NextStart    int  `json:"next_start,omitempty"`
}
