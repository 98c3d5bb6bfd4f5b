package interfaces

import (
	"context"
	"errors"

	"github.com/ibrasaif1/topspots/internal/models"
)

// ErrAreaNotFound is returned when no persisted data exists for an area slug.
var ErrAreaNotFound = errors.New("search area not found")

// AreaStorage - interface for discovery and hydration persistence, keyed by
// search-area slug.
type AreaStorage interface {
	// ID list operations
	SaveIDList(ctx context.Context, list *models.AreaIDList) error
	GetIDList(ctx context.Context, area string) (*models.AreaIDList, error)

	// Hydration state operations
	SaveHydrationState(ctx context.Context, state *models.HydrationState) error
	GetHydrationState(ctx context.Context, area string) (*models.HydrationState, error)

	// Place record operations. SavePlaces deduplicates by place ID,
	// first-seen wins; re-saving an existing record is a no-op.
	SavePlaces(ctx context.Context, area string, records []*models.PlaceRecord) error
	GetPlaces(ctx context.Context, area string) ([]*models.PlaceRecord, error)
	HydratedIDs(ctx context.Context, area string) (map[string]struct{}, error)
	CountPlaces(ctx context.Context, area string) (int, error)

	// Area operations
	ListAreas(ctx context.Context) ([]*models.AreaSummary, error)
	DeleteArea(ctx context.Context, area string) error
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	AreaStorage() AreaStorage
	KeyValueStorage() KeyValueStorage
	DB() interface{}
	Close() error
}
