package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ibrasaif1/topspots/internal/interfaces"
	"github.com/ibrasaif1/topspots/internal/models"
)

// AreaStorage implements the AreaStorage interface for Badger. ID lists and
// hydration states are keyed by area slug; place records are keyed by place
// ID and carry an indexed Area field for per-area queries.
type AreaStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAreaStorage creates a new AreaStorage instance
func NewAreaStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AreaStorage {
	return &AreaStorage{
		db:     db,
		logger: logger,
	}
}

// SaveIDList persists the area's discovered ID list, replacing any prior run.
func (s *AreaStorage) SaveIDList(ctx context.Context, list *models.AreaIDList) error {
	if list.Area == "" {
		return fmt.Errorf("area slug is required")
	}
	if err := s.db.Store().Upsert(list.Area, list); err != nil {
		return fmt.Errorf("failed to save ID list: %w", err)
	}
	return nil
}

// GetIDList retrieves the area's discovered ID list.
func (s *AreaStorage) GetIDList(ctx context.Context, area string) (*models.AreaIDList, error) {
	var list models.AreaIDList
	err := s.db.Store().Get(area, &list)
	if err == badgerhold.ErrNotFound {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrAreaNotFound, area)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ID list: %w", err)
	}
	return &list, nil
}

// SaveHydrationState persists the area's hydration checkpoint.
func (s *AreaStorage) SaveHydrationState(ctx context.Context, state *models.HydrationState) error {
	if state.Area == "" {
		return fmt.Errorf("area slug is required")
	}
	if err := s.db.Store().Upsert(state.Area, state); err != nil {
		return fmt.Errorf("failed to save hydration state: %w", err)
	}
	return nil
}

// GetHydrationState retrieves the area's hydration checkpoint.
func (s *AreaStorage) GetHydrationState(ctx context.Context, area string) (*models.HydrationState, error) {
	var state models.HydrationState
	err := s.db.Store().Get(area, &state)
	if err == badgerhold.ErrNotFound {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrAreaNotFound, area)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hydration state: %w", err)
	}
	return &state, nil
}

// SavePlaces inserts place records, first-seen wins: a record whose ID is
// already stored is left untouched, so re-hydration never overwrites.
func (s *AreaStorage) SavePlaces(ctx context.Context, area string, records []*models.PlaceRecord) error {
	for _, record := range records {
		if record.ID == "" {
			return fmt.Errorf("place record ID is required")
		}
		record.Area = area
		err := s.db.Store().Insert(record.ID, record)
		if err == badgerhold.ErrKeyExists {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to save place record %s: %w", record.ID, err)
		}
	}
	return nil
}

// GetPlaces returns the area's hydrated place records sorted by descending
// rating, ties broken by user rating count.
func (s *AreaStorage) GetPlaces(ctx context.Context, area string) ([]*models.PlaceRecord, error) {
	var records []models.PlaceRecord
	err := s.db.Store().Find(&records, badgerhold.Where("Area").Eq(area))
	if err != nil {
		return nil, fmt.Errorf("failed to query place records: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Rating != records[j].Rating {
			return records[i].Rating > records[j].Rating
		}
		return records[i].UserRatingCount > records[j].UserRatingCount
	})

	result := make([]*models.PlaceRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

// HydratedIDs returns the set of place IDs already hydrated for the area.
func (s *AreaStorage) HydratedIDs(ctx context.Context, area string) (map[string]struct{}, error) {
	var records []models.PlaceRecord
	err := s.db.Store().Find(&records, badgerhold.Where("Area").Eq(area))
	if err != nil {
		return nil, fmt.Errorf("failed to query hydrated IDs: %w", err)
	}

	done := make(map[string]struct{}, len(records))
	for _, r := range records {
		done[r.ID] = struct{}{}
	}
	return done, nil
}

// CountPlaces returns how many place records the area has.
func (s *AreaStorage) CountPlaces(ctx context.Context, area string) (int, error) {
	count, err := s.db.Store().Count(&models.PlaceRecord{}, badgerhold.Where("Area").Eq(area))
	if err != nil {
		return 0, fmt.Errorf("failed to count place records: %w", err)
	}
	return int(count), nil
}

// ListAreas summarizes every area that has a hydration state.
func (s *AreaStorage) ListAreas(ctx context.Context) ([]*models.AreaSummary, error) {
	var states []models.HydrationState
	if err := s.db.Store().Find(&states, nil); err != nil {
		return nil, fmt.Errorf("failed to list hydration states: %w", err)
	}

	summaries := make([]*models.AreaSummary, 0, len(states))
	for _, state := range states {
		hydrated, err := s.CountPlaces(ctx, state.Area)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, &models.AreaSummary{
			Area:        state.Area,
			TotalIDs:    len(state.IDs),
			Hydrated:    hydrated,
			RateLimited: state.RateLimited,
			UpdatedAt:   state.UpdatedAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Area < summaries[j].Area
	})

	return summaries, nil
}

// DeleteArea removes the area's ID list, hydration state, and place records.
func (s *AreaStorage) DeleteArea(ctx context.Context, area string) error {
	if err := s.db.Store().Delete(area, &models.AreaIDList{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete ID list: %w", err)
	}
	if err := s.db.Store().Delete(area, &models.HydrationState{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete hydration state: %w", err)
	}
	if err := s.db.Store().DeleteMatching(&models.PlaceRecord{}, badgerhold.Where("Area").Eq(area)); err != nil {
		return fmt.Errorf("failed to delete place records: %w", err)
	}

	s.logger.Info().Str("area", area).Msg("Deleted area")
	return nil
}
