package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ibrasaif1/topspots/internal/common"
	"github.com/ibrasaif1/topspots/internal/interfaces"
	"github.com/ibrasaif1/topspots/internal/models"
)

// Service wraps the subdivision engine with persistence: a completed run
// saves the area's ID list and seeds its hydration checkpoint.
type Service struct {
	engine  *Engine
	storage interfaces.AreaStorage
	logger  arbor.ILogger
}

// NewService creates a discovery service.
func NewService(engine *Engine, storage interfaces.AreaStorage, logger arbor.ILogger) *Service {
	return &Service{
		engine:  engine,
		storage: storage,
		logger:  logger,
	}
}

// DiscoverArea runs the subdivision search over the area's polygon, persists
// the resulting ID list, and resets the area's hydration checkpoint to the
// new list. Previously hydrated place records are untouched; the hydration
// pipeline skips them on the next pass.
func (s *Service) DiscoverArea(ctx context.Context, area models.SearchArea) (*models.AreaIDList, error) {
	runID := common.NewRunID()
	s.logger.Info().Str("run_id", runID).Str("area", area.Slug).Msg("Discovery run started")

	ids, err := s.engine.DiscoverIDs(ctx, area.Polygon)
	if err != nil {
		return nil, fmt.Errorf("discovery failed for area %s: %w", area.Slug, err)
	}

	now := time.Now().UTC()
	list := &models.AreaIDList{
		RunID:       runID,
		Area:        area.Slug,
		IDs:         ids,
		GeneratedAt: now,
	}

	if err := s.storage.SaveIDList(ctx, list); err != nil {
		return nil, fmt.Errorf("failed to save ID list for area %s: %w", area.Slug, err)
	}

	state := &models.HydrationState{
		Area:      area.Slug,
		IDs:       ids,
		Offset:    0,
		UpdatedAt: now,
	}
	if err := s.storage.SaveHydrationState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save hydration state for area %s: %w", area.Slug, err)
	}

	s.logger.Info().Str("run_id", runID).Str("area", area.Slug).Int("ids", len(ids)).Msg("Discovery run persisted")

	return list, nil
}
