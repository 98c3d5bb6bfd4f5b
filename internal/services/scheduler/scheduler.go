// Package scheduler periodically re-runs discovery for configured cities so
// their ID lists track remote changes. Hydration is left to the operator;
// re-discovery only refreshes what there is to hydrate.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ibrasaif1/topspots/internal/common"
	"github.com/ibrasaif1/topspots/internal/interfaces"
	"github.com/ibrasaif1/topspots/internal/models"
)

// refreshTimeout bounds one full refresh pass across all configured areas.
const refreshTimeout = 30 * time.Minute

// Service re-discovers configured areas on a cron schedule.
type Service struct {
	discovery interfaces.DiscoveryService
	geocoder  interfaces.GeocodeService
	cron      *cron.Cron
	logger    arbor.ILogger

	schedule string
	areas    []string

	mu         sync.Mutex
	running    bool
	refreshing bool
}

// NewService creates a new scheduler service
func NewService(discovery interfaces.DiscoveryService, geocoder interfaces.GeocodeService, config common.SchedulerConfig, logger arbor.ILogger) *Service {
	return &Service{
		discovery: discovery,
		geocoder:  geocoder,
		cron:      cron.New(),
		logger:    logger,
		schedule:  config.Schedule,
		areas:     config.Areas,
	}
}

// Start begins the scheduler with the configured cron expression.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if len(s.areas) == 0 {
		s.logger.Warn().Msg("Scheduler enabled but no areas configured, nothing to refresh")
		return nil
	}

	if err := common.ValidateRefreshSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid refresh schedule: %w", err)
	}

	if _, err := s.cron.AddFunc(s.schedule, s.runRefresh); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", s.schedule).
		Int("areas", len(s.areas)).
		Msg("Scheduler started")

	return nil
}

// Stop halts the scheduler and waits for an in-flight refresh to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.logger.Info().Msg("Scheduler stopped")
}

// runRefresh re-discovers every configured area. Overlapping ticks are
// skipped rather than queued.
func (s *Service) runRefresh() {
	s.mu.Lock()
	if s.refreshing {
		s.mu.Unlock()
		s.logger.Warn().Msg("Previous refresh still running, skipping tick")
		return
	}
	s.refreshing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.refreshing = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	start := time.Now()
	var failed int

	for _, city := range s.areas {
		if err := s.refreshArea(ctx, city); err != nil {
			failed++
			s.logger.Error().Err(err).Str("city", city).Msg("Scheduled re-discovery failed")
		}
	}

	s.logger.Info().
		Int("areas", len(s.areas)).
		Int("failed", failed).
		Dur("elapsed", time.Since(start)).
		Msg("Scheduled refresh completed")
}

func (s *Service) refreshArea(ctx context.Context, city string) error {
	polygon, err := s.geocoder.ResolveCity(ctx, city)
	if err != nil {
		return fmt.Errorf("failed to resolve city: %w", err)
	}

	area := models.SearchArea{
		Slug:    common.SlugifyArea(city),
		Label:   city,
		Polygon: polygon,
	}

	list, err := s.discovery.DiscoverArea(ctx, area)
	if err != nil {
		return err
	}

	s.logger.Info().Str("area", area.Slug).Int("ids", len(list.IDs)).Msg("Area refreshed")
	return nil
}
