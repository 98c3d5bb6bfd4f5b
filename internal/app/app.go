package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ibrasaif1/topspots/internal/areainsights"
	"github.com/ibrasaif1/topspots/internal/common"
	"github.com/ibrasaif1/topspots/internal/geocode"
	"github.com/ibrasaif1/topspots/internal/handlers"
	"github.com/ibrasaif1/topspots/internal/httpclient"
	"github.com/ibrasaif1/topspots/internal/interfaces"
	"github.com/ibrasaif1/topspots/internal/services/discovery"
	"github.com/ibrasaif1/topspots/internal/services/hydration"
	"github.com/ibrasaif1/topspots/internal/services/scheduler"
	"github.com/ibrasaif1/topspots/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Remote clients
	InsightsClient *areainsights.Client
	GeocodeClient  *geocode.Client

	// Core services
	DiscoveryService interfaces.DiscoveryService
	HydrationService interfaces.HydrationService
	SchedulerService *scheduler.Service

	// HTTP handlers
	APIHandler       *handlers.APIHandler
	DiscoveryHandler *handlers.DiscoveryHandler
	HydrationHandler *handlers.HydrationHandler
	AreaHandler      *handlers.AreaHandler
	KVHandler        *handlers.KVHandler
}

// New initializes the application with all dependencies
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := badger.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	apiKey, err := common.ResolveAPIKey(ctx, storageManager.KeyValueStorage(), "google_api_key", cfg.Insights.APIKey)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to resolve Google API key: %w", err)
	}

	app.InsightsClient = areainsights.NewClient(
		apiKey,
		areainsights.WithHTTPClient(httpclient.NewDefaultHTTPClient(cfg.Insights.RequestTimeout)),
		areainsights.WithLogger(logger),
		areainsights.WithRateLimit(cfg.Insights.RateLimit),
	)

	app.GeocodeClient = geocode.NewClient(
		geocode.WithBaseURL(cfg.Geocode.BaseURL),
		geocode.WithUserAgent(cfg.Geocode.UserAgent),
		geocode.WithLogger(logger),
	)

	baseFilter := areainsights.AreaFilter{
		IncludedTypes:   cfg.Insights.IncludedTypes,
		MinRating:       cfg.Insights.MinRating,
		MaxRating:       cfg.Insights.MaxRating,
		OperatingStatus: cfg.Insights.OperatingStatus,
	}

	engine := discovery.NewEngine(
		app.InsightsClient,
		baseFilter,
		logger,
		discovery.WithPendingCeiling(cfg.Discovery.PendingCeiling),
	)
	app.DiscoveryService = discovery.NewService(engine, storageManager.AreaStorage(), logger)

	app.HydrationService = hydration.NewPipeline(
		app.InsightsClient,
		storageManager.AreaStorage(),
		logger,
		hydration.WithConcurrency(cfg.Hydration.Concurrency),
		hydration.WithBatchDelay(cfg.Hydration.BatchDelay),
	)

	app.SchedulerService = scheduler.NewService(app.DiscoveryService, app.GeocodeClient, cfg.Scheduler, logger)

	app.APIHandler = handlers.NewAPIHandler()
	app.DiscoveryHandler = handlers.NewDiscoveryHandler(
		app.DiscoveryService,
		app.GeocodeClient,
		app.InsightsClient,
		baseFilter,
		cfg.Insights.UnitCost,
		logger,
	)
	app.HydrationHandler = handlers.NewHydrationHandler(app.HydrationService, cfg.Hydration.FastConcurrency, logger)
	app.AreaHandler = handlers.NewAreaHandler(storageManager.AreaStorage(), logger)
	app.KVHandler = handlers.NewKVHandler(storageManager.KeyValueStorage(), logger)

	if cfg.Scheduler.Enabled {
		if err := app.SchedulerService.Start(); err != nil {
			storageManager.Close()
			return nil, fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	logger.Info().Msg("Application initialized")

	return app, nil
}

// Close releases application resources in reverse initialization order.
func (a *App) Close() error {
	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}
	return nil
}
