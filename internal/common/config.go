package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/ibrasaif1/topspots/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Insights    InsightsConfig  `toml:"insights"`
	Discovery   DiscoveryConfig `toml:"discovery"`
	Hydration   HydrationConfig `toml:"hydration"`
	Geocode     GeocodeConfig   `toml:"geocode"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// InsightsConfig contains Google Area Insights / Places API configuration
type InsightsConfig struct {
	APIKey          string        `toml:"api_key"`          // Google API key (env/KV store take priority, see ResolveAPIKey)
	RateLimit       int           `toml:"rate_limit"`       // Requests per second against Google APIs
	RequestTimeout  time.Duration `toml:"request_timeout"`  // HTTP request timeout
	UnitCost        float64       `toml:"unit_cost"`        // Per-call price in USD, for linear cost estimates
	IncludedTypes   []string      `toml:"included_types"`   // Place type filter, e.g. ["restaurant"]
	MinRating       float64       `toml:"min_rating"`       // Minimum rating filter
	MaxRating       float64       `toml:"max_rating"`       // Maximum rating filter
	OperatingStatus []string      `toml:"operating_status"` // e.g. ["OPERATING_STATUS_OPERATIONAL"]
}

// DiscoveryConfig contains subdivision search engine configuration
type DiscoveryConfig struct {
	PendingCeiling int `toml:"pending_ceiling"` // Safety ceiling on pending sub-regions per run
}

// HydrationConfig contains hydration pipeline configuration
type HydrationConfig struct {
	Concurrency      int           `toml:"concurrency"`        // Detail fetches in flight per batch (conservative default)
	FastConcurrency  int           `toml:"fast_concurrency"`   // Operator-tunable faster window for bulk runs
	BatchDelay       time.Duration `toml:"batch_delay"`        // Pause between settled batches
	MaxPerInvocation int           `toml:"max_per_invocation"` // Default MaxCount per hydrate call (0 = unbounded)
}

// GeocodeConfig contains Nominatim geocoding configuration
type GeocodeConfig struct {
	BaseURL   string `toml:"base_url"`
	UserAgent string `toml:"user_agent"` // Nominatim requires an identifying User-Agent
}

// SchedulerConfig contains configuration for scheduled re-discovery of areas
type SchedulerConfig struct {
	Enabled  bool     `toml:"enabled"`
	Schedule string   `toml:"schedule"` // Cron schedule, minimum 5-minute interval
	Areas    []string `toml:"areas"`    // City names to refresh on schedule
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in topspots.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Insights: InsightsConfig{
			APIKey:          "", // User must provide API key (env, KV store, or config)
			RateLimit:       10,
			RequestTimeout:  30 * time.Second,
			UnitCost:        0.02, // Area Insights / Places Pro per-call price
			IncludedTypes:   []string{"restaurant"},
			MinRating:       4.5,
			MaxRating:       5.0,
			OperatingStatus: []string{"OPERATING_STATUS_OPERATIONAL"},
		},
		Discovery: DiscoveryConfig{
			PendingCeiling: 2048, // Bounds pathological geometry; beyond it regions are dropped
		},
		Hydration: HydrationConfig{
			Concurrency:      8,
			FastConcurrency:  16,
			BatchDelay:       500 * time.Millisecond,
			MaxPerInvocation: 0,
		},
		Geocode: GeocodeConfig{
			BaseURL:   "https://nominatim.openstreetmap.org",
			UserAgent: "topspots/1.0 (+contact@example.com)",
		},
		Scheduler: SchedulerConfig{
			Enabled:  false, // Disabled by default - user must explicitly opt-in
			Schedule: "0 3 * * *",
			Areas:    []string{},
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TOPSPOTS_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("TOPSPOTS_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("TOPSPOTS_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("TOPSPOTS_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("TOPSPOTS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("TOPSPOTS_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Insights configuration
	if apiKey := os.Getenv("TOPSPOTS_GOOGLE_API_KEY"); apiKey != "" {
		config.Insights.APIKey = apiKey
	} else if apiKey := os.Getenv("GOOGLE_API_KEY"); apiKey != "" {
		config.Insights.APIKey = apiKey
	}
	if rateLimit := os.Getenv("TOPSPOTS_INSIGHTS_RATE_LIMIT"); rateLimit != "" {
		if rl, err := strconv.Atoi(rateLimit); err == nil && rl > 0 {
			config.Insights.RateLimit = rl
		}
	}
	if unitCost := os.Getenv("TOPSPOTS_INSIGHTS_UNIT_COST"); unitCost != "" {
		if uc, err := strconv.ParseFloat(unitCost, 64); err == nil && uc >= 0 {
			config.Insights.UnitCost = uc
		}
	}

	// Discovery configuration
	if ceiling := os.Getenv("TOPSPOTS_DISCOVERY_PENDING_CEILING"); ceiling != "" {
		if c, err := strconv.Atoi(ceiling); err == nil && c > 0 {
			config.Discovery.PendingCeiling = c
		}
	}

	// Hydration configuration
	if concurrency := os.Getenv("TOPSPOTS_HYDRATION_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil && c > 0 {
			config.Hydration.Concurrency = c
		}
	}
	if delay := os.Getenv("TOPSPOTS_HYDRATION_BATCH_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			config.Hydration.BatchDelay = d
		}
	}

	// Geocode configuration
	if baseURL := os.Getenv("TOPSPOTS_GEOCODE_BASE_URL"); baseURL != "" {
		config.Geocode.BaseURL = baseURL
	}
	if userAgent := os.Getenv("TOPSPOTS_GEOCODE_USER_AGENT"); userAgent != "" {
		config.Geocode.UserAgent = userAgent
	}

	// Scheduler configuration
	if enabled := os.Getenv("TOPSPOTS_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}
	if schedule := os.Getenv("TOPSPOTS_SCHEDULER_SCHEDULE"); schedule != "" {
		config.Scheduler.Schedule = schedule
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ResolveAPIKey resolves an API key by name with environment variable priority.
// Resolution order: environment variables -> KV store -> config fallback -> error.
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"google_api_key": {"TOPSPOTS_GOOGLE_API_KEY", "GOOGLE_API_KEY"},
	}

	if envVarNames, hasMappedEnv := keyToEnvMapping[name]; hasMappedEnv {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// ValidateRefreshSchedule validates a cron schedule expression and ensures a
// minimum 5-minute interval.
func ValidateRefreshSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}
	if strings.HasPrefix(minuteField, "*/") {
		if interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/")); err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
