package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Environment represents different deployment environments.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the storytime service.
// Environment variables are parsed from the STORYTIME_ prefix,
// e.g. STORYTIME_HTTP_PORT, STORYTIME_DB_DRIVER.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Persistence
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"./var/storytime.db"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// Calendar provider
	CalendarProvider string `envconfig:"CALENDAR_PROVIDER" default:"google"`
	CalendarBaseURL  string `envconfig:"CALENDAR_BASE_URL" default:"https://www.googleapis.com/calendar/v3"`
	// CredentialsFile maps credential references to bearer tokens. An
	// external OAuth flow owns acquisition and refresh.
	CredentialsFile string `envconfig:"CREDENTIALS_FILE" default:"./var/credentials.json"`

	// AI story providers, tried in order
	StoryProviders string `envconfig:"STORY_PROVIDERS" default:"gemini"`
	GeminiBaseURL  string `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta"`
	GeminiAPIKey   string `envconfig:"GEMINI_API_KEY" default:""`
	GeminiModel    string `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`
	OpenAIBaseURL  string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIModel    string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`

	// Chat delivery
	SlackWebhookURL string `envconfig:"SLACK_WEBHOOK_URL" default:""`

	// Pipeline tuning
	SyncWindowHours         int    `envconfig:"SYNC_WINDOW_HOURS" default:"48"`
	SyncCadence             string `envconfig:"SYNC_CADENCE" default:"@every 15m"`
	SchedulerTickSeconds    int    `envconfig:"SCHEDULER_TICK_SECONDS" default:"30"`
	CacheTTLHours           int    `envconfig:"CACHE_TTL_HOURS" default:"24"`
	NotificationLeadMinutes int    `envconfig:"NOTIFICATION_LEAD_MINUTES" default:"15"`
	DefaultTheme            string `envconfig:"DEFAULT_THEME" default:"fantasy"`
	MaxPriorStorylines      int    `envconfig:"MAX_PRIOR_STORYLINES" default:"3"`
	GenerationConcurrency   int    `envconfig:"GENERATION_CONCURRENCY" default:"4"`
	StoryQueueSize          int    `envconfig:"STORY_QUEUE_SIZE" default:"256"`

	// Retry ceilings per operation class
	RetryExternalFetch int `envconfig:"RETRY_EXTERNAL_FETCH" default:"3"`
	RetryAIGeneration  int `envconfig:"RETRY_AI_GENERATION" default:"2"`
	RetryNotification  int `envconfig:"RETRY_NOTIFICATION" default:"3"`

	// Health checking
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"15"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
}

// ResolveDefaults validates enumerated settings and derives anything
// left at "auto" or empty.
func (c *Config) ResolveDefaults() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("DB_DRIVER=postgres requires POSTGRES_DSN")
	}

	if len(c.StoryProviderChain()) == 0 {
		return fmt.Errorf("STORY_PROVIDERS must name at least one provider")
	}
	for _, p := range c.StoryProviderChain() {
		switch p {
		case "gemini", "openai":
		default:
			return fmt.Errorf("unsupported story provider: %s", p)
		}
	}

	switch c.DefaultTheme {
	case "fantasy", "genz", "meme", "professional":
	default:
		return fmt.Errorf("unsupported DEFAULT_THEME: %s", c.DefaultTheme)
	}

	if c.SyncWindowHours <= 0 {
		return fmt.Errorf("SYNC_WINDOW_HOURS must be positive")
	}
	if c.NotificationLeadMinutes < 0 {
		return fmt.Errorf("NOTIFICATION_LEAD_MINUTES must not be negative")
	}
	return nil
}

// New creates a Config by parsing STORYTIME_-prefixed environment variables.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("STORYTIME", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewForTesting creates a config suitable for unit tests.
func NewForTesting() *Config {
	cfg := &Config{
		Environment:               EnvTesting,
		HTTPPort:                  8080,
		DBDriver:                  "sqlite",
		SQLitePath:                ":memory:",
		CalendarProvider:          "google",
		StoryProviders:            "gemini",
		GeminiModel:               "gemini-1.5-flash",
		OpenAIModel:               "gpt-4o-mini",
		SyncWindowHours:           48,
		SyncCadence:               "@every 15m",
		SchedulerTickSeconds:      30,
		CacheTTLHours:             24,
		NotificationLeadMinutes:   15,
		DefaultTheme:              "fantasy",
		MaxPriorStorylines:        3,
		GenerationConcurrency:     4,
		StoryQueueSize:            256,
		RetryExternalFetch:        3,
		RetryAIGeneration:         2,
		RetryNotification:         3,
		HealthIntervalSeconds:     15,
		HealthProbeTimeoutSeconds: 2,
	}
	return cfg
}

// StoryProviderChain returns the configured fallback order.
func (c *Config) StoryProviderChain() []string {
	parts := strings.Split(c.StoryProviders, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsTesting returns true if the environment is set to testing.
func (c *Config) IsTesting() bool { return c.Environment == EnvTesting }

// IsProduction returns true if the environment is set to production.
func (c *Config) IsProduction() bool { return c.Environment == EnvProduction }

// SyncWindow returns the forward-looking fetch window.
func (c *Config) SyncWindow() time.Duration {
	return time.Duration(c.SyncWindowHours) * time.Hour
}

// CacheTTL returns the storyline cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// NotificationLead returns how long before event start a notification fires.
func (c *Config) NotificationLead() time.Duration {
	return time.Duration(c.NotificationLeadMinutes) * time.Minute
}

// TickInterval returns the scheduler tick cadence.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.SchedulerTickSeconds) * time.Second
}

// GetHTTPAddr returns the HTTP server address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
