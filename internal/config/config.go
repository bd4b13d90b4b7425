package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/oceanwatch/hazard-monitor/internal/credibility"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Database configuration
	DBDriver    string // "sqlite" or "postgres"
	DatabaseURL string

	// Authentication
	JWTSecret string
	TokenTTL  time.Duration

	// Ingestion schedule
	IngestSchedule string // cron expression with seconds field
	IngestOnStart  bool

	// Disaster gate and alerting
	DisasterThreshold float64
	AlertThreshold    float64

	// Classification pipeline
	ClassifierURL     string
	ClassifierTimeout time.Duration

	Twitter   TwitterConfig
	Instagram InstagramConfig

	// Azure Storage configuration (run archive, optional)
	StorageAccount   string
	StorageContainer string
	ArchiveDir       string // local archive, used when no storage account is set

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// TwitterConfig configures keyword search against the Twitter API v2.
type TwitterConfig struct {
	BearerToken  string
	BaseURL      string
	TrendsURL    string // v1.1 API, trends only
	Keywords     []string
	MaxResults   int
	RateLimit    int
	Pause        time.Duration
	SearchWindow time.Duration
	Credibility  credibility.Table
}

// InstagramConfig configures account-scoped fetches against the Graph API.
type InstagramConfig struct {
	AccessToken string
	BaseURL     string
	Accounts    []string
	MediaLimit  int
	RateLimit   int
	Pause       time.Duration
	Credibility credibility.Table
}

// DefaultTwitterKeywords are the ocean-hazard search queries used when
// TWITTER_KEYWORDS is not set.
var DefaultTwitterKeywords = []string{
	`tsunami OR "tidal wave"`,
	`hurricane OR typhoon OR cyclone`,
	`"storm surge" OR "coastal flooding"`,
	`"ocean disaster" OR "marine emergency"`,
	`"ship disaster" OR "maritime accident"`,
	`"rogue wave" OR "dangerous waves"`,
	`"oil spill" OR "marine pollution"`,
	`"red tide" OR "algae bloom"`,
	`"coastal erosion" OR "beach erosion"`,
	`drowning OR "water rescue"`,
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DatabaseURL: getEnv("DATABASE_URL", "hazard-monitor.db"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		TokenTTL:  getDurationEnv("TOKEN_TTL", 24*time.Hour),

		IngestSchedule: getEnv("INGEST_SCHEDULE", "0 0 * * * *"),
		IngestOnStart:  getBoolEnv("INGEST_ON_START", false),

		DisasterThreshold: getFloatEnv("DISASTER_THRESHOLD", 0.3),
		AlertThreshold:    getFloatEnv("ALERT_THRESHOLD", 0.8),

		ClassifierURL:     getEnv("CLASSIFIER_URL", ""),
		ClassifierTimeout: getDurationEnv("CLASSIFIER_TIMEOUT", 15*time.Second),

		Twitter: TwitterConfig{
			BearerToken:  getEnv("TWITTER_BEARER_TOKEN", ""),
			BaseURL:      getEnv("TWITTER_API_URL", "https://api.twitter.com/2"),
			TrendsURL:    getEnv("TWITTER_TRENDS_URL", "https://api.twitter.com/1.1"),
			Keywords:     getListEnv("TWITTER_KEYWORDS", ";", DefaultTwitterKeywords),
			MaxResults:   getIntEnv("TWITTER_MAX_RESULTS", 500),
			RateLimit:    getIntEnv("TWITTER_RATE_LIMIT", 300),
			Pause:        getDurationEnv("TWITTER_PAUSE", time.Second),
			SearchWindow: getDurationEnv("TWITTER_SEARCH_WINDOW", 24*time.Hour),
			Credibility:  credibility.TwitterTable(),
		},

		Instagram: InstagramConfig{
			AccessToken: getEnv("INSTAGRAM_ACCESS_TOKEN", ""),
			BaseURL:     getEnv("INSTAGRAM_API_URL", "https://graph.instagram.com"),
			Accounts:    getSliceEnv("INSTAGRAM_ACCOUNTS", []string{"me"}),
			MediaLimit:  getIntEnv("INSTAGRAM_MEDIA_LIMIT", 50),
			RateLimit:   getIntEnv("INSTAGRAM_RATE_LIMIT", 200),
			Pause:       getDurationEnv("INSTAGRAM_PAUSE", 2*time.Second),
			Credibility: credibility.InstagramTable(),
		},

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "hazard-ingest"),
		ArchiveDir:       getEnv("ARCHIVE_DIR", ""),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}

	if err := cfg.loadTierOverrides(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadTierOverrides() error {
	overrides := []struct {
		key   string
		tiers *[]credibility.Tier
	}{
		{"TWITTER_FOLLOWER_TIERS", &c.Twitter.Credibility.Reach},
		{"TWITTER_ENGAGEMENT_TIERS", &c.Twitter.Credibility.Engagement},
		{"INSTAGRAM_REACH_TIERS", &c.Instagram.Credibility.Reach},
		{"INSTAGRAM_ENGAGEMENT_TIERS", &c.Instagram.Credibility.Engagement},
	}

	for _, o := range overrides {
		value := os.Getenv(o.key)
		if value == "" {
			continue
		}
		tiers, err := credibility.ParseTiers(value)
		if err != nil {
			return fmt.Errorf("%s: %w", o.key, err)
		}
		*o.tiers = tiers
	}
	return nil
}

func (c *Config) validate() error {
	if c.DBDriver != "sqlite" && c.DBDriver != "postgres" {
		return fmt.Errorf("DB_DRIVER must be 'sqlite' or 'postgres'")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.DisasterThreshold < 0 || c.DisasterThreshold > 1 {
		return fmt.Errorf("DISASTER_THRESHOLD must be within [0,1]")
	}

	if c.AlertThreshold < 0 || c.AlertThreshold > 1 {
		return fmt.Errorf("ALERT_THRESHOLD must be within [0,1]")
	}

	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(c.IngestSchedule); err != nil {
		return fmt.Errorf("INGEST_SCHEDULE is not a valid cron expression: %w", err)
	}

	if c.Twitter.MaxResults <= 0 || c.Instagram.MediaLimit <= 0 {
		return fmt.Errorf("TWITTER_MAX_RESULTS and INSTAGRAM_MEDIA_LIMIT must be positive")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	return getListEnv(key, ",", defaultValue)
}

// getListEnv splits on sep and drops blank entries. Search queries are
// ";"-separated because a query may itself contain commas.
func getListEnv(key, sep string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, sep) {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
