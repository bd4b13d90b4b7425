package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanwatch/hazard-monitor/internal/credibility"
)

var configKeys = []string{
	"PORT", "DEBUG", "DB_DRIVER", "DATABASE_URL", "JWT_SECRET", "TOKEN_TTL",
	"INGEST_SCHEDULE", "INGEST_ON_START", "DISASTER_THRESHOLD", "ALERT_THRESHOLD",
	"CLASSIFIER_URL", "CLASSIFIER_TIMEOUT",
	"TWITTER_BEARER_TOKEN", "TWITTER_API_URL", "TWITTER_TRENDS_URL", "TWITTER_KEYWORDS",
	"TWITTER_MAX_RESULTS", "TWITTER_RATE_LIMIT", "TWITTER_PAUSE", "TWITTER_SEARCH_WINDOW",
	"INSTAGRAM_ACCESS_TOKEN", "INSTAGRAM_API_URL", "INSTAGRAM_ACCOUNTS", "INSTAGRAM_MEDIA_LIMIT",
	"INSTAGRAM_RATE_LIMIT", "INSTAGRAM_PAUSE",
	"TWITTER_FOLLOWER_TIERS", "TWITTER_ENGAGEMENT_TIERS", "INSTAGRAM_REACH_TIERS", "INSTAGRAM_ENGAGEMENT_TIERS",
	"AZURE_STORAGE_ACCOUNT", "AZURE_STORAGE_CONTAINER", "ARCHIVE_DIR",
	"TEAMS_WEBHOOK_URL", "NOTIFICATION_EMAIL", "SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD",
}

// clearEnv blanks every key Load reads; blank values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "hazard-monitor.db", cfg.DatabaseURL)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "0 0 * * * *", cfg.IngestSchedule)
	assert.Equal(t, 0.3, cfg.DisasterThreshold)
	assert.Equal(t, 0.8, cfg.AlertThreshold)
	assert.Empty(t, cfg.ClassifierURL)

	assert.Equal(t, "https://api.twitter.com/2", cfg.Twitter.BaseURL)
	assert.Equal(t, "https://api.twitter.com/1.1", cfg.Twitter.TrendsURL)
	assert.Equal(t, DefaultTwitterKeywords, cfg.Twitter.Keywords)
	assert.Len(t, cfg.Twitter.Keywords, 10)
	assert.Equal(t, 500, cfg.Twitter.MaxResults)
	assert.Equal(t, 300, cfg.Twitter.RateLimit)
	assert.Equal(t, time.Second, cfg.Twitter.Pause)
	assert.Equal(t, credibility.TwitterTable(), cfg.Twitter.Credibility)

	assert.Equal(t, []string{"me"}, cfg.Instagram.Accounts)
	assert.Equal(t, 50, cfg.Instagram.MediaLimit)
	assert.Equal(t, 200, cfg.Instagram.RateLimit)
	assert.Equal(t, 2*time.Second, cfg.Instagram.Pause)

	assert.Empty(t, cfg.StorageAccount)
	assert.Equal(t, "hazard-ingest", cfg.StorageContainer)
	assert.Empty(t, cfg.ArchiveDir)
	assert.Equal(t, 587, cfg.SMTPPort)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/hazards")
	t.Setenv("DISASTER_THRESHOLD", "0.5")
	t.Setenv("TWITTER_KEYWORDS", `tsunami OR "tidal wave"; "rip current", undertow ;`)
	t.Setenv("INSTAGRAM_ACCOUNTS", "me, 17841400000000000")
	t.Setenv("TWITTER_PAUSE", "250ms")
	t.Setenv("TWITTER_FOLLOWER_TIERS", "500:0.1,5000:0.3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 0.5, cfg.DisasterThreshold)
	assert.Equal(t, []string{`tsunami OR "tidal wave"`, `"rip current", undertow`}, cfg.Twitter.Keywords)
	assert.Equal(t, []string{"me", "17841400000000000"}, cfg.Instagram.Accounts)
	assert.Equal(t, 250*time.Millisecond, cfg.Twitter.Pause)
	assert.Equal(t, []credibility.Tier{{Threshold: 5000, Bonus: 0.3}, {Threshold: 500, Bonus: 0.1}}, cfg.Twitter.Credibility.Reach)
	assert.Equal(t, credibility.TwitterTable().Engagement, cfg.Twitter.Credibility.Engagement)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing jwt secret", map[string]string{"JWT_SECRET": ""}},
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}},
		{"threshold above one", map[string]string{"DISASTER_THRESHOLD": "1.5"}},
		{"negative alert threshold", map[string]string{"ALERT_THRESHOLD": "-0.1"}},
		{"bad schedule", map[string]string{"INGEST_SCHEDULE": "every hour"}},
		{"bad tiers", map[string]string{"INSTAGRAM_REACH_TIERS": "lots"}},
		{"email without smtp", map[string]string{"NOTIFICATION_EMAIL": "ops@example.com"}},
		{"zero media limit", map[string]string{"INSTAGRAM_MEDIA_LIMIT": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
