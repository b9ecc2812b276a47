package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string
	RedisURL    string

	SubmissionQuota     int
	LeaderboardSize     int
	QuotaReservePending bool
	SessionTTL          time.Duration
	SecureCookies       bool
	ScorerAPIKey        string
	AdminAPIKey         string
	// SeedTestSets holds "id|name|source|target" catalog entries loaded at boot.
	SeedTestSets []string

	EnableOutboxRelay   bool
	EnableScoreConsumer bool
	WorkerPollInterval  time.Duration

	// Event streams live in the Redis instance at REDIS_URL.
	EventConsumerName string
	EventStreamMaxLen int64
	EventRetryDelay   time.Duration
}

// Load reads process environment, falling back to an optional .env file in
// the working directory and then to defaults.
func Load() (Config, error) {
	return load(viper.New(), ".env")
}

func load(v *viper.Viper, envFile string) (Config, error) {
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("SERVICE_NAME", "ocelot")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("SUBMISSION_QUOTA", 7)
	v.SetDefault("LEADERBOARD_SIZE", 10)
	v.SetDefault("QUOTA_RESERVE_PENDING", true)
	v.SetDefault("SESSION_TTL", "336h")
	v.SetDefault("SECURE_COOKIES", false)
	v.SetDefault("ENABLE_OUTBOX_RELAY", true)
	v.SetDefault("ENABLE_SCORE_CONSUMER", true)
	v.SetDefault("WORKER_POLL_INTERVAL", "2s")
	v.SetDefault("EVENT_STREAM_MAXLEN", 100000)
	v.SetDefault("EVENT_RETRY_DELAY", "30s")

	// A missing .env file is fine; environment and defaults still apply.
	_ = v.ReadInConfig()

	cfg := Config{
		ServiceName: strings.TrimSpace(v.GetString("SERVICE_NAME")),
		HTTPPort:    strings.TrimSpace(v.GetString("HTTP_PORT")),
		PostgresDSN: strings.TrimSpace(v.GetString("POSTGRES_DSN")),
		RedisURL:    strings.TrimSpace(v.GetString("REDIS_URL")),

		SubmissionQuota:     v.GetInt("SUBMISSION_QUOTA"),
		LeaderboardSize:     v.GetInt("LEADERBOARD_SIZE"),
		QuotaReservePending: v.GetBool("QUOTA_RESERVE_PENDING"),
		SessionTTL:          v.GetDuration("SESSION_TTL"),
		SecureCookies:       v.GetBool("SECURE_COOKIES"),
		ScorerAPIKey:        strings.TrimSpace(v.GetString("SCORER_API_KEY")),
		AdminAPIKey:         strings.TrimSpace(v.GetString("ADMIN_API_KEY")),
		SeedTestSets:        splitList(v.GetString("SEED_TEST_SETS"), ";"),

		EnableOutboxRelay:   v.GetBool("ENABLE_OUTBOX_RELAY"),
		EnableScoreConsumer: v.GetBool("ENABLE_SCORE_CONSUMER"),
		WorkerPollInterval:  v.GetDuration("WORKER_POLL_INTERVAL"),
		EventConsumerName:   strings.TrimSpace(v.GetString("EVENT_CONSUMER_NAME")),
		EventStreamMaxLen:   v.GetInt64("EVENT_STREAM_MAXLEN"),
		EventRetryDelay:     v.GetDuration("EVENT_RETRY_DELAY"),
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "ocelot"
	}
	if cfg.HTTPPort == "" {
		cfg.HTTPPort = "8080"
	}

	if cfg.SubmissionQuota <= 0 {
		return Config{}, fmt.Errorf("SUBMISSION_QUOTA must be positive, got %d", cfg.SubmissionQuota)
	}
	if cfg.LeaderboardSize <= 0 {
		return Config{}, fmt.Errorf("LEADERBOARD_SIZE must be positive, got %d", cfg.LeaderboardSize)
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}
	if cfg.WorkerPollInterval <= 0 {
		return Config{}, fmt.Errorf("WORKER_POLL_INTERVAL must be positive, got %s", cfg.WorkerPollInterval)
	}
	if cfg.EventRetryDelay <= 0 {
		return Config{}, fmt.Errorf("EVENT_RETRY_DELAY must be positive, got %s", cfg.EventRetryDelay)
	}
	return cfg, nil
}

func splitList(raw string, separator string) []string {
	var items []string
	for _, value := range strings.Split(raw, separator) {
		value = strings.TrimSpace(value)
		if value != "" {
			items = append(items, value)
		}
	}
	return items
}
