package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort string

	// Polling
	PollInterval      time.Duration
	PollMaxConcurrent int
	RequestTimeout    time.Duration

	// Rate Limit
	AniListRatePerMin  int
	MangaDexRatePerSec int
	ComickRatePerMin   int
	RSSRatePerMin      int

	// Voice
	HeartbeatInterval time.Duration

	// Delivery
	WebhookURL     string
	WebhookTimeout time.Duration

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.PollInterval = getEnvDuration("POLL_INTERVAL", 5*time.Minute)
	cfg.PollMaxConcurrent = getEnvInt("POLL_MAX_CONCURRENT", 0)
	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", 30*time.Second)
	cfg.AniListRatePerMin = getEnvInt("ANILIST_RATE_PER_MIN", 30)
	cfg.MangaDexRatePerSec = getEnvInt("MANGADEX_RATE_PER_SEC", 5)
	cfg.ComickRatePerMin = getEnvInt("COMICK_RATE_PER_MIN", 200)
	cfg.RSSRatePerMin = getEnvInt("RSS_RATE_PER_MIN", 60)
	cfg.HeartbeatInterval = getEnvDuration("HEARTBEAT_INTERVAL", 10*time.Second)
	cfg.WebhookURL = getEnvString("WEBHOOK_URL", "")
	cfg.WebhookTimeout = getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// 数値のみの場合は秒として解釈する
		if secs, serr := strconv.Atoi(v); serr == nil {
			return time.Duration(secs) * time.Second
		}
		return defaultVal
	}
	return d
}
