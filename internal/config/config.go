package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr             string
	TokenSecret      string
	TokenTTL         time.Duration
	ResetCodeTTL     time.Duration
	SnapshotDir      string
	SnapshotInterval time.Duration
	MeiliURL         string
	MeiliMasterKey   string
	// SMTP Configuration
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	// Redis Configuration
	RedisURL string
}

func Load() Config {
	return Config{
		Addr:             getenv("HUDDLE_ADDR", ":8585"),
		TokenSecret:      getenv("HUDDLE_TOKEN_SECRET", "huddle-dev-secret"),
		TokenTTL:         time.Duration(getenvInt("HUDDLE_TOKEN_TTL_SECONDS", 86400)) * time.Second,
		ResetCodeTTL:     time.Duration(getenvInt("HUDDLE_RESET_CODE_TTL_SECONDS", 3600)) * time.Second,
		SnapshotDir:      getenv("HUDDLE_SNAPSHOT_DIR", "./data/snapshots"),
		SnapshotInterval: time.Duration(getenvInt("HUDDLE_SNAPSHOT_INTERVAL_SECONDS", 60)) * time.Second,
		MeiliURL:         getenv("MEILI_URL", ""),
		MeiliMasterKey:   getenv("MEILI_MASTER_KEY", ""),
		// SMTP - empty by default, email disabled if not configured
		SMTPHost:     getenv("SMTP_HOST", ""),
		SMTPPort:     getenv("SMTP_PORT", "587"),
		SMTPUsername: getenv("SMTP_USERNAME", ""),
		SMTPPassword: getenv("SMTP_PASSWORD", ""),
		SMTPFrom:     getenv("SMTP_FROM", ""),
		SMTPFromName: getenv("SMTP_FROM_NAME", "Huddle"),
		// Redis - blacklist and reset codes fall back to memory if unset
		RedisURL: getenv("REDIS_URL", ""),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
