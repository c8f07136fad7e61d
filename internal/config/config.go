package config

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cast"
)

type Config struct {
	Database DatabaseConfig

	Port    int
	DataDir string

	// Worker pool size for the job queue.
	WorkerCount int

	// Fraction of each provider's rate budget reserved for webhook and
	// user-triggered work.
	WebhookReservedTokens int

	// Recycle window: soft-deleted movies are purged after this many days.
	DeletedRetentionDays int

	FFprobePath string
	// TrailerAnalysis gates the ffprobe-based trailer phase.
	TrailerAnalysis bool

	// PlayerWebhookURL, when set, receives publish notifications.
	PlayerWebhookURL string
	PlayerWebhookKey string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     env("DB_HOST", "localhost"),
			Port:     envInt("DB_PORT", 5432),
			User:     env("DB_USER", "mediaforge"),
			Password: env("DB_PASSWORD", "mediaforge"),
			Name:     env("DB_NAME", "mediaforge"),
			SSLMode:  env("DB_SSLMODE", "disable"),
		},
		Port:                  envInt("PORT", 8585),
		DataDir:               env("DATA_DIR", "/data"),
		WorkerCount:           envInt("WORKER_COUNT", 4),
		WebhookReservedTokens: envInt("WEBHOOK_RESERVED_TOKENS", 2),
		DeletedRetentionDays:  envInt("DELETED_RETENTION_DAYS", 30),
		FFprobePath:           env("FFPROBE_PATH", "ffprobe"),
		TrailerAnalysis:       envBool("TRAILER_ANALYSIS", false),
		PlayerWebhookURL:      env("PLAYER_WEBHOOK_URL", ""),
		PlayerWebhookKey:      env("PLAYER_WEBHOOK_API_KEY", ""),
	}
}

// MergeFromDB overlays operator settings stored in the settings table.
// Missing table or rows leave the env-derived values in place.
func (c *Config) MergeFromDB(db *sql.DB) {
	rows, err := db.Query("SELECT key, value FROM settings")
	if err != nil {
		log.Printf("config: skipping DB merge: %v", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			continue
		}
		switch key {
		case "worker_count":
			if v := cast.ToInt(value); v > 0 {
				c.WorkerCount = v
			}
		case "deleted_retention_days":
			if v := cast.ToInt(value); v > 0 {
				c.DeletedRetentionDays = v
			}
		case "trailer_analysis":
			c.TrailerAnalysis = cast.ToBool(value)
		case "player_webhook_url":
			c.PlayerWebhookURL = value
		case "player_webhook_api_key":
			c.PlayerWebhookKey = value
		}
	}
}

func (c *Config) PlayerWebhookEnabled() bool {
	return c.PlayerWebhookURL != ""
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i := cast.ToInt(v); i != 0 {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return cast.ToBool(v)
	}
	return fallback
}
