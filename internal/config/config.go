package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds process-level configuration loaded from the environment.
// Runtime-mutable behavior (polling interval, filters, per-repo toggles)
// lives in the persisted settings instead, see internal/settings.
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Local store configuration
	DBPath string

	// Platform credentials, supplied by the external configuration
	// surface. Empty token means the platform is not authenticated.
	GitHubToken string
	GitLabToken string

	// Base URL overrides for self-hosted instances and tests.
	GitHubBaseURL string
	GitLabBaseURL string

	// Notification sinks
	WebhookURL        string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		Debug:  getBoolEnv("DEBUG", false),
		DBPath: getEnv("GITPULSE_DB_PATH", ""),

		GitHubToken: getEnv("GITHUB_TOKEN", ""),
		GitLabToken: getEnv("GITLAB_TOKEN", ""),

		GitHubBaseURL: getEnv("GITHUB_API_URL", "https://api.github.com"),
		GitLabBaseURL: getEnv("GITLAB_API_URL", "https://gitlab.com/api/v4"),

		WebhookURL:        getEnv("WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.GitHubToken == "" && c.GitLabToken == "" {
		return fmt.Errorf("at least one platform token must be configured (GITHUB_TOKEN or GITLAB_TOKEN)")
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
