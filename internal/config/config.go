// Package config loads and validates the application's configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application's configuration values. It is constructed once
// at startup and passed explicitly to every component; nothing reads ambient
// global state.
type Config struct {
	ServerPort string
	LogLevel   string
	LogFormat  string

	GitHubAppID          int64
	GitHubWebhookSecret  string
	GitHubPrivateKeyPath string

	// BotLogin is the login under which the app's comments appear; the scope
	// resolver matches it when searching for the last review watermark.
	BotLogin string

	MistralAPIKey  string
	MistralBaseURL string

	ReviewModel       string
	ReviewMaxTokens   int
	ReviewTemperature float64
	ReviewTimeout     time.Duration

	// MaxWorkers is the size of the webhook job worker pool.
	MaxWorkers int
	// ReviewConcurrency bounds the per-delivery fan-out over files. The
	// reference behavior is strictly sequential (1).
	ReviewConcurrency int
}

// LoadConfig reads configuration from environment variables and a .env file,
// sets sensible defaults, and validates required fields. It uses the Viper
// library to handle configuration loading and precedence.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("GITHUB_PRIVATE_KEY_PATH", "keys/diffscope-app.private-key.pem")
	v.SetDefault("BOT_LOGIN", "diffscope[bot]")
	v.SetDefault("MISTRAL_BASE_URL", "https://api.mistral.ai/v1")
	v.SetDefault("REVIEW_MODEL", "mistral-large-latest")
	v.SetDefault("REVIEW_MAX_TOKENS", 1000)
	v.SetDefault("REVIEW_TEMPERATURE", 0.7)
	v.SetDefault("REVIEW_TIMEOUT", "90s")
	v.SetDefault("MAX_WORKERS", 5)
	v.SetDefault("REVIEW_CONCURRENCY", 1)

	if err := v.ReadInConfig(); err != nil {
		// A missing .env is fine; a broken one is not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read .env file: %w", err)
		}
	}

	cfg := &Config{
		ServerPort:           v.GetString("SERVER_PORT"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		LogFormat:            v.GetString("LOG_FORMAT"),
		GitHubAppID:          v.GetInt64("GITHUB_APP_ID"),
		GitHubWebhookSecret:  v.GetString("GITHUB_WEBHOOK_SECRET"),
		GitHubPrivateKeyPath: v.GetString("GITHUB_PRIVATE_KEY_PATH"),
		BotLogin:             v.GetString("BOT_LOGIN"),
		MistralAPIKey:        v.GetString("MISTRAL_API_KEY"),
		MistralBaseURL:       v.GetString("MISTRAL_BASE_URL"),
		ReviewModel:          v.GetString("REVIEW_MODEL"),
		ReviewMaxTokens:      v.GetInt("REVIEW_MAX_TOKENS"),
		ReviewTemperature:    v.GetFloat64("REVIEW_TEMPERATURE"),
		ReviewTimeout:        v.GetDuration("REVIEW_TIMEOUT"),
		MaxWorkers:           v.GetInt("MAX_WORKERS"),
		ReviewConcurrency:    v.GetInt("REVIEW_CONCURRENCY"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every credential required for normal operation is
// present. Missing credentials are fatal at startup rather than at the point
// of use.
func (c *Config) Validate() error {
	if c.GitHubAppID == 0 {
		return fmt.Errorf("GITHUB_APP_ID must be set")
	}
	if c.GitHubWebhookSecret == "" {
		return fmt.Errorf("GITHUB_WEBHOOK_SECRET must be set")
	}
	if c.MistralAPIKey == "" {
		return fmt.Errorf("MISTRAL_API_KEY must be set")
	}
	if c.ReviewTimeout <= 0 {
		return fmt.Errorf("REVIEW_TIMEOUT must be positive, got %s", c.ReviewTimeout)
	}
	if c.ReviewConcurrency <= 0 {
		c.ReviewConcurrency = 1
	}
	return nil
}
