package internal

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration, loaded from the environment
// (optionally seeded from a .env file).
type Config struct {
	BotToken          string   `envconfig:"BOT_TOKEN"`
	OwnerID           int64    `envconfig:"OWNER_ID"`
	DownloadDir       string   `envconfig:"DOWNLOAD_DIR" default:"downloads"`
	ResolverEndpoints []string `envconfig:"RESOLVER_ENDPOINTS" default:"https://wdzone-terabox-api.vercel.app/api"`
	ForceSubChannels  []string `envconfig:"FORCE_SUB_CHANNELS"`
	MaxFileSize       int64    `envconfig:"MAX_FILE_SIZE" default:"52428800"`
	RateLimit         string   `envconfig:"RATE_LIMIT"` // e.g. "5M", empty = unlimited
	ProxyURL          string   `envconfig:"PROXY_URL"`
	HealthAddr        string   `envconfig:"HEALTH_ADDR" default:":8080"`
	DefaultTimeout    int      `envconfig:"HTTP_TIMEOUT" default:"30"` // seconds
	MaxRetries        int      `envconfig:"MAX_RETRIES" default:"3"`

	// Logging configuration
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	EnableDebug bool   `envconfig:"DEBUG"`
	QuietMode   bool   `envconfig:"QUIET"`
	LogFile     string `envconfig:"LOG_FILE"`

	UserAgentList []string `ignored:"true"`
}

// LoadConfig reads configuration from the environment. A .env file in
// the working directory is loaded first when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}

	cfg.UserAgentList = defaultUserAgents()

	return &cfg, nil
}

// DefaultConfig returns a configuration with defaults only, ignoring
// the environment. Used by the CLI path and in tests.
func DefaultConfig() *Config {
	return &Config{
		DownloadDir:       "downloads",
		ResolverEndpoints: []string{"https://wdzone-terabox-api.vercel.app/api"},
		MaxFileSize:       DefaultUploadCeiling,
		HealthAddr:        ":8080",
		DefaultTimeout:    30,
		MaxRetries:        3,
		LogLevel:          "info",
		UserAgentList:     defaultUserAgents(),
	}
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// RateLimitBytes parses the human-readable rate limit into bytes per
// second. Returns 0 (unlimited) when unset.
func (c *Config) RateLimitBytes() (int64, error) {
	if c.RateLimit == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.RateLimit)
	if err != nil {
		return 0, NewValidationError("RATE_LIMIT", "unparseable rate limit").
			WithSuggestion(`Use a value like "500K" or "5M"`).
			WithContext("value", c.RateLimit)
	}
	return int64(n), nil
}

// ValidateBot checks the fields the bot cannot run without.
func (c *Config) ValidateBot() error {
	if c.BotToken == "" {
		return NewValidationError("BOT_TOKEN", "bot token is required").
			WithSuggestion("Set BOT_TOKEN in the environment or a .env file")
	}
	return c.Validate()
}

// Validate checks the fields shared by the bot and CLI paths.
func (c *Config) Validate() error {
	if len(c.ResolverEndpoints) == 0 {
		return NewValidationError("RESOLVER_ENDPOINTS", "at least one resolver endpoint is required")
	}

	if c.MaxFileSize < 1 {
		return NewValidationError("MAX_FILE_SIZE", "must be positive").
			WithContext("value", c.MaxFileSize)
	}

	if c.DefaultTimeout < 1 {
		return NewValidationError("HTTP_TIMEOUT", "must be positive").
			WithContext("value", c.DefaultTimeout)
	}

	if c.MaxRetries < 0 {
		return NewValidationError("MAX_RETRIES", "must be >= 0").
			WithContext("value", c.MaxRetries)
	}

	if _, err := c.RateLimitBytes(); err != nil {
		return err
	}

	if len(c.UserAgentList) == 0 {
		return NewValidationError("user_agents", "user agent list cannot be empty")
	}

	return nil
}

// GetEnvWithDefault returns environment variable value or default
func GetEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
