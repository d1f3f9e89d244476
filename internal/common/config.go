package common

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration. Every key is read from the
// environment with the TAXPORTAL_ prefix.
type Config struct {
	APIURL      string        `mapstructure:"TAXPORTAL_API_URL"`
	Token       string        `mapstructure:"TAXPORTAL_TOKEN"`
	UserType    string        `mapstructure:"TAXPORTAL_USER_TYPE"`
	HTTPTimeout time.Duration `mapstructure:"TAXPORTAL_HTTP_TIMEOUT"`

	MaxUploadBytes         int64         `mapstructure:"TAXPORTAL_MAX_UPLOAD_BYTES"`
	ExtractionPollInterval time.Duration `mapstructure:"TAXPORTAL_EXTRACTION_POLL_INTERVAL"`
	ExtractionPollAttempts int           `mapstructure:"TAXPORTAL_EXTRACTION_POLL_ATTEMPTS"`

	NoticeTTL      time.Duration `mapstructure:"TAXPORTAL_NOTICE_TTL"`
	RetryAttempts  int           `mapstructure:"TAXPORTAL_RETRY_ATTEMPTS"`
	RetryBaseDelay time.Duration `mapstructure:"TAXPORTAL_RETRY_BASE_DELAY"`
	TokenizerURL   string        `mapstructure:"TAXPORTAL_TOKENIZER_URL"`
	PublishableKey string        `mapstructure:"TAXPORTAL_PUBLISHABLE_KEY"`

	LogLevel  string `mapstructure:"TAXPORTAL_LOG_LEVEL"`
	LogFormat string `mapstructure:"TAXPORTAL_LOG_FORMAT"`

	WatchDir      string        `mapstructure:"TAXPORTAL_WATCH_DIR"`
	WatchDebounce time.Duration `mapstructure:"TAXPORTAL_WATCH_DEBOUNCE"`
	WatchWorkers  int           `mapstructure:"TAXPORTAL_WATCH_WORKERS"`

	DevServerAddr        string `mapstructure:"TAXPORTAL_DEVSERVER_ADDR"`
	DevServerDSN         string `mapstructure:"TAXPORTAL_DEVSERVER_DSN"`
	JWTSecret            string `mapstructure:"TAXPORTAL_JWT_SECRET"`
	ExtractionDelayPolls int    `mapstructure:"TAXPORTAL_EXTRACTION_DELAY_POLLS"`
	UploadDir            string `mapstructure:"TAXPORTAL_DEVSERVER_UPLOAD_DIR"`
}

var defaults = map[string]any{
	"TAXPORTAL_API_URL":                  "http://localhost:5000",
	"TAXPORTAL_USER_TYPE":                "",
	"TAXPORTAL_HTTP_TIMEOUT":             30 * time.Second,
	"TAXPORTAL_MAX_UPLOAD_BYTES":         int64(10 << 20),
	"TAXPORTAL_EXTRACTION_POLL_INTERVAL": 2 * time.Second,
	"TAXPORTAL_EXTRACTION_POLL_ATTEMPTS": 10,
	"TAXPORTAL_NOTICE_TTL":               5 * time.Second,
	"TAXPORTAL_RETRY_ATTEMPTS":           3,
	"TAXPORTAL_RETRY_BASE_DELAY":         500 * time.Millisecond,
	"TAXPORTAL_TOKENIZER_URL":            "",
	"TAXPORTAL_PUBLISHABLE_KEY":          "",
	"TAXPORTAL_LOG_LEVEL":                "info",
	"TAXPORTAL_LOG_FORMAT":               "text",
	"TAXPORTAL_WATCH_DIR":                "",
	"TAXPORTAL_WATCH_DEBOUNCE":           500 * time.Millisecond,
	"TAXPORTAL_WATCH_WORKERS":            1,
	"TAXPORTAL_DEVSERVER_ADDR":           ":5000",
	"TAXPORTAL_DEVSERVER_DSN":            "file:taxportal.db",
	"TAXPORTAL_JWT_SECRET":               "",
	"TAXPORTAL_EXTRACTION_DELAY_POLLS":   0,
	"TAXPORTAL_DEVSERVER_UPLOAD_DIR":     "uploads",
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
	viper.AutomaticEnv()

	// Bind explicitly so unset keys still appear in Unmarshal.
	_ = viper.BindEnv("TAXPORTAL_TOKEN")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, NewAppError("CONFIG_ERROR", "failed to decode configuration", err)
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &cfg, nil
}

// Validate checks the client-side settings.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return NewAppError("CONFIG_ERROR", "TAXPORTAL_API_URL is required", ErrInvalidInput)
	}
	if c.HTTPTimeout <= 0 {
		return NewAppError("CONFIG_ERROR", "TAXPORTAL_HTTP_TIMEOUT must be positive", ErrInvalidInput)
	}
	if c.MaxUploadBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "TAXPORTAL_MAX_UPLOAD_BYTES must be positive", ErrInvalidInput)
	}
	if c.NoticeTTL <= 0 {
		return NewAppError("CONFIG_ERROR", "TAXPORTAL_NOTICE_TTL must be positive", ErrInvalidInput)
	}
	if c.RetryAttempts < 1 {
		return NewAppError("CONFIG_ERROR", "TAXPORTAL_RETRY_ATTEMPTS must be at least 1", ErrInvalidInput)
	}
	return nil
}

// ValidateServer checks the settings the development backend needs.
func (c *Config) ValidateServer() error {
	if c.DevServerAddr == "" {
		return NewAppError("CONFIG_ERROR", "TAXPORTAL_DEVSERVER_ADDR is required", ErrInvalidInput)
	}
	if c.DevServerDSN == "" {
		return NewAppError("CONFIG_ERROR", "TAXPORTAL_DEVSERVER_DSN is required", ErrInvalidInput)
	}
	if c.ExtractionDelayPolls < 0 {
		return NewAppError("CONFIG_ERROR", "TAXPORTAL_EXTRACTION_DELAY_POLLS must not be negative", ErrInvalidInput)
	}
	if len(c.JWTSecret) < 16 {
		return NewAppError("CONFIG_ERROR", "TAXPORTAL_JWT_SECRET must be at least 16 characters", ErrInvalidInput)
	}
	return nil
}
