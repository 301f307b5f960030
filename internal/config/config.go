// Package config manages application configuration from environment variables,
// config files, and default values.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrConfiguration wraps all load and validation failures.
var ErrConfiguration = errors.New("configuration error")

// Config defines the application configuration. Values can be set via
// environment variables prefixed with DUET_ (e.g. DUET_ANALYSIS_API_KEY) or
// through config.yaml.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Session  SessionConfig  `mapstructure:"session"`
	Lexicon  LexiconConfig  `mapstructure:"lexicon"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"              validate:"required"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"  validate:"required,gt=0"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"      validate:"required,min=1s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"     validate:"required,min=1s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"  validate:"required,min=1s"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	DefaultTimezone string        `mapstructure:"default_timezone"`
}

// DatabaseConfig controls the SQLite store.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// AnalysisConfig controls the LLM analysis backend.
type AnalysisConfig struct {
	Backend           string        `mapstructure:"backend"             validate:"required,oneof=gemini openai"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"               validate:"required"`
	Timeout           time.Duration `mapstructure:"timeout"             validate:"required,min=1s,max=30m"`
	MaxConcurrency    int           `mapstructure:"max_concurrency"     validate:"min=0,max=64"`
	MaxRetries        int           `mapstructure:"max_retries"         validate:"min=0,max=10"`
	RetryDelaySeconds int           `mapstructure:"retry_delay_seconds" validate:"min=0,max=300"`
	WindowDays        int           `mapstructure:"window_days"         validate:"min=1,max=90"`
}

// SessionConfig controls session lifecycle and janitor cadence.
type SessionConfig struct {
	MaxAge        time.Duration `mapstructure:"max_age"        validate:"required,min=1m"`
	CacheMaxAge   time.Duration `mapstructure:"cache_max_age"  validate:"required,min=1m"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"required,min=1m"`
}

// LexiconConfig overrides the built-in KPI word lists. Empty lists keep the
// defaults; extra stopwords always extend rather than replace.
type LexiconConfig struct {
	Affection      []string `mapstructure:"affection"`
	Profanity      []string `mapstructure:"profanity"`
	Sexual         []string `mapstructure:"sexual"`
	Thematic       []string `mapstructure:"thematic"`
	ThematicTag    string   `mapstructure:"thematic_tag"`
	ExtraStopwords []string `mapstructure:"extra_stopwords"`
	TopN           int      `mapstructure:"top_n" validate:"min=0,max=500"`
}

// TelegramConfig controls the optional Telegram frontend. The bot starts only
// when a token is present.
type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

// TelegramEnabled reports whether the optional bot frontend should start.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.Token != ""
}

// Load loads and validates configuration from:
// 1. Default values
// 2. config.yaml file
// 3. DUET_* environment variables
func Load() (*Config, error) {
	setDefaults()

	if err := loadConfig(); err != nil {
		return nil, fmt.Errorf("%w: failed to load config file: %v", ErrConfiguration, err)
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return cfg, nil
}

// loadConfig initializes and loads the configuration using viper
func loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("DUET")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Allow missing config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %v", err)
		}
	}

	return nil
}

// Validate checks the loaded configuration beyond struct tags: the analysis
// backend always needs an API key, and the default timezone must resolve.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Analysis.APIKey == "" {
		return errors.New("analysis.api_key is required")
	}
	if c.Server.DefaultTimezone != "" {
		if _, err := time.LoadLocation(c.Server.DefaultTimezone); err != nil {
			return fmt.Errorf("server.default_timezone is not a valid IANA timezone: %v", err)
		}
	}
	return nil
}

// setDefaults sets default values for optional configuration parameters
func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.max_upload_bytes", int64(32<<20))
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 5*time.Minute)
	viper.SetDefault("server.shutdown_timeout", 15*time.Second)
	viper.SetDefault("server.allowed_origins", []string{"*"})
	viper.SetDefault("server.default_timezone", "")

	viper.SetDefault("database.path", "duet.db")

	viper.SetDefault("analysis.backend", "gemini")
	viper.SetDefault("analysis.model", "gemini-2.0-flash")
	viper.SetDefault("analysis.timeout", 10*time.Minute)
	viper.SetDefault("analysis.max_concurrency", 0)
	viper.SetDefault("analysis.max_retries", 3)
	viper.SetDefault("analysis.retry_delay_seconds", 5)
	viper.SetDefault("analysis.window_days", 14)

	viper.SetDefault("session.max_age", 24*time.Hour)
	viper.SetDefault("session.cache_max_age", 30*24*time.Hour)
	viper.SetDefault("session.sweep_interval", time.Hour)

	viper.SetDefault("lexicon.thematic_tag", "")
	viper.SetDefault("lexicon.top_n", 0)
}
