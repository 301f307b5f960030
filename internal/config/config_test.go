package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Server: ServerConfig{
			Addr:            ":8080",
			MaxUploadBytes:  1 << 20,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{Path: "duet.db"},
		Analysis: AnalysisConfig{
			Backend: "gemini",
			APIKey:  "key",
			Model:   "gemini-2.0-flash",
			Timeout: time.Minute,
		},
		Session: SessionConfig{
			MaxAge:        24 * time.Hour,
			CacheMaxAge:   30 * 24 * time.Hour,
			SweepInterval: time.Hour,
		},
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad backend", func(c *Config) { c.Analysis.Backend = "llama" }},
		{"missing api key", func(c *Config) { c.Analysis.APIKey = "" }},
		{"bad timezone", func(c *Config) { c.Server.DefaultTimezone = "Mars/Olympus" }},
		{"missing db path", func(c *Config) { c.Database.Path = "" }},
		{"zero sweep interval", func(c *Config) { c.Session.SweepInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}
}

func TestTelegramEnabled(t *testing.T) {
	cfg := validConfig()
	if cfg.TelegramEnabled() {
		t.Error("TelegramEnabled() = true without a token")
	}
	cfg.Telegram.Token = "123:abc"
	if !cfg.TelegramEnabled() {
		t.Error("TelegramEnabled() = false with a token")
	}
}
