package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables.
type Config struct {
	UserAgent    string `envconfig:"USER_AGENT"`
	BufferSize   int    `envconfig:"BUFFER_SIZE" default:"4096"`
	InitRetries  uint   `envconfig:"INIT_RETRIES" default:"3"`
	QueueSize    int    `envconfig:"QUEUE_SIZE" default:"16"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"INFO"`
	JournalPath  string `envconfig:"JOURNAL_PATH"`
	DBPath       string `envconfig:"DB_PATH" default:"fetchkit.db"`
	HistoryLimit int    `envconfig:"HISTORY_LIMIT" default:"100"`

	Web struct {
		BindAddress     string        `split_words:"true" default:"0.0.0.0:8580"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	return &cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
