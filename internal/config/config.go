// Package config loads and validates scraper configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/moses-scraper/internal/catalog"
)

// EnvPrefix prefixes every environment override, e.g. MOSES_DB_DSN.
const EnvPrefix = "MOSES"

// Storage backends.
const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendLocal    = "local"
	BackendGCS      = "gcs"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Mapping  MappingConfig  `mapstructure:"mapping"`
	DB       DBConfig       `mapstructure:"db"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Server   ServerConfig   `mapstructure:"server"`
	Progress ProgressConfig `mapstructure:"progress"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ScraperConfig governs fetching and the worker pool.
type ScraperConfig struct {
	Workers           int           `mapstructure:"workers"`
	Retries           int           `mapstructure:"retries"`
	BackoffUnit       time.Duration `mapstructure:"backoff_unit"`
	URLTemplate       string        `mapstructure:"url_template"`
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Limit             int           `mapstructure:"limit"`
}

// MappingConfig toggles the classification fallbacks.
type MappingConfig struct {
	LegacyDefaults bool `mapstructure:"legacy_defaults"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
}

// StorageConfig selects where module snapshots and runs are kept.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// ArchiveConfig selects where raw detail pages are copied to.
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// ProgressConfig tunes the event hub.
type ProgressConfig struct {
	BufferSize   int           `mapstructure:"buffer_size"`
	MaxBatchWait time.Duration `mapstructure:"max_batch_wait"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from defaults, an optional file and the environment.
// An empty path searches for moses.yaml in the working directory and
// $HOME/.moses; a missing file there is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("moses")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.moses")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	cfg.Archive.Backend = strings.ToLower(strings.TrimSpace(cfg.Archive.Backend))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scraper.workers", 4)
	v.SetDefault("scraper.retries", 3)
	v.SetDefault("scraper.backoff_unit", time.Second)
	v.SetDefault("scraper.url_template", catalog.DefaultURLTemplate)
	v.SetDefault("scraper.user_agent", "moses-scraper/1.0")
	v.SetDefault("scraper.timeout", 30*time.Second)
	v.SetDefault("scraper.requests_per_second", 0)
	v.SetDefault("scraper.limit", 0)
	v.SetDefault("mapping.legacy_defaults", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("storage.backend", BackendPostgres)
	v.SetDefault("archive.backend", BackendNone)
	v.SetDefault("archive.base_dir", "data/pages")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_wait", 250*time.Millisecond)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Scraper.Workers <= 0 {
		return fmt.Errorf("scraper.workers must be > 0")
	}
	if c.Scraper.Retries < 0 {
		return fmt.Errorf("scraper.retries must be >= 0")
	}
	if c.Scraper.BackoffUnit <= 0 {
		return fmt.Errorf("scraper.backoff_unit must be > 0")
	}
	if c.Scraper.Timeout <= 0 {
		return fmt.Errorf("scraper.timeout must be > 0")
	}
	if c.Scraper.RequestsPerSecond < 0 {
		return fmt.Errorf("scraper.requests_per_second must be >= 0")
	}
	if c.Scraper.Limit < 0 {
		return fmt.Errorf("scraper.limit must be >= 0")
	}
	if _, err := catalog.NewURLTemplate(c.Scraper.URLTemplate); err != nil {
		return fmt.Errorf("scraper.url_template: %w", err)
	}
	switch c.Storage.Backend {
	case BackendNone, BackendMemory:
	case BackendPostgres:
		if c.DB.MaxConns <= 0 {
			return fmt.Errorf("db.max_conns must be > 0")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of none, memory, postgres", c.Storage.Backend)
	}
	switch c.Archive.Backend {
	case BackendNone:
	case BackendLocal:
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir must be set when archive.backend is local")
		}
	case BackendGCS:
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set when archive.backend is gcs")
		}
	default:
		return fmt.Errorf("archive.backend %q is not one of none, local, gcs", c.Archive.Backend)
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Progress.BufferSize < 0 {
		return fmt.Errorf("progress.buffer_size must be >= 0")
	}
	return nil
}

// MaxAttempts converts the retry budget into fetch attempts.
func (c ScraperConfig) MaxAttempts() int {
	return c.Retries + 1
}
