// Package config provides YAML-based configuration with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// AppConfig represents the root configuration structure
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Processing ProcessingConfig `yaml:"processing"`
	Filter     FilterConfig     `yaml:"filter"`
	Cache      CacheConfig      `yaml:"cache"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port                int    `yaml:"port" env:"PORT"`
	BindAddress         string `yaml:"bind_address" env:"BIND_ADDRESS"`
	EnableCORS          bool   `yaml:"enable_cors"`
	AllowOrigins        string `yaml:"allow_origins" env:"ALLOW_ORIGINS"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	IdleTimeoutSeconds  int    `yaml:"idle_timeout_seconds"`
	BodyLimit           string `yaml:"body_limit"`
}

// StorageConfig contains dataset storage settings
type StorageConfig struct {
	// Backend is "duckdb" or "memory".
	Backend          string `yaml:"backend" env:"STORAGE_BACKEND"`
	DataDirectory    string `yaml:"data_directory" env:"DATA_DIR"`
	UploadsDirectory string `yaml:"uploads_directory" env:"UPLOADS_DIR"`
	DatabaseFile     string `yaml:"database_file"`
	KeepUploads      bool   `yaml:"keep_uploads"`
	AllowedFileTypes string `yaml:"allowed_file_types"`
}

// ProcessingConfig contains in-memory dataset settings
type ProcessingConfig struct {
	MaxDatasets            int `yaml:"max_datasets" env:"MAX_DATASETS"`
	IdleTimeoutMinutes     int `yaml:"idle_timeout_minutes"`
	CleanupIntervalMinutes int `yaml:"cleanup_interval_minutes"`
	DefaultListLimit       int `yaml:"default_list_limit"`
}

// FilterConfig contains date filtering settings
type FilterConfig struct {
	// Timezone is an IANA zone name used to cut timestamps into calendar days.
	Timezone string `yaml:"timezone" env:"FILTER_TIMEZONE"`
}

// CacheConfig contains filter result cache settings
type CacheConfig struct {
	// Backend is "memory", "redis" or "none".
	Backend       string `yaml:"backend" env:"CACHE_BACKEND"`
	TTLSeconds    int    `yaml:"ttl_seconds" env:"CACHE_TTL_SECONDS"`
	MaxEntries    int    `yaml:"max_entries"`
	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB"`
	KeyPrefix     string `yaml:"key_prefix"`
}

// UpstreamConfig contains the live-data API settings
type UpstreamConfig struct {
	BaseURL        string `yaml:"base_url" env:"UPSTREAM_URL"`
	Token          string `yaml:"token" env:"UPSTREAM_TOKEN"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Level          string `yaml:"level" env:"LOG_LEVEL"`
	Format         string `yaml:"format" env:"LOG_FORMAT"`
	RequestLogging bool   `yaml:"request_logging"`
}

// MetricsConfig contains Prometheus exporter settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:                8089,
			BindAddress:         "0.0.0.0",
			EnableCORS:          true,
			AllowOrigins:        "*",
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 30,
			IdleTimeoutSeconds:  120,
			BodyLimit:           "256M",
		},
		Storage: StorageConfig{
			Backend:          "duckdb",
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			DatabaseFile:     "datasets.duckdb",
			KeepUploads:      true,
			AllowedFileTypes: ".xlsx,.xlsm,.json",
		},
		Processing: ProcessingConfig{
			MaxDatasets:            20,
			IdleTimeoutMinutes:     30,
			CleanupIntervalMinutes: 5,
			DefaultListLimit:       50,
		},
		Filter: FilterConfig{
			Timezone: "UTC",
		},
		Cache: CacheConfig{
			Backend:    "memory",
			TTLSeconds: 300,
			MaxEntries: 256,
			RedisAddr:  "127.0.0.1:6379",
			KeyPrefix:  "soc:",
		},
		Upstream: UpstreamConfig{
			TimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "json",
			RequestLogging: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// LoadConfig loads configuration from a YAML file. A missing file is
// created with the defaults.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := config.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves the configuration to a YAML file
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	header := []byte("# SOC analytics backend configuration\n# This file is auto-generated on first run\n\n")
	if err := os.WriteFile(configPath, append(header, output...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// applyEnvironmentOverrides lets environment variables override values
// from the file. Only variables that are set take effect.
func (c *AppConfig) applyEnvironmentOverrides() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.UploadsDirectory) {
		c.Storage.UploadsDirectory = filepath.Join(configDir, c.Storage.UploadsDirectory)
	}
}

// Validate checks enumerated settings.
func (c *AppConfig) Validate() error {
	switch c.Storage.Backend {
	case "duckdb", "memory":
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}
	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unknown cache backend: %q", c.Cache.Backend)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location returns the filter time zone.
func (c *AppConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Filter.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid filter timezone %q: %w", name, err)
	}
	return loc, nil
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// DatabasePath returns the absolute DuckDB file path
func (c *AppConfig) DatabasePath() string {
	if filepath.IsAbs(c.Storage.DatabaseFile) {
		return c.Storage.DatabaseFile
	}
	return filepath.Join(c.Storage.DataDirectory, c.Storage.DatabaseFile)
}

// IdleTimeout returns how long an untouched dataset stays in memory.
func (c *AppConfig) IdleTimeout() time.Duration {
	return time.Duration(c.Processing.IdleTimeoutMinutes) * time.Minute
}

// CleanupInterval returns how often idle datasets are evicted.
func (c *AppConfig) CleanupInterval() time.Duration {
	return time.Duration(c.Processing.CleanupIntervalMinutes) * time.Minute
}

// CacheTTL returns the filter result lifetime.
func (c *AppConfig) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// UpstreamTimeout returns the live-data request timeout.
func (c *AppConfig) UpstreamTimeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutSeconds) * time.Second
}

// AllowedExtensions returns the lower-cased upload extensions.
func (c *AppConfig) AllowedExtensions() []string {
	var exts []string
	for _, ext := range strings.Split(c.Storage.AllowedFileTypes, ",") {
		if ext = strings.ToLower(strings.TrimSpace(ext)); ext != "" {
			exts = append(exts, ext)
		}
	}
	return exts
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
