// Package config provides YAML-based configuration management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig represents the root YAML configuration structure
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Processing ProcessingConfig `yaml:"processing"`
	KPI        KPIConfig        `yaml:"kpi"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `yaml:"port"`
	BindAddress  string `yaml:"bind_address"`
	EnableCORS   bool   `yaml:"enable_cors"`
	AllowOrigins string `yaml:"allow_origins"`
	BodyLimit    string `yaml:"body_limit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory    string `yaml:"data_directory"`
	UploadsDirectory string `yaml:"uploads_directory"`
	AllowedFileTypes string `yaml:"allowed_file_types"`
}

// ProcessingConfig contains parsing and monitoring settings
type ProcessingConfig struct {
	SessionYear            int           `yaml:"session_year"`
	SignalMode             string        `yaml:"signal_mode"`
	MaxMessages            int           `yaml:"max_messages"`
	DiagnosticSampleSize   int           `yaml:"diagnostic_sample_size"`
	ReadConcurrency        int           `yaml:"read_concurrency"`
	SessionTimeoutMinutes  int           `yaml:"session_timeout_minutes"`
	CleanupIntervalMinutes int           `yaml:"cleanup_interval_minutes"`
	LiveInterval           time.Duration `yaml:"live_interval"`
}

// KPIConfig points at an optional suites file layered over the built-in suites
type KPIConfig struct {
	SuitesFile string `yaml:"suites_file"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	Level          string `yaml:"level"`
	JSON           bool   `yaml:"json"`
	RequestLogging bool   `yaml:"request_logging"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			BodyLimit:    "512M",
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			AllowedFileTypes: ".txt,.log,.gz,.json",
		},
		Processing: ProcessingConfig{
			SessionYear:            2025,
			SignalMode:             "per-route",
			MaxMessages:            1000,
			DiagnosticSampleSize:   5,
			ReadConcurrency:        4,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
			LiveInterval:           time.Second,
		},
		Logging: LoggingConfig{
			Level:          "info",
			RequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from a YAML file, writing the defaults there
// first if it does not exist.
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

	config.applyEnvironmentOverrides()
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

	header := []byte("# ECU Analyzer configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "uploads")
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if year := os.Getenv("SESSION_YEAR"); year != "" {
		if y, err := strconv.Atoi(year); err == nil {
			c.Processing.SessionYear = y
		}
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.UploadsDirectory) {
		c.Storage.UploadsDirectory = filepath.Join(configDir, c.Storage.UploadsDirectory)
	}
	if c.KPI.SuitesFile != "" && !filepath.IsAbs(c.KPI.SuitesFile) {
		c.KPI.SuitesFile = filepath.Join(configDir, c.KPI.SuitesFile)
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *AppConfig) Validate() error {
	switch c.Processing.SignalMode {
	case "per-route", "global-binary":
	default:
		return fmt.Errorf("invalid processing.signal_mode %q", c.Processing.SignalMode)
	}
	if c.Processing.SessionYear < 1970 || c.Processing.SessionYear > 9999 {
		return fmt.Errorf("invalid processing.session_year %d", c.Processing.SessionYear)
	}
	if c.Processing.MaxMessages <= 0 {
		return fmt.Errorf("processing.max_messages must be positive, got %d", c.Processing.MaxMessages)
	}
	return nil
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// SessionTimeout is how long finished parse sessions are kept.
func (c *AppConfig) SessionTimeout() time.Duration {
	return time.Duration(c.Processing.SessionTimeoutMinutes) * time.Minute
}

// CleanupInterval is the period of the session cleanup loop.
func (c *AppConfig) CleanupInterval() time.Duration {
	return time.Duration(c.Processing.CleanupIntervalMinutes) * time.Minute
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
