package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/scancache/scancache/internal/cache"
	"github.com/scancache/scancache/internal/metrics"
	"github.com/scancache/scancache/pkg/api"
	"github.com/scancache/scancache/pkg/errors"
)

// Configuration represents the complete application configuration
type Configuration struct {
	Global  GlobalConfig     `yaml:"global"`
	Cache   cache.Options    `yaml:"cache"`
	Metrics metrics.Config   `yaml:"metrics"`
	Admin   api.ServerConfig `yaml:"admin"`
}

// GlobalConfig represents process-wide settings
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
		Cache:   *cache.DefaultOptions(),
		Metrics: metrics.DefaultConfig(),
		Admin:   api.DefaultServerConfig(),
	}
}

// LoadFromFile loads configuration from a YAML file over the current values
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.NewError(errors.ErrCodeConfigLoad, "failed to read config file").
			WithComponent("config").
			WithDetail("path", filename).
			WithCause(err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.NewError(errors.ErrCodeConfigLoad, "failed to parse config file").
			WithComponent("config").
			WithDetail("path", filename).
			WithCause(err)
	}

	return nil
}

// LoadFromEnv applies SCANCACHE_* environment variable overrides
func (c *Configuration) LoadFromEnv() error {
	// Global settings
	if val := os.Getenv("SCANCACHE_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("SCANCACHE_LOG_FORMAT"); val != "" {
		c.Global.LogFormat = val
	}

	// Cache settings
	if val := os.Getenv("SCANCACHE_TTL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Cache.TTL = duration
		}
	}
	if val := os.Getenv("SCANCACHE_MAX_MEMORY_ENTRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Cache.MaxMemoryEntries = n
		}
	}
	if val := os.Getenv("SCANCACHE_DISK_CACHE"); val != "" {
		c.Cache.EnableDiskCache = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("SCANCACHE_DISK_CACHE_PATH"); val != "" {
		c.Cache.DiskCachePath = val
	}
	if val := os.Getenv("SCANCACHE_FILE_WATCHING"); val != "" {
		c.Cache.EnableFileWatching = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("SCANCACHE_COMPRESSION"); val != "" {
		c.Cache.EnableCompression = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("SCANCACHE_CLEANUP_INTERVAL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Cache.CleanupInterval = duration
		}
	}

	// Metrics settings
	if val := os.Getenv("SCANCACHE_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("SCANCACHE_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Metrics.Port = port
		}
	}

	// Admin settings
	if val := os.Getenv("SCANCACHE_ADMIN_ADDRESS"); val != "" {
		c.Admin.Address = val
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.NewError(errors.ErrCodeConfigSave, "failed to marshal config").
			WithComponent("config").
			WithCause(err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return errors.NewError(errors.ErrCodeConfigSave, "failed to create config directory").
			WithComponent("config").
			WithDetail("path", filename).
			WithCause(err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return errors.NewError(errors.ErrCodeConfigSave, "failed to write config file").
			WithComponent("config").
			WithDetail("path", filename).
			WithCause(err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.EqualFold(c.Global.LogLevel, level) {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return errors.NewError(errors.ErrCodeConfigValidation,
			fmt.Sprintf("invalid log_level: %s (must be one of: %s)",
				c.Global.LogLevel, strings.Join(validLogLevels, ", "))).
			WithComponent("config")
	}

	if c.Global.LogFormat != "json" && c.Global.LogFormat != "console" {
		return errors.NewError(errors.ErrCodeConfigValidation,
			fmt.Sprintf("invalid log_format: %s (must be json or console)", c.Global.LogFormat)).
			WithComponent("config")
	}

	if err := c.Cache.Validate(); err != nil {
		return err
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return errors.NewError(errors.ErrCodeConfigValidation,
			fmt.Sprintf("invalid metrics port: %d", c.Metrics.Port)).
			WithComponent("config")
	}

	return nil
}

// BuildLogger constructs the process logger from the global section. The json
// format maps onto zap's production config, console onto development.
func (c *Configuration) BuildLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(strings.ToLower(c.Global.LogLevel))
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeConfigValidation, "invalid log level").
			WithComponent("config").
			WithDetail("log_level", c.Global.LogLevel).
			WithCause(err)
	}

	var zapCfg zap.Config
	if c.Global.LogFormat == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = level

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeConfigValidation, "failed to build logger").
			WithComponent("config").
			WithCause(err)
	}
	return logger, nil
}
