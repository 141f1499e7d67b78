// Package config loads the monitor's runtime configuration: environment
// variables take priority (spec.md §6 "Configuration"), with a YAML file
// and compiled-in defaults beneath them, following the teacher's viper
// setup-defaults/read-file/unmarshal/validate pipeline.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// NIRSMode selects whether the NIRS stream reads a real serial device or
// synthesizes frames for bench testing without hardware attached.
type NIRSMode string

const (
	NIRSModeReal NIRSMode = "real"
	NIRSModeMock NIRSMode = "mock"
)

// Config is the monitor's full runtime configuration.
type Config struct {
	Acquisition AcquisitionConfig `mapstructure:"acquisition"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Web         WebConfig         `mapstructure:"web"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// AcquisitionConfig names the serial links and NIRS operating mode
// (spec.md §6 "Configuration").
type AcquisitionConfig struct {
	EEGPort  string   `mapstructure:"eeg_port"`
	NIRSMode NIRSMode `mapstructure:"nirs_mode"`
	NIRSPort string   `mapstructure:"nirs_port"`
}

// StorageConfig names the database location and the reaper's FIFO budget
// (spec.md §4.6 "Reaper").
type StorageConfig struct {
	Root         string `mapstructure:"storage_root"`
	CapBytes     int64  `mapstructure:"storage_cap_bytes"`
	HighWaterPct int    `mapstructure:"high_water_pct"`
}

// WebConfig holds the dashboard/control HTTP+WebSocket surface (spec.md
// §6 "Collaborator contracts").
type WebConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	AuthRequired bool   `mapstructure:"auth_required"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
}

// LoggingConfig holds structured-logger configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MetricsConfig holds Prometheus exporter configuration.
type MetricsConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig holds the exporter's listen address and scrape path.
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from an optional file, environment variables
// (prefixed NEOMONITOR_, plus the bare spec.md §6 keys bound explicitly
// below so NIRS_MODE works unprefixed as the spec names it), and
// compiled-in defaults, then validates the result.
func Load(configFile string) (*Config, error) {
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("/etc/neomonitor")
	}

	viper.SetEnvPrefix("NEOMONITOR")
	viper.AutomaticEnv()
	bindSpecEnvKeys()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file is fine; env vars and defaults still apply.
		} else if os.IsNotExist(err) {
			// File explicitly named but absent is also fine.
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// bindSpecEnvKeys binds the exact, unprefixed environment variable names
// spec.md §6 names (NIRS_MODE, NIRS_PORT, EEG_PORT, STORAGE_ROOT,
// STORAGE_CAP_BYTES) in addition to the NEOMONITOR_-prefixed automatic
// bindings, so a deployment following the spec's own env contract works
// without an extra prefix.
func bindSpecEnvKeys() {
	viper.BindEnv("acquisition.nirs_mode", "NIRS_MODE")
	viper.BindEnv("acquisition.nirs_port", "NIRS_PORT")
	viper.BindEnv("acquisition.eeg_port", "EEG_PORT")
	viper.BindEnv("storage.storage_root", "STORAGE_ROOT")
	viper.BindEnv("storage.storage_cap_bytes", "STORAGE_CAP_BYTES")
}

func setDefaults() {
	viper.SetDefault("acquisition.eeg_port", "/dev/ttyUSB0")
	viper.SetDefault("acquisition.nirs_mode", string(NIRSModeMock))
	viper.SetDefault("acquisition.nirs_port", "/dev/ttyUSB1")

	viper.SetDefault("storage.storage_root", "./data")
	viper.SetDefault("storage.storage_cap_bytes", 300*1024*1024*1024) // 300 GiB
	viper.SetDefault("storage.high_water_pct", 80)

	viper.SetDefault("web.enabled", true)
	viper.SetDefault("web.host", "0.0.0.0")
	viper.SetDefault("web.port", 8080)
	viper.SetDefault("web.auth_required", false)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.prometheus.enabled", true)
	viper.SetDefault("metrics.prometheus.port", 9090)
	viper.SetDefault("metrics.prometheus.path", "/metrics")
}

// normalizedNIRSMode lower-cases defensively since env values may arrive
// in either case.
func normalizedNIRSMode(m NIRSMode) NIRSMode {
	return NIRSMode(strings.ToLower(string(m)))
}
