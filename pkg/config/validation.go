package config

import "fmt"

// validate checks the unmarshaled configuration, failing fast on an
// unknown NIRS_MODE as spec.md §6 requires ("Unknown values must fail
// fast").
func validate(cfg *Config) error {
	mode := normalizedNIRSMode(cfg.Acquisition.NIRSMode)
	switch mode {
	case NIRSModeReal, NIRSModeMock:
		cfg.Acquisition.NIRSMode = mode
	default:
		return fmt.Errorf("acquisition.nirs_mode: unknown value %q (must be %q or %q)",
			cfg.Acquisition.NIRSMode, NIRSModeReal, NIRSModeMock)
	}

	if mode == NIRSModeReal && cfg.Acquisition.NIRSPort == "" {
		return fmt.Errorf("acquisition.nirs_port is required when nirs_mode is %q", NIRSModeReal)
	}
	if cfg.Acquisition.EEGPort == "" {
		return fmt.Errorf("acquisition.eeg_port is required")
	}

	if cfg.Storage.Root == "" {
		return fmt.Errorf("storage.storage_root is required")
	}
	if cfg.Storage.CapBytes <= 0 {
		return fmt.Errorf("storage.storage_cap_bytes must be positive")
	}
	if cfg.Storage.HighWaterPct <= 0 || cfg.Storage.HighWaterPct > 100 {
		return fmt.Errorf("storage.high_water_pct must be between 1 and 100")
	}

	if cfg.Web.Enabled {
		if cfg.Web.Port <= 0 || cfg.Web.Port > 65535 {
			return fmt.Errorf("web.port must be between 1 and 65535")
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		if cfg.Metrics.Prometheus.Port <= 0 || cfg.Metrics.Prometheus.Port > 65535 {
			return fmt.Errorf("metrics.prometheus.port must be between 1 and 65535")
		}
	}

	return nil
}
