// Package config loads process-level settings from the environment.
// Pipeline wiring lives in the YAML configuration handled by package param.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/ravi-parthasarathy/nymph/pkg/logging"
)

// Prefix is prepended to every environment variable name.
const Prefix = "NYMPH"

// Settings holds process-wide settings.
type Settings struct {
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogDev      bool   `envconfig:"LOG_DEV" default:"false"`
	CycleTimeMS uint   `envconfig:"CYCLE_TIME_MS" default:"500"`
	MetricsFile string `envconfig:"METRICS_FILE"`
}

// Load reads Settings from NYMPH_* environment variables.
func Load() (*Settings, error) {
	var s Settings
	if err := envconfig.Process(Prefix, &s); err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if s.CycleTimeMS == 0 {
		return nil, fmt.Errorf("load settings: %s_CYCLE_TIME_MS must be positive", Prefix)
	}
	return &s, nil
}

// Default returns the settings used when nothing is set in the environment.
func Default() *Settings {
	return &Settings{
		LogLevel:    "info",
		CycleTimeMS: 500,
	}
}

// CycleTime returns the controller poll interval.
func (s *Settings) CycleTime() time.Duration {
	return time.Duration(s.CycleTimeMS) * time.Millisecond
}

// Logging returns the logger configuration for these settings.
func (s *Settings) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = s.LogLevel
	cfg.Development = s.LogDev
	return cfg
}
