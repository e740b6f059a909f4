package rejectapplication

import (
	"time"

	"dealer-portal/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

// LoadConfig reads the per-job timeout from the worker's settings.
func LoadConfig(wc config.WorkerConfig) *Config {
	cfg := &Config{Timeout: 30 * time.Second}
	if wc.Timeout > 0 {
		cfg.Timeout = time.Duration(wc.Timeout) * time.Millisecond
	}
	return cfg
}
