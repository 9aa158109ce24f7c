package predictrisk

import (
	"time"

	"disease-predictor/internal/common/config"
)

type Config struct {
	Timeout       time.Duration
	MaxJobsActive int
	MaxRetries    int
}

// LoadConfig reads the worker section for TaskType, falling back to the shared defaults.
func LoadConfig(cfg *config.Config) *Config {
	wc := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		Timeout:       config.GetDuration(wc.Timeout),
		MaxJobsActive: wc.MaxJobsActive,
		MaxRetries:    wc.MaxRetries,
	}
}
