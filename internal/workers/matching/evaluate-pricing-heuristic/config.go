// internal/workers/matching/evaluate-pricing-heuristic/config.go
package evaluatepricingheuristic

import (
	"fmt"
	"time"

	"mandate-matching/internal/common/config"
	"mandate-matching/pkg/registry"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
	InputSchema   map[string]interface{}
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 10,
		Timeout:       5 * time.Second,
		InputSchema:   registry.Default().InputSchema(TaskType),
	}
}

// LoadConfig overlays the worker section and the registry schema on the
// defaults.
func LoadConfig(wc config.WorkerConfig, reg *registry.ActivityRegistry) *Config {
	cfg := DefaultConfig()
	cfg.Enabled = wc.Enabled
	if wc.MaxJobsActive > 0 {
		cfg.MaxJobsActive = wc.MaxJobsActive
	}
	if wc.Timeout > 0 {
		cfg.Timeout = config.GetDuration(wc.Timeout)
	}
	if schema := reg.InputSchema(TaskType); schema != nil {
		cfg.InputSchema = schema
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	return nil
}
