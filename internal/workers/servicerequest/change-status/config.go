// internal/workers/servicerequest/change-status/config.go
package changestatus

import (
	"fmt"
	"time"

	"servicedesk/internal/common/config"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30 * time.Second,
	}
}

// FromAppConfig reads the workers.service-request-change-status section.
func FromAppConfig(cfg *config.Config) *Config {
	wc := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		Enabled:       wc.Enabled,
		MaxJobsActive: wc.MaxJobsActive,
		Timeout:       config.GetDuration(wc.Timeout),
	}
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
