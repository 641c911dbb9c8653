// Package worker provides background job processing for AccessRoute.
package worker

import (
	"time"
)

// Job types carried in the job_type field of worker messages.
const (
	JobTypeFacilityStatus = "facility_status"
	JobTypeHealthCheck    = "health_check"
)

// StatusJobConfig holds tuning for the facility status job.
type StatusJobConfig struct {
	// Concurrency is the number of updates applied in parallel for a batch.
	// Default: 4
	Concurrency int

	// Timeout bounds each repository write.
	// Default: 10 seconds
	Timeout time.Duration
}

// DefaultStatusJobConfig returns the default status job configuration.
func DefaultStatusJobConfig() StatusJobConfig {
	return StatusJobConfig{
		Concurrency: 4,
		Timeout:     10 * time.Second,
	}
}

func (c StatusJobConfig) withDefaults() StatusJobConfig {
	def := DefaultStatusJobConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}
