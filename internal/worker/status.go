package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/accessroute/accessroute/internal/facility"
)

// ErrMalformedUpdate indicates a status update that can never be applied.
var ErrMalformedUpdate = errors.New("malformed facility status update")

// StatusStore persists facility status.
type StatusStore interface {
	UpdateStatus(ctx context.Context, id string, status facility.Status, updatedAt time.Time) error
	Ping(ctx context.Context) error
}

// CacheInvalidator drops cached facility lookups.
type CacheInvalidator interface {
	InvalidateCache()
}

// StatusUpdate is one facility status change.
type StatusUpdate struct {
	FacilityID string          `json:"facility_id"`
	Status     facility.Status `json:"status"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Validate checks the update fields.
func (u StatusUpdate) Validate() error {
	switch {
	case u.FacilityID == "":
		return fmt.Errorf("%w: missing facility_id", ErrMalformedUpdate)
	case !u.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", ErrMalformedUpdate, u.Status)
	case u.UpdatedAt.IsZero():
		return fmt.Errorf("%w: missing updated_at", ErrMalformedUpdate)
	}
	return nil
}

// StatusJobMetrics tracks status job statistics.
type StatusJobMetrics struct {
	mu sync.RWMutex

	Applied  int64
	Skipped  int64
	Failed   int64
	LastRun  time.Time
	Duration time.Duration
}

// StatusJob applies facility status updates to the repository and
// invalidates the facility cache after any change.
type StatusJob struct {
	store   StatusStore
	cache   CacheInvalidator
	config  StatusJobConfig
	logger  zerolog.Logger
	metrics *StatusJobMetrics
}

// StatusJobDeps holds dependencies for creating a StatusJob.
type StatusJobDeps struct {
	Store  StatusStore
	Cache  CacheInvalidator // optional
	Config StatusJobConfig
	Logger zerolog.Logger
}

// NewStatusJob creates a new status update job.
func NewStatusJob(deps StatusJobDeps) *StatusJob {
	return &StatusJob{
		store:   deps.Store,
		cache:   deps.Cache,
		config:  deps.Config.withDefaults(),
		logger:  deps.Logger,
		metrics: &StatusJobMetrics{},
	}
}

// ApplyResult summarizes a batch of status updates.
type ApplyResult struct {
	Total    int
	Applied  int
	Skipped  int
	Failed   int
	Errors   []ApplyError
	Duration time.Duration
}

// ApplyError records an update that failed with a retryable error.
type ApplyError struct {
	FacilityID string
	Error      string
}

// outcome classifies one update.
type outcome int

const (
	outcomeApplied outcome = iota
	outcomeSkipped
	outcomeFailed
)

// Apply applies a single update. Unknown facilities and out-of-order
// updates are skipped without error; they would never succeed on retry.
func (j *StatusJob) Apply(ctx context.Context, u StatusUpdate) error {
	o, err := j.apply(ctx, u)
	j.record(o)
	if o == outcomeApplied {
		j.invalidate()
	}
	return err
}

func (j *StatusJob) apply(ctx context.Context, u StatusUpdate) (outcome, error) {
	if err := u.Validate(); err != nil {
		return outcomeFailed, err
	}

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	err := j.store.UpdateStatus(ctx, u.FacilityID, u.Status, u.UpdatedAt)
	switch {
	case err == nil:
		j.logger.Debug().
			Str("facility_id", u.FacilityID).
			Str("status", string(u.Status)).
			Msg("facility status updated")
		return outcomeApplied, nil
	case errors.Is(err, facility.ErrFacilityNotFound), errors.Is(err, facility.ErrStaleUpdate):
		j.logger.Warn().Err(err).
			Str("facility_id", u.FacilityID).
			Msg("skipping facility status update")
		return outcomeSkipped, nil
	case errors.Is(err, facility.ErrInvalidStatus):
		return outcomeFailed, fmt.Errorf("%w: %w", ErrMalformedUpdate, err)
	default:
		return outcomeFailed, fmt.Errorf("updating facility %s: %w", u.FacilityID, err)
	}
}

// ApplyAll applies updates with bounded concurrency. The cache is
// invalidated once if anything changed.
func (j *StatusJob) ApplyAll(ctx context.Context, updates []StatusUpdate) *ApplyResult {
	start := time.Now()
	result := &ApplyResult{Total: len(updates)}

	j.logger.Info().
		Int("updates", len(updates)).
		Int("concurrency", j.config.Concurrency).
		Msg("applying facility status updates")

	work := make(chan StatusUpdate)
	var applied, skipped atomic.Int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range work {
				o, err := j.apply(ctx, u)
				j.record(o)
				switch o {
				case outcomeApplied:
					applied.Add(1)
				case outcomeSkipped:
					skipped.Add(1)
				default:
					mu.Lock()
					result.Errors = append(result.Errors, ApplyError{FacilityID: u.FacilityID, Error: err.Error()})
					mu.Unlock()
				}
			}
		}()
	}

feed:
	for _, u := range updates {
		select {
		case work <- u:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()

	result.Applied = int(applied.Load())
	result.Skipped = int(skipped.Load())
	// Updates never dispatched because ctx ended count as failed.
	result.Failed = result.Total - result.Applied - result.Skipped
	result.Duration = time.Since(start)

	if result.Applied > 0 {
		j.invalidate()
	}

	j.metrics.mu.Lock()
	j.metrics.LastRun = start
	j.metrics.Duration = result.Duration
	j.metrics.mu.Unlock()

	j.logger.Info().
		Int("applied", result.Applied).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("facility status updates applied")

	return result
}

// HealthCheck verifies the repository is reachable.
func (j *StatusJob) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()
	if err := j.store.Ping(ctx); err != nil {
		return fmt.Errorf("facility repository unreachable: %w", err)
	}
	return nil
}

// Metrics returns a copy of the job counters.
func (j *StatusJob) Metrics() StatusJobMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()
	return StatusJobMetrics{
		Applied:  j.metrics.Applied,
		Skipped:  j.metrics.Skipped,
		Failed:   j.metrics.Failed,
		LastRun:  j.metrics.LastRun,
		Duration: j.metrics.Duration,
	}
}

func (j *StatusJob) record(o outcome) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()
	switch o {
	case outcomeApplied:
		j.metrics.Applied++
	case outcomeSkipped:
		j.metrics.Skipped++
	default:
		j.metrics.Failed++
	}
}

func (j *StatusJob) invalidate() {
	if j.cache != nil {
		j.cache.InvalidateCache()
	}
}
