package probe

import (
	"context"
	"sync"
	"time"

	"mcpdiscover/pkg/logging"
)

const cleanupSubsystem = "Cleanup"

// cleanupAttemptTimeout bounds each background removal attempt.
const cleanupAttemptTimeout = 30 * time.Second

// CleanupFunc removes one provisioned resource.
type CleanupFunc func(ctx context.Context) error

// Reaper retries failed resource removals in the background. Once a resource
// is handed to Schedule the reaper owns it exclusively: the discovery caller
// has already returned and is never blocked or notified.
type Reaper struct {
	maxRetries int
	baseDelay  time.Duration
	wg         sync.WaitGroup
}

// NewReaper creates a reaper retrying up to maxRetries times, sleeping
// baseDelay before the first retry and doubling it each attempt.
func NewReaper(maxRetries int, baseDelay time.Duration) *Reaper {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &Reaper{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

// Schedule hands a resource to the background removal loop and returns
// immediately.
func (r *Reaper) Schedule(resource string, remove CleanupFunc) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		delay := r.baseDelay
		for attempt := 1; attempt <= r.maxRetries; attempt++ {
			time.Sleep(delay)
			delay *= 2

			ctx, cancel := context.WithTimeout(context.Background(), cleanupAttemptTimeout)
			err := remove(ctx)
			cancel()
			if err == nil {
				logging.Debug(cleanupSubsystem, "Removed %s on background attempt %d", resource, attempt)
				return
			}
			logging.Warn(cleanupSubsystem, "Background removal of %s failed (attempt %d/%d): %v", resource, attempt, r.maxRetries, err)
		}

		logging.Error(cleanupSubsystem, nil, "Giving up on %s after %d attempts; resource leak requires manual intervention", resource, r.maxRetries)
	}()
}

// Wait blocks until all scheduled removals have finished. It exists for
// tests and orderly shutdown; discovery callers never wait on the reaper.
func (r *Reaper) Wait() {
	r.wg.Wait()
}
