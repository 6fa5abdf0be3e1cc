package limiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spokehq/gearvault/internal/models"
)

// SlidingWindow bounds outbound calls to the backing data store. It keeps an
// ordered list of request timestamps and prunes entries older than the window
// on every query. Defaults stay under the store's 60/min ceiling with margin.
//
// State is per-process only. A multi-instance deployment must move this to a
// shared store; see the Redis-backed auth attempt limiter for the pattern.
type SlidingWindow struct {
	mu          sync.Mutex
	timestamps  []time.Time
	maxRequests int
	window      time.Duration
}

// SlidingWindowConfig holds sliding window limiter settings
type SlidingWindowConfig struct {
	MaxRequests int
	Window      time.Duration
}

// DefaultSlidingWindowConfig returns the default policy: 50 requests per
// 60 second window.
func DefaultSlidingWindowConfig() SlidingWindowConfig {
	return SlidingWindowConfig{
		MaxRequests: 50,
		Window:      60 * time.Second,
	}
}

// NewSlidingWindow creates a sliding window limiter
func NewSlidingWindow(cfg SlidingWindowConfig) *SlidingWindow {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 50
	}
	if cfg.Window <= 0 {
		cfg.Window = 60 * time.Second
	}
	return &SlidingWindow{
		maxRequests: cfg.MaxRequests,
		window:      cfg.Window,
	}
}

// prune discards entries older than the window. Caller must hold mu.
func (sw *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	if i > 0 {
		sw.timestamps = append(sw.timestamps[:0], sw.timestamps[i:]...)
	}
}

// CanMakeRequest reports whether a request would be admitted right now
func (sw *SlidingWindow) CanMakeRequest() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.prune(time.Now())
	return len(sw.timestamps) < sw.maxRequests
}

// AddRequest records a request timestamp and reports whether it was accepted
func (sw *SlidingWindow) AddRequest() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	sw.prune(now)

	if len(sw.timestamps) >= sw.maxRequests {
		return false
	}
	sw.timestamps = append(sw.timestamps, now)
	return true
}

// TimeUntilReset returns how long until the oldest entry ages out of the
// window. Zero when a request can be made immediately.
func (sw *SlidingWindow) TimeUntilReset() time.Duration {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	sw.prune(now)

	if len(sw.timestamps) < sw.maxRequests {
		return 0
	}

	reset := sw.timestamps[0].Add(sw.window).Sub(now)
	if reset < 0 {
		return 0
	}
	return reset
}

// Remaining returns the number of requests still admissible in the window
func (sw *SlidingWindow) Remaining() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.prune(time.Now())

	remaining := sw.maxRequests - len(sw.timestamps)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// DoConfig controls the rate-limited request wrapper
type DoConfig struct {
	Retries int           // attempts before giving up
	MaxWait time.Duration // cap on a single pre-check sleep
}

// DefaultDoConfig returns the uniform retry policy for store calls
func DefaultDoConfig() DoConfig {
	return DoConfig{
		Retries: 3,
		MaxWait: 5 * time.Second,
	}
}

// RequestWrapper composes a sliding window with retry/backoff handling for
// wrapped store calls.
type RequestWrapper struct {
	window *SlidingWindow
	cfg    DoConfig
	logger *slog.Logger
}

// NewRequestWrapper creates a rate-limited request wrapper
func NewRequestWrapper(window *SlidingWindow, cfg DoConfig, logger *slog.Logger) *RequestWrapper {
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 5 * time.Second
	}
	return &RequestWrapper{window: window, cfg: cfg, logger: logger}
}

// Do runs fn under the local rate limit. Before each attempt it checks the
// window; if rejected it sleeps for min(timeUntilReset, maxWait) and retries.
// If fn itself reports a store-side rate limit (models.ErrStoreRateLimited),
// it backs off exponentially (1s * attempt) and retries. Other errors
// propagate immediately. The double layer protects against local bursts and
// against unseen external consumers of the same downstream quota.
func (rw *RequestWrapper) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= rw.cfg.Retries; attempt++ {
		if !rw.window.CanMakeRequest() {
			wait := rw.window.TimeUntilReset()
			if wait > rw.cfg.MaxWait {
				wait = rw.cfg.MaxWait
			}
			rw.logger.Warn("local rate limit reached, waiting",
				slog.Duration("wait", wait),
				slog.Int("attempt", attempt))

			if err := sleepCtx(ctx, wait); err != nil {
				return err
			}
			if !rw.window.CanMakeRequest() {
				lastErr = models.ErrRateLimitExceeded
				continue
			}
		}

		rw.window.AddRequest()

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, models.ErrStoreRateLimited) {
			backoff := time.Duration(attempt) * time.Second
			rw.logger.Warn("store reported rate limit, backing off",
				slog.Duration("backoff", backoff),
				slog.Int("attempt", attempt))
			if serr := sleepCtx(ctx, backoff); serr != nil {
				return serr
			}
			continue
		}

		return err
	}

	return fmt.Errorf("request failed after %d attempts: %w", rw.cfg.Retries, lastErr)
}

// sleepCtx sleeps for d unless the context is cancelled first
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
