package limiter

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/spokehq/gearvault/internal/models"
)

// AuthAttemptLimiter guards authentication endpoints against brute-force and
// enumeration attempts. Two implementations exist: in-memory (single process)
// and Redis-backed (required for any multi-instance deployment).
type AuthAttemptLimiter interface {
	CanAttemptAuth(ctx context.Context, ip, email string, attemptType models.AttemptType) (models.LimitDecision, error)
	CanCheckEmail(ctx context.Context, ip, email string) (models.LimitDecision, error)
	RecordAttempt(ctx context.Context, ip, email string, attemptType models.AttemptType, success bool) error
}

// AuthAttemptConfig holds auth attempt limiter settings.
//
// The email thresholds derive from the IP ceilings: failed auth attempts per
// email cap at floor(0.6 * MaxAttempts), email-existence checks per email cap
// at floor(0.5 * MaxEmailChecks). Looser for IP-wide traffic (one IP can
// serve many legitimate users), tighter for a single targeted email.
type AuthAttemptConfig struct {
	Window          time.Duration
	MaxAttempts     int // per-IP ceiling, any type, any outcome
	MaxEmailChecks  int // per-IP ceiling for email_check
	CleanupInterval time.Duration
}

// DefaultAuthAttemptConfig returns the default policy: 15 minute window,
// 5 attempts per IP, 3 email checks per IP.
func DefaultAuthAttemptConfig() AuthAttemptConfig {
	return AuthAttemptConfig{
		Window:          15 * time.Minute,
		MaxAttempts:     5,
		MaxEmailChecks:  3,
		CleanupInterval: 5 * time.Minute,
	}
}

// emailFailedLimit is the failure-specific per-email ceiling
func (c AuthAttemptConfig) emailFailedLimit() int {
	return int(math.Floor(0.6 * float64(c.MaxAttempts)))
}

// emailCheckLimit is the per-email ceiling for existence checks
func (c AuthAttemptConfig) emailCheckLimit() int {
	return int(math.Floor(0.5 * float64(c.MaxEmailChecks)))
}

// MemoryAuthAttemptLimiter tracks attempts dual-indexed by IP and email so
// either axis can trigger a block. Attempts are ephemeral; nothing is
// persisted. Cleanup runs lazily, only when CleanupInterval has elapsed
// since the last sweep, to avoid per-request overhead while bounding memory.
type MemoryAuthAttemptLimiter struct {
	mu          sync.Mutex
	byIP        map[string][]models.AuthAttempt
	byEmail     map[string][]models.AuthAttempt
	cfg         AuthAttemptConfig
	lastCleanup time.Time
}

// NewMemoryAuthAttemptLimiter creates an in-memory auth attempt limiter
func NewMemoryAuthAttemptLimiter(cfg AuthAttemptConfig) *MemoryAuthAttemptLimiter {
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.MaxEmailChecks <= 0 {
		cfg.MaxEmailChecks = 3
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	return &MemoryAuthAttemptLimiter{
		byIP:        make(map[string][]models.AuthAttempt),
		byEmail:     make(map[string][]models.AuthAttempt),
		cfg:         cfg,
		lastCleanup: time.Now(),
	}
}

// pruneKey drops attempts older than the window for one key. Caller holds mu.
func pruneKey(m map[string][]models.AuthAttempt, key string, cutoff time.Time) []models.AuthAttempt {
	attempts := m[key]
	i := 0
	for ; i < len(attempts); i++ {
		if attempts[i].Timestamp.After(cutoff) {
			break
		}
	}
	if i > 0 {
		attempts = append(attempts[:0], attempts[i:]...)
		if len(attempts) == 0 {
			delete(m, key)
		} else {
			m[key] = attempts
		}
	}
	return attempts
}

// maybeCleanup sweeps all keys when the cleanup interval has elapsed.
// Caller holds mu.
func (l *MemoryAuthAttemptLimiter) maybeCleanup(now time.Time) {
	if now.Sub(l.lastCleanup) < l.cfg.CleanupInterval {
		return
	}
	cutoff := now.Add(-l.cfg.Window)
	for key := range l.byIP {
		pruneKey(l.byIP, key, cutoff)
	}
	for key := range l.byEmail {
		pruneKey(l.byEmail, key, cutoff)
	}
	l.lastCleanup = now
}

// Sweep forces a full cleanup pass. Used by the background sweeper.
func (l *MemoryAuthAttemptLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastCleanup = time.Time{}
	l.maybeCleanup(time.Now())
}

// retryAfter computes seconds until the oldest counted attempt exits the window
func (l *MemoryAuthAttemptLimiter) retryAfter(oldest time.Time, now time.Time) int {
	secs := int(math.Ceil(oldest.Add(l.cfg.Window).Sub(now).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// CanAttemptAuth checks whether a login/registration attempt is allowed.
// The IP ceiling counts all attempts regardless of type or outcome; the
// email ceiling counts only failures, punishing repeated wrong-password
// guesses more aggressively than general traffic.
func (l *MemoryAuthAttemptLimiter) CanAttemptAuth(_ context.Context, ip, email string, _ models.AttemptType) (models.LimitDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.maybeCleanup(now)
	cutoff := now.Add(-l.cfg.Window)

	ipAttempts := pruneKey(l.byIP, ip, cutoff)
	if len(ipAttempts) >= l.cfg.MaxAttempts {
		return models.LimitDecision{
			Allowed:    false,
			Reason:     "too many attempts",
			RetryAfter: l.retryAfter(ipAttempts[0].Timestamp, now),
		}, nil
	}

	emailAttempts := pruneKey(l.byEmail, email, cutoff)
	failed := 0
	var oldestFailed time.Time
	for _, a := range emailAttempts {
		if a.Type == models.AttemptEmailCheck {
			continue
		}
		if !a.Success {
			if failed == 0 {
				oldestFailed = a.Timestamp
			}
			failed++
		}
	}
	if failed >= l.cfg.emailFailedLimit() {
		return models.LimitDecision{
			Allowed:    false,
			Reason:     "too many attempts",
			RetryAfter: l.retryAfter(oldestFailed, now),
		}, nil
	}

	return models.LimitDecision{Allowed: true}, nil
}

// CanCheckEmail checks whether an email-existence probe is allowed. Counters
// are scoped to email_check attempts and deliberately strict to blunt
// enumeration probing.
func (l *MemoryAuthAttemptLimiter) CanCheckEmail(_ context.Context, ip, email string) (models.LimitDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.maybeCleanup(now)
	cutoff := now.Add(-l.cfg.Window)

	ipAttempts := pruneKey(l.byIP, ip, cutoff)
	ipChecks := 0
	var oldestIPCheck time.Time
	for _, a := range ipAttempts {
		if a.Type != models.AttemptEmailCheck {
			continue
		}
		if ipChecks == 0 {
			oldestIPCheck = a.Timestamp
		}
		ipChecks++
	}
	if ipChecks >= l.cfg.MaxEmailChecks {
		return models.LimitDecision{
			Allowed:    false,
			Reason:     "too many attempts",
			RetryAfter: l.retryAfter(oldestIPCheck, now),
		}, nil
	}

	emailAttempts := pruneKey(l.byEmail, email, cutoff)
	emailChecks := 0
	var oldestEmailCheck time.Time
	for _, a := range emailAttempts {
		if a.Type != models.AttemptEmailCheck {
			continue
		}
		if emailChecks == 0 {
			oldestEmailCheck = a.Timestamp
		}
		emailChecks++
	}
	if emailChecks >= l.cfg.emailCheckLimit() {
		return models.LimitDecision{
			Allowed:    false,
			Reason:     "too many attempts",
			RetryAfter: l.retryAfter(oldestEmailCheck, now),
		}, nil
	}

	return models.LimitDecision{Allowed: true}, nil
}

// RecordAttempt appends the attempt under both the IP key and the email key
func (l *MemoryAuthAttemptLimiter) RecordAttempt(_ context.Context, ip, email string, attemptType models.AttemptType, success bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.maybeCleanup(now)

	attempt := models.AuthAttempt{
		Timestamp: now,
		Success:   success,
		Type:      attemptType,
	}
	l.byIP[ip] = append(l.byIP[ip], attempt)
	l.byEmail[email] = append(l.byEmail[email], attempt)
	return nil
}
