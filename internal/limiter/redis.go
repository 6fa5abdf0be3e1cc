package limiter

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spokehq/gearvault/internal/models"
)

// RedisAuthAttemptLimiter is the shared-store implementation of
// AuthAttemptLimiter. The in-memory limiter is per-process only, so any
// horizontally scaled deployment must use this backend instead.
//
// Attempts live in sorted sets scored by unix milliseconds; expired entries
// are trimmed before every read and keys expire one window after the last
// write, so Redis bounds memory on its own.
type RedisAuthAttemptLimiter struct {
	client *redis.Client
	cfg    AuthAttemptConfig
}

// NewRedisAuthAttemptLimiter creates a Redis-backed auth attempt limiter
func NewRedisAuthAttemptLimiter(client *redis.Client, cfg AuthAttemptConfig) *RedisAuthAttemptLimiter {
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.MaxEmailChecks <= 0 {
		cfg.MaxEmailChecks = 3
	}
	return &RedisAuthAttemptLimiter{client: client, cfg: cfg}
}

func ipKey(ip string) string       { return "authlimit:ip:" + ip }
func emailKey(email string) string { return "authlimit:email:" + email }

// member encodes one attempt as "<uuid>|<type>|<success>" so concurrent
// attempts in the same millisecond stay distinct set members.
func member(attemptType models.AttemptType, success bool) string {
	return fmt.Sprintf("%s|%s|%t", uuid.New().String(), attemptType, success)
}

func parseMember(m string) (models.AttemptType, bool) {
	parts := strings.Split(m, "|")
	if len(parts) != 3 {
		return "", false
	}
	success, _ := strconv.ParseBool(parts[2])
	return models.AttemptType(parts[1]), success
}

// windowAttempts trims expired entries and returns the live ones with scores
func (l *RedisAuthAttemptLimiter) windowAttempts(ctx context.Context, key string, now time.Time) ([]redis.Z, error) {
	cutoff := now.Add(-l.cfg.Window).UnixMilli()

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	rangeCmd := pipe.ZRangeWithScores(ctx, key, 0, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read attempt window: %w", err)
	}
	return rangeCmd.Val(), nil
}

func (l *RedisAuthAttemptLimiter) retryAfter(oldestScore float64, now time.Time) int {
	oldest := time.UnixMilli(int64(oldestScore))
	secs := int(math.Ceil(oldest.Add(l.cfg.Window).Sub(now).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// CanAttemptAuth mirrors the in-memory limiter's thresholds against Redis
func (l *RedisAuthAttemptLimiter) CanAttemptAuth(ctx context.Context, ip, email string, _ models.AttemptType) (models.LimitDecision, error) {
	now := time.Now()

	ipAttempts, err := l.windowAttempts(ctx, ipKey(ip), now)
	if err != nil {
		return models.LimitDecision{}, err
	}
	if len(ipAttempts) >= l.cfg.MaxAttempts {
		return models.LimitDecision{
			Allowed:    false,
			Reason:     "too many attempts",
			RetryAfter: l.retryAfter(ipAttempts[0].Score, now),
		}, nil
	}

	emailAttempts, err := l.windowAttempts(ctx, emailKey(email), now)
	if err != nil {
		return models.LimitDecision{}, err
	}
	failed := 0
	var oldestFailed float64
	for _, z := range emailAttempts {
		attemptType, success := parseMember(z.Member.(string))
		if attemptType == models.AttemptEmailCheck || success {
			continue
		}
		if failed == 0 {
			oldestFailed = z.Score
		}
		failed++
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

// CanCheckEmail mirrors the in-memory email-check thresholds against Redis
func (l *RedisAuthAttemptLimiter) CanCheckEmail(ctx context.Context, ip, email string) (models.LimitDecision, error) {
	now := time.Now()

	ipAttempts, err := l.windowAttempts(ctx, ipKey(ip), now)
	if err != nil {
		return models.LimitDecision{}, err
	}
	ipChecks := 0
	var oldestIPCheck float64
	for _, z := range ipAttempts {
		attemptType, _ := parseMember(z.Member.(string))
		if attemptType != models.AttemptEmailCheck {
			continue
		}
		if ipChecks == 0 {
			oldestIPCheck = z.Score
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

	emailAttempts, err := l.windowAttempts(ctx, emailKey(email), now)
	if err != nil {
		return models.LimitDecision{}, err
	}
	emailChecks := 0
	var oldestEmailCheck float64
	for _, z := range emailAttempts {
		attemptType, _ := parseMember(z.Member.(string))
		if attemptType != models.AttemptEmailCheck {
			continue
		}
		if emailChecks == 0 {
			oldestEmailCheck = z.Score
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

// RecordAttempt writes the attempt under both keys and refreshes expiry
func (l *RedisAuthAttemptLimiter) RecordAttempt(ctx context.Context, ip, email string, attemptType models.AttemptType, success bool) error {
	now := time.Now()
	entry := redis.Z{Score: float64(now.UnixMilli()), Member: member(attemptType, success)}

	pipe := l.client.Pipeline()
	pipe.ZAdd(ctx, ipKey(ip), entry)
	pipe.Expire(ctx, ipKey(ip), l.cfg.Window)
	pipe.ZAdd(ctx, emailKey(email), redis.Z{Score: entry.Score, Member: member(attemptType, success)})
	pipe.Expire(ctx, emailKey(email), l.cfg.Window)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}
