package harvest

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"
)

// BackoffPolicy decides retry eligibility and produces the jittered waits
// used between attempts: a widening backoff after each soft failure and a
// uniform pacing delay before every attempt.
type BackoffPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	pacingMin   time.Duration
	pacingMax   time.Duration
}

// NewBackoffPolicy builds a policy, substituting defaults for zero values.
func NewBackoffPolicy(maxAttempts int, base, max, pacingMin, pacingMax time.Duration) *BackoffPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if base <= 0 {
		base = 5 * time.Second
	}
	if max <= 0 {
		max = time.Minute
	}
	if pacingMin <= 0 {
		pacingMin = 2 * time.Second
	}
	if pacingMax <= pacingMin {
		pacingMax = pacingMin + 6*time.Second
	}
	return &BackoffPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   base,
		maxDelay:    max,
		pacingMin:   pacingMin,
		pacingMax:   pacingMax,
	}
}

// MaxAttempts is the per-target attempt budget.
func (p *BackoffPolicy) MaxAttempts() int { return p.maxAttempts }

// ShouldRetry decides whether another attempt is allowed after attemptsMade
// attempts have failed.
func (p *BackoffPolicy) ShouldRetry(err error, attemptsMade int) bool {
	if err == nil {
		return false
	}
	if attemptsMade >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return IsRecoverable(err)
}

// Backoff returns the wait before retry number attempt (zero-based). The
// range widens with each successive attempt.
func (p *BackoffPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	half := time.Duration(delay / 2)
	return half + randomJitter(half)
}

// Pacing samples the delay taken before every attempt. The interval is never
// zero-width and is resampled per call.
func (p *BackoffPolicy) Pacing() time.Duration {
	return p.pacingMin + randomJitter(p.pacingMax-p.pacingMin)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
