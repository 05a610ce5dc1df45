package retrieval

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"net"
	"time"
)

// BackoffProfile tunes retry behavior for one class of remote call. Page
// fetches pay for a full render, so their profile runs longer than the
// lightweight per-item hit lookups.
type BackoffProfile struct {
	Base        time.Duration
	Spread      time.Duration
	MaxAttempts int
}

// DefaultPageProfile is the backoff profile for search-page fetches.
func DefaultPageProfile() BackoffProfile {
	return BackoffProfile{
		Base:        2 * time.Second,
		Spread:      3 * time.Second,
		MaxAttempts: 3,
	}
}

// DefaultHitProfile is the backoff profile for per-item hit lookups.
func DefaultHitProfile() BackoffProfile {
	return BackoffProfile{
		Base:        250 * time.Millisecond,
		Spread:      500 * time.Millisecond,
		MaxAttempts: 5,
	}
}

// RetryPolicy classifies raw failures and computes jittered backoff delays.
// The policy is stateless; callers own the attempt counter and enforce the
// profile's MaxAttempts ceiling.
type RetryPolicy struct {
	profile BackoffProfile
}

// NewRetryPolicy builds a policy around the given profile.
func NewRetryPolicy(profile BackoffProfile) RetryPolicy {
	if profile.MaxAttempts <= 0 {
		profile.MaxAttempts = 1
	}
	if profile.Base < 0 {
		profile.Base = 0
	}
	return RetryPolicy{profile: profile}
}

// MaxAttempts exposes the profile ceiling for callers driving the loop.
func (p RetryPolicy) MaxAttempts() int {
	return p.profile.MaxAttempts
}

// Classify maps a raw failure onto the closed Kind set. Errors already
// tagged keep their classification. Context cancellation is fatal (the
// operator gave up); deadlines and network timeouts are transient, and so
// is anything else the remote side can plausibly recover from.
func (p RetryPolicy) Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if kind := KindOf(err); kind != KindUnknown {
		return kind
	}
	if errors.Is(err, context.Canceled) {
		return KindFatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindRetryable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindRetryable
		}
	}
	return KindRetryable
}

// Retryable reports whether the classification permits another attempt.
func (p RetryPolicy) Retryable(kind Kind) bool {
	return kind == KindRetryable || kind == KindChallengeDetected
}

// Backoff returns the delay before the next attempt: base plus a uniform
// jitter in [0, spread). The result always lies in [base, base+spread).
func (p RetryPolicy) Backoff(_ int) time.Duration {
	return p.profile.Base + randomJitter(p.profile.Spread)
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
