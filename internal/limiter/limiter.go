// Package limiter throttles unauthenticated calls that keep failing.
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Limiter counts failures per (action, client) and blocks temporarily.
type Limiter interface {
	// Allow reports whether the call may proceed and, if not, for how long.
	Allow(ctx context.Context, action string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful call.
	Success(ctx context.Context, action string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, action string, ipHash []byte) (bool, time.Duration, error)
}

// Policy configures the sliding window and lockout.
type Policy struct {
	Window   time.Duration
	MaxFails int
	BlockFor time.Duration
}

// DefaultPolicy allows five failures per 15 minutes.
var DefaultPolicy = Policy{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 15 * time.Minute}

// HashIP returns a stable hash for an IP string to avoid storing raw addresses.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}
