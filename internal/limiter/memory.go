package limiter

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	fails        int
	updatedAt    time.Time
	blockedUntil time.Time
}

type memKey struct {
	action string
	ip     string
}

// Memory keeps counters in process. It pairs with the in-memory store.
type Memory struct {
	mu     sync.Mutex
	policy Policy
	now    func() time.Time
	seen   map[memKey]*counter
}

// NewMemory returns an empty in-process limiter.
func NewMemory(p Policy) *Memory {
	return &Memory{policy: p, now: time.Now, seen: map[memKey]*counter{}}
}

// Allow implements Limiter.
func (l *Memory) Allow(_ context.Context, action string, ipHash []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.seen[memKey{action, string(ipHash)}]
	if now := l.now(); ok && c.blockedUntil.After(now) {
		return false, c.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success implements Limiter.
func (l *Memory) Success(_ context.Context, action string, ipHash []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.seen, memKey{action, string(ipHash)})
	return nil
}

// Failure implements Limiter.
func (l *Memory) Failure(_ context.Context, action string, ipHash []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	k := memKey{action, string(ipHash)}
	c, ok := l.seen[k]
	if !ok || now.Sub(c.updatedAt) > l.policy.Window {
		c = &counter{}
		l.seen[k] = c
	}
	c.fails++
	c.updatedAt = now
	if c.fails < l.policy.MaxFails {
		return false, 0, nil
	}
	c.blockedUntil = now.Add(l.policy.BlockFor)
	return true, l.policy.BlockFor, nil
}
