package testutil

import (
	"sync"
	"time"
)

// Epoch is the first instant returned by a fresh DeterministicClock.
var Epoch = time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

// DeterministicClock is a thread-safe clock for tests that advances by a
// fixed step on every call.
//
// The first call to Now returns Epoch. Reset rewinds the clock so the same
// scenario can run again with identical timestamps.
type DeterministicClock struct {
	mu   sync.Mutex
	step time.Duration
	next time.Time
}

// NewDeterministicClock creates a clock starting at Epoch that advances by
// one second per call.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{step: time.Second, next: Epoch}
}

// FrozenClock returns a clock function that always reports t.
func FrozenClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// Now returns the current instant and advances the clock.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(c.step)
	return now
}

// Peek returns the instant the next call to Now will report.
func (c *DeterministicClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}

// Reset rewinds the clock to Epoch.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = Epoch
}
