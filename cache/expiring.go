// Package cache provides a time-boxed memoization cell.
package cache

import "time"

// Expiring holds at most one value together with the time it was stored.
// A value is replaced, never mutated in place. Staleness is checked lazily by
// callers; there is no eviction goroutine.
//
// Expiring is not safe for concurrent use. Owners serialize their
// check-refresh-put sequences with their own lock.
type Expiring[T any] struct {
	ttl time.Duration
	now func() time.Time

	filled    bool
	value     T
	createdAt time.Time
}

// New creates an empty cell. If now is nil, time.Now is used.
func New[T any](ttl time.Duration, now func() time.Time) *Expiring[T] {
	if now == nil {
		now = time.Now
	}
	return &Expiring[T]{ttl: ttl, now: now}
}

// Get returns the stored value when the cell is filled and not expired.
func (c *Expiring[T]) Get() (T, bool) {
	if c.IsExpired() {
		var zero T
		return zero, false
	}
	return c.value, true
}

// IsExpired reports true for an empty cell, or once ttl has fully elapsed
// since the last Put. A zero ttl is expired right after Put.
func (c *Expiring[T]) IsExpired() bool {
	if !c.filled {
		return true
	}
	return c.now().Sub(c.createdAt) >= c.ttl
}

// Put stores v with the current time, discarding any previous value.
func (c *Expiring[T]) Put(v T) {
	c.value = v
	c.createdAt = c.now()
	c.filled = true
}

// Clear drops the stored value.
func (c *Expiring[T]) Clear() {
	var zero T
	c.value = zero
	c.createdAt = time.Time{}
	c.filled = false
}

// CreatedAt returns when the current value was stored, or the zero time.
func (c *Expiring[T]) CreatedAt() time.Time {
	return c.createdAt
}

// TTL returns the configured time-to-live.
func (c *Expiring[T]) TTL() time.Duration {
	return c.ttl
}
