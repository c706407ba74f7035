package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestEmptyCellIsExpired(t *testing.T) {
	c := New[string](time.Minute, nil)

	assert.True(t, c.IsExpired())
	_, ok := c.Get()
	assert.False(t, ok)
	assert.True(t, c.CreatedAt().IsZero())
}

func TestZeroTTLExpiresImmediately(t *testing.T) {
	clock := newClock()
	c := New[int](0, clock.Now)

	c.Put(42)

	assert.True(t, c.IsExpired())
	_, ok := c.Get()
	assert.False(t, ok)
}

func TestTTLBoundaries(t *testing.T) {
	clock := newClock()
	c := New[[]string](300*time.Second, clock.Now)

	c.Put([]string{"a", "b"})

	clock.Advance(time.Second)
	v, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, v)
	assert.False(t, c.IsExpired())

	clock.Advance(300 * time.Second)
	assert.True(t, c.IsExpired())
	_, ok = c.Get()
	assert.False(t, ok)
}

func TestPutReplacesValue(t *testing.T) {
	clock := newClock()
	c := New[string](time.Minute, clock.Now)

	c.Put("first")
	first := c.CreatedAt()

	clock.Advance(30 * time.Second)
	c.Put("second")

	v, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, "second", v)
	assert.Equal(t, first.Add(30*time.Second), c.CreatedAt())

	// refreshed timestamp keeps it alive past the first deadline
	clock.Advance(45 * time.Second)
	assert.False(t, c.IsExpired())
}

func TestClear(t *testing.T) {
	c := New[string](time.Hour, nil)
	c.Put("value")
	require.False(t, c.IsExpired())

	c.Clear()

	assert.True(t, c.IsExpired())
	v, ok := c.Get()
	assert.False(t, ok)
	assert.Empty(t, v)
}
