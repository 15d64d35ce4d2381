// Package timer provides the clock consumed by the scheduler and the
// time syscalls. The hardware timer driver is an external
// collaborator; SystemClock stands in for it on a host.
package timer

import (
	"sync"
	"time"
)

// Clock reports the current time at microsecond and millisecond
// granularity.
type Clock interface {
	// NowMicros returns the current time in microseconds.
	NowMicros() uint64
	// NowMillis returns the current time in milliseconds.
	NowMillis() uint64
}

// SystemClock reads the host wall clock.
type SystemClock struct{}

// NowMicros returns the wall-clock time in microseconds.
func (SystemClock) NowMicros() uint64 {
	return uint64(time.Now().UnixMicro())
}

// NowMillis returns the wall-clock time in milliseconds.
func (SystemClock) NowMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}

// ManualClock is a clock advanced by hand, for deterministic tests.
type ManualClock struct {
	mu sync.Mutex
	us uint64
}

// NewManualClock creates a manual clock starting at startMicros.
func NewManualClock(startMicros uint64) *ManualClock {
	return &ManualClock{us: startMicros}
}

// NowMicros returns the clock's current microsecond reading.
func (c *ManualClock) NowMicros() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.us
}

// NowMillis returns the clock's current millisecond reading.
func (c *ManualClock) NowMillis() uint64 {
	return c.NowMicros() / 1000
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.us += uint64(d.Microseconds())
}
