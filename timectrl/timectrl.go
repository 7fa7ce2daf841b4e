package timectrl

import (
	"sync"
	"time"
)

// SimClock is an interface for reading simulation time. Kernel entities and
// metrics depend on this abstraction rather than on the concrete controller.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
	// Elapsed returns how much simulated time has passed since the start.
	Elapsed() time.Duration
}

// TimeController owns a stepped virtual clock. Time only moves when the
// owner advances it, so a run is reproducible regardless of wall-clock speed.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time

	currentTime time.Time

	listeners []func(now time.Time, delta time.Duration)
}

// NewTimeController constructs a controller positioned at start.
func NewTimeController(start time.Time) *TimeController {
	return &TimeController{
		StartTime:   start,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// Elapsed returns the simulated time since StartTime. Implements SimClock.
func (tc *TimeController) Elapsed() time.Duration {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime.Sub(tc.StartTime)
}

// AddListener registers a callback invoked after every forward move of the
// clock with the new time and the size of the step.
func (tc *TimeController) AddListener(fn func(now time.Time, delta time.Duration)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Advance moves the clock forward by d. Non-positive steps are ignored.
func (tc *TimeController) Advance(d time.Duration) time.Time {
	if d <= 0 {
		return tc.Now()
	}
	tc.mu.Lock()
	tc.currentTime = tc.currentTime.Add(d)
	now := tc.currentTime
	listeners := append([]func(time.Time, time.Duration){}, tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(now, d)
	}
	return now
}

// AdvanceTo moves the clock to t if t is in the future and reports whether
// the clock moved. The clock never runs backwards.
func (tc *TimeController) AdvanceTo(t time.Time) bool {
	now := tc.Now()
	if !t.After(now) {
		return false
	}
	tc.Advance(t.Sub(now))
	return true
}
