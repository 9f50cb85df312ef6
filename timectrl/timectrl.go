package timectrl

import (
	"sync"
	"time"
)

// Clock is an interface for reading wall-clock time. Components that measure
// elapsed time depend on it rather than time.Now, enabling testability.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// ManualClock only moves when told to.
type ManualClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManualClock constructs a clock frozen at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the clock's current time.
func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// SetTime jumps the clock to t.
func (c *ManualClock) SetTime(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Stepper walks simulation time from Start to End in fixed Steps. The last
// step is shortened so End itself is always visited.
type Stepper struct {
	Start time.Time
	End   time.Time
	Step  time.Duration

	listeners []func(time.Time)
}

// AddListener registers a callback invoked at every visited time by Run.
func (s *Stepper) AddListener(fn func(time.Time)) {
	s.listeners = append(s.listeners, fn)
}

// Times returns every grid time in order. An empty or inverted interval
// yields just Start.
func (s Stepper) Times() []time.Time {
	if s.Step <= 0 || !s.End.After(s.Start) {
		return []time.Time{s.Start}
	}
	n := int(s.End.Sub(s.Start) / s.Step)
	out := make([]time.Time, 0, n+2)
	for i := 0; i <= n; i++ {
		out = append(out, s.Start.Add(time.Duration(i)*s.Step))
	}
	if last := out[len(out)-1]; last.Before(s.End) {
		out = append(out, s.End)
	}
	return out
}

// Run visits every grid time, calling fn and then each listener. It stops at
// the first error fn returns.
func (s *Stepper) Run(fn func(time.Time) error) error {
	for _, t := range s.Times() {
		if fn != nil {
			if err := fn(t); err != nil {
				return err
			}
		}
		for _, l := range s.listeners {
			l(t)
		}
	}
	return nil
}
