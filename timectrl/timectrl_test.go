package timectrl

import (
	"errors"
	"testing"
	"time"
)

func TestManualClockSetTime(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	c := NewManualClock(start)

	newNow := start.Add(42 * time.Second)
	c.SetTime(newNow)
	if got := c.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}

	c.Advance(time.Second)
	if got := c.Now(); !got.Equal(newNow.Add(time.Second)) {
		t.Fatalf("Now() after Advance = %v", got)
	}
}

func TestStepperTimesIncludesEnd(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	s := Stepper{Start: start, End: start.Add(150 * time.Second), Step: time.Minute}
	got := s.Times()
	want := []time.Duration{0, 60 * time.Second, 120 * time.Second, 150 * time.Second}
	if len(got) != len(want) {
		t.Fatalf("Times() len = %d, want %d (%v)", len(got), len(want), got)
	}
	for i, d := range want {
		if !got[i].Equal(start.Add(d)) {
			t.Fatalf("Times()[%d] = %v, want %v", i, got[i], start.Add(d))
		}
	}

	exact := Stepper{Start: start, End: start.Add(2 * time.Minute), Step: time.Minute}
	if n := len(exact.Times()); n != 3 {
		t.Fatalf("exact grid len = %d, want 3", n)
	}
}

func TestStepperRunNotifiesListenersAndStopsOnError(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	s := &Stepper{Start: start, End: start.Add(5 * time.Minute), Step: time.Minute}

	var seen int
	s.AddListener(func(time.Time) { seen++ })
	if err := s.Run(nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seen != 6 {
		t.Fatalf("listener calls = %d, want 6", seen)
	}

	stop := errors.New("stop")
	calls := 0
	err := s.Run(func(tm time.Time) error {
		calls++
		if tm.Equal(start.Add(2 * time.Minute)) {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) || calls != 3 {
		t.Fatalf("Run err=%v calls=%d", err, calls)
	}
}
