package spacecraft

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/signalsfoundry/mission-planner/core"
	"github.com/signalsfoundry/mission-planner/model"
	"github.com/signalsfoundry/mission-planner/timectrl"
)

// WindowFinder extracts visibility windows by sampling elevation on a fixed
// grid and refining each threshold crossing by bisection.
type WindowFinder struct {
	Step          time.Duration
	Tolerance     time.Duration
	MaxBisections int
}

// DefaultWindowFinder samples every 60 s and refines boundaries to 2 s.
func DefaultWindowFinder() WindowFinder {
	return WindowFinder{Step: time.Minute, Tolerance: 2 * time.Second, MaxBisections: 32}
}

// Validate checks the sampling settings.
func (f WindowFinder) Validate() error {
	switch {
	case f.Step <= 0:
		return core.InvalidConfig("spacecraft.sample_step_s", "must be positive")
	case f.Tolerance <= 0:
		return core.InvalidConfig("spacecraft.refine_tolerance_s", "must be positive")
	case f.Tolerance > f.Step:
		return core.InvalidConfig("spacecraft.refine_tolerance_s", "must not exceed the sample step")
	case f.MaxBisections <= 0:
		return core.InvalidConfig("spacecraft.max_bisections", "must be positive")
	}
	return nil
}

// Find returns the windows of one subject over [start, end].
func (f WindowFinder) Find(eph Ephemeris, subject model.GroundSubject, start, end time.Time) ([]model.VisibilityWindow, error) {
	all, err := f.FindAll(eph, []model.GroundSubject{subject}, start, end)
	if err != nil {
		return nil, err
	}
	return all[subject.ID], nil
}

// FindAll returns windows for every subject, keyed by subject id. The
// trajectory is sampled once and shared across subjects. Windows for a
// subject are ordered by start and never overlap.
func (f WindowFinder) FindAll(eph Ephemeris, subjects []model.GroundSubject, start, end time.Time) (map[string][]model.VisibilityWindow, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, core.InvalidConfig("spacecraft.horizon_days", "horizon end must be after start")
	}

	stepper := timectrl.Stepper{Start: start, End: end, Step: f.Step}
	times := stepper.Times()
	positions := make([]model.Vec3, len(times))
	for i, t := range times {
		p, err := PositionECEF(eph, t)
		if err != nil {
			return nil, fmt.Errorf("sample %s: %w", t.Format(time.RFC3339), err)
		}
		positions[i] = p
	}

	out := make(map[string][]model.VisibilityWindow, len(subjects))
	for _, subj := range subjects {
		ground := SubjectECEF(subj)
		margin := func(t time.Time) (float64, error) {
			p, err := PositionECEF(eph, t)
			if err != nil {
				return 0, err
			}
			return LookAngles(p, ground).ElevationDeg - subj.MinElevationDeg, nil
		}

		var (
			windows []model.VisibilityWindow
			open    *model.VisibilityWindow
		)
		for i, t := range times {
			el := LookAngles(positions[i], ground).ElevationDeg
			visible := el >= subj.MinElevationDeg

			switch {
			case visible && open == nil:
				w := model.VisibilityWindow{SubjectID: subj.ID, Kind: subj.Kind}
				if i == 0 {
					w.Start = t
					w.Clipped = true
				} else {
					crossing, err := f.bisect(margin, times[i-1], t, true)
					if err != nil {
						return nil, err
					}
					w.Start = crossing
					w.Profile = append(w.Profile, model.ElevationSample{Time: crossing, ElevationDeg: subj.MinElevationDeg})
				}
				open = &w
				fallthrough
			case visible:
				open.Profile = append(open.Profile, model.ElevationSample{Time: t, ElevationDeg: el})
			case !visible && open != nil:
				crossing, err := f.bisect(margin, times[i-1], t, false)
				if err != nil {
					return nil, err
				}
				open.End = crossing
				open.Profile = append(open.Profile, model.ElevationSample{Time: crossing, ElevationDeg: subj.MinElevationDeg})
				windows = append(windows, finishWindow(*open))
				open = nil
			}
		}
		if open != nil {
			open.End = times[len(times)-1]
			open.Clipped = true
			windows = append(windows, finishWindow(*open))
		}
		sort.Slice(windows, func(a, b int) bool { return windows[a].Start.Before(windows[b].Start) })
		out[subj.ID] = windows
	}
	return out, nil
}

func finishWindow(w model.VisibilityWindow) model.VisibilityWindow {
	w.MaxElevationDeg = math.Inf(-1)
	for _, s := range w.Profile {
		if s.ElevationDeg > w.MaxElevationDeg {
			w.MaxElevationDeg = s.ElevationDeg
		}
	}
	return w
}

// bisect narrows [lo, hi] around the zero of margin. rising means margin is
// negative at lo and non-negative at hi; otherwise the reverse.
func (f WindowFinder) bisect(margin func(time.Time) (float64, error), lo, hi time.Time, rising bool) (time.Time, error) {
	for i := 0; i < f.MaxBisections; i++ {
		if hi.Sub(lo) <= f.Tolerance {
			return lo.Add(hi.Sub(lo) / 2), nil
		}
		mid := lo.Add(hi.Sub(lo) / 2)
		m, err := margin(mid)
		if err != nil {
			return time.Time{}, err
		}
		if (m >= 0) == rising {
			hi = mid
		} else {
			lo = mid
		}
	}
	if hi.Sub(lo) <= f.Tolerance {
		return lo.Add(hi.Sub(lo) / 2), nil
	}
	return time.Time{}, &core.ConvergenceError{
		Op:         "window boundary bisection",
		Iterations: f.MaxBisections,
		Residual:   hi.Sub(lo).Seconds(),
	}
}
