package spacecraft

import (
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/signalsfoundry/mission-planner/model"
)

// DefaultWindowCacheSize is the cache capacity used when none is given.
const DefaultWindowCacheSize = 256

// WindowCache memoises visibility windows per orbit, subject and sampling
// settings so repeated planning over the same geometry skips re-sampling.
// It is safe for concurrent use.
type WindowCache struct {
	entries *lru.Cache[string, []model.VisibilityWindow]
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewWindowCache creates a cache holding up to size subject window lists; zero
// uses a default.
func NewWindowCache(size int) (*WindowCache, error) {
	if size <= 0 {
		size = DefaultWindowCacheSize
	}
	entries, err := lru.New[string, []model.VisibilityWindow](size)
	if err != nil {
		return nil, err
	}
	return &WindowCache{entries: entries}, nil
}

// WindowKey identifies one window computation.
func WindowKey(orbit model.OrbitState, subject model.GroundSubject, f WindowFinder, start, end time.Time) string {
	return fmt.Sprintf("%.9g|%.9g|%.9g|%.9g|%.9g|%.9g|%d|%s|%.9g|%.9g|%.9g|%.6g|%d|%d|%d|%d|%d",
		orbit.SemiMajorAxisKm, orbit.Eccentricity, orbit.InclinationRad, orbit.RAANRad,
		orbit.ArgPeriapsisRad, orbit.TrueAnomalyRad, orbit.Epoch.UnixNano(),
		subject.ID, subject.LatitudeDeg, subject.LongitudeDeg, subject.AltitudeKm, subject.MinElevationDeg,
		f.Step, f.Tolerance, f.MaxBisections, start.UnixNano(), end.UnixNano())
}

// Get returns a copy of the cached windows for key.
func (c *WindowCache) Get(key string) ([]model.VisibilityWindow, bool) {
	if c == nil || key == "" {
		return nil, false
	}
	windows, ok := c.entries.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return cloneWindows(windows), true
}

// Add stores a copy of windows under key.
func (c *WindowCache) Add(key string, windows []model.VisibilityWindow) {
	if c == nil || key == "" {
		return
	}
	c.entries.Add(key, cloneWindows(windows))
}

// Purge drops every entry.
func (c *WindowCache) Purge() {
	if c == nil {
		return
	}
	c.entries.Purge()
}

// Len returns the number of cached entries.
func (c *WindowCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

// Stats returns hit and miss counts.
func (c *WindowCache) Stats() (hits, misses int64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}

func cloneWindows(src []model.VisibilityWindow) []model.VisibilityWindow {
	if src == nil {
		return nil
	}
	clone := make([]model.VisibilityWindow, len(src))
	for i, w := range src {
		w.Profile = append([]model.ElevationSample(nil), w.Profile...)
		clone[i] = w
	}
	return clone
}

// CachedFindAll is FindAll through an optional cache keyed on the Kepler
// state. Subjects already cached are not re-sampled.
func CachedFindAll(c *WindowCache, f WindowFinder, orbit model.OrbitState, eph Ephemeris, subjects []model.GroundSubject, start, end time.Time) (map[string][]model.VisibilityWindow, error) {
	out := make(map[string][]model.VisibilityWindow, len(subjects))
	var missing []model.GroundSubject
	for _, s := range subjects {
		if w, ok := c.Get(WindowKey(orbit, s, f, start, end)); ok {
			out[s.ID] = w
			continue
		}
		missing = append(missing, s)
	}
	if len(missing) == 0 {
		return out, nil
	}
	found, err := f.FindAll(eph, missing, start, end)
	if err != nil {
		return nil, err
	}
	for _, s := range missing {
		out[s.ID] = found[s.ID]
		c.Add(WindowKey(orbit, s, f, start, end), found[s.ID])
	}
	return out, nil
}
