package kb

import (
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/mission-planner/model"
)

// Catalog is an in-memory, thread-safe store of ground targets and stations.
type Catalog struct {
	mu       sync.RWMutex
	subjects map[string]model.GroundSubject
}

// NewCatalog constructs an empty catalogue.
func NewCatalog() *Catalog {
	return &Catalog{subjects: make(map[string]model.GroundSubject)}
}

// Add stores a subject. It returns an error if the ID already exists or the
// location is not a valid latitude/longitude.
func (c *Catalog) Add(s model.GroundSubject) error {
	if s.ID == "" {
		return fmt.Errorf("subject has empty ID")
	}
	if s.LatitudeDeg < -90 || s.LatitudeDeg > 90 {
		return fmt.Errorf("subject %q latitude %v out of range", s.ID, s.LatitudeDeg)
	}
	if s.LongitudeDeg < -180 || s.LongitudeDeg > 360 {
		return fmt.Errorf("subject %q longitude %v out of range", s.ID, s.LongitudeDeg)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.subjects[s.ID]; exists {
		return fmt.Errorf("subject with ID %q already exists", s.ID)
	}
	c.subjects[s.ID] = s
	return nil
}

// Remove deletes a subject by ID.
func (c *Catalog) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subjects[id]; !ok {
		return fmt.Errorf("subject with ID %q not found", id)
	}
	delete(c.subjects, id)
	return nil
}

// Get returns the subject with the given ID.
func (c *Catalog) Get(id string) (model.GroundSubject, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.subjects[id]
	return s, ok
}

// List returns a snapshot of all subjects sorted by ID.
func (c *Catalog) List() []model.GroundSubject {
	c.mu.RLock()
	defer c.mu.RUnlock()

	res := make([]model.GroundSubject, 0, len(c.subjects))
	for _, s := range c.subjects {
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Targets returns the observation targets sorted by ID.
func (c *Catalog) Targets() []model.GroundSubject { return c.ofKind(model.SubjectTarget) }

// Stations returns the downlink stations sorted by ID.
func (c *Catalog) Stations() []model.GroundSubject { return c.ofKind(model.SubjectStation) }

func (c *Catalog) ofKind(k model.SubjectKind) []model.GroundSubject {
	var out []model.GroundSubject
	for _, s := range c.List() {
		if s.Kind == k {
			out = append(out, s)
		}
	}
	return out
}
