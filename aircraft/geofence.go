package aircraft

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/mission-planner/core"
	"github.com/signalsfoundry/mission-planner/model"
)

// minIntrusionM is reported for legs that touch a zone boundary without
// entering it.
const minIntrusionM = 1.0

// Intrusion is one leg/zone conflict.
type Intrusion struct {
	ZoneID  string
	InsideM float64 // length of the leg inside the zone, at least minIntrusionM
}

// LegIntrusions lists the zones the straight segment a→b enters or touches.
func LegIntrusions(a, b model.Vec2, zones []model.NoFlyZone) []Intrusion {
	var out []Intrusion
	for _, z := range zones {
		inside, touched := core.SegmentPolygonOverlap(a, b, z.Vertices)
		if !touched {
			continue
		}
		out = append(out, Intrusion{ZoneID: z.ID, InsideM: math.Max(inside, minIntrusionM)})
	}
	return out
}

// ValidateZones rejects degenerate polygons.
func ValidateZones(zones []model.NoFlyZone) error {
	seen := make(map[string]struct{}, len(zones))
	for i, z := range zones {
		field := fmt.Sprintf("aircraft.no_fly_zones[%d]", i)
		if z.ID == "" {
			return core.InvalidConfig(field+".id", "must not be empty")
		}
		if _, dup := seen[z.ID]; dup {
			return core.InvalidConfig(field+".id", "duplicate zone %q", z.ID)
		}
		seen[z.ID] = struct{}{}
		if len(z.Vertices) < 3 {
			return core.InvalidConfig(field+".vertices", "polygon needs at least 3 vertices, got %d", len(z.Vertices))
		}
		if polygonArea(z.Vertices) == 0 {
			return core.InvalidConfig(field+".vertices", "polygon has zero area")
		}
	}
	return nil
}

func polygonArea(pts []model.Vec2) float64 {
	var a float64
	for i := range pts {
		a += pts[i].Cross(pts[(i+1)%len(pts)])
	}
	return math.Abs(a) / 2
}

// RectZone builds an axis-aligned rectangular zone from two opposite corners.
func RectZone(id string, lo, hi model.Vec2) model.NoFlyZone {
	return model.NoFlyZone{ID: id, Vertices: []model.Vec2{
		{X: lo.X, Y: lo.Y},
		{X: hi.X, Y: lo.Y},
		{X: hi.X, Y: hi.Y},
		{X: lo.X, Y: hi.Y},
	}}
}
