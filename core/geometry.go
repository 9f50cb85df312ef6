package core

import (
	"math"
	"sort"

	"github.com/signalsfoundry/mission-planner/model"
)

const geomEpsilon = 1e-9

// SegmentIntersection returns the parameters t (along p1→p2) at which the
// segment p1p2 touches segment p3p4. Collinear overlaps return both ends of
// the shared piece. An empty result means the segments are disjoint.
func SegmentIntersection(p1, p2, p3, p4 model.Vec2) []float64 {
	d := p2.Sub(p1)
	e := p4.Sub(p3)
	denom := d.Cross(e)
	w := p3.Sub(p1)

	if math.Abs(denom) < geomEpsilon {
		// Parallel. Only collinear segments can touch.
		if math.Abs(w.Cross(d)) > geomEpsilon*math.Max(1, d.Norm()) {
			return nil
		}
		dd := d.Dot(d)
		if dd == 0 {
			return nil
		}
		t0 := w.Dot(d) / dd
		t1 := p4.Sub(p1).Dot(d) / dd
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		lo, hi := math.Max(0, t0), math.Min(1, t1)
		if lo > hi+geomEpsilon {
			return nil
		}
		if hi-lo < geomEpsilon {
			return []float64{lo}
		}
		return []float64{lo, hi}
	}

	t := w.Cross(e) / denom
	u := w.Cross(d) / denom
	if t < -geomEpsilon || t > 1+geomEpsilon || u < -geomEpsilon || u > 1+geomEpsilon {
		return nil
	}
	return []float64{clamp01(t)}
}

// PointInPolygon checks whether p is strictly inside the closed polygon. The
// last vertex must not repeat the first; the closing edge is implied.
func PointInPolygon(p model.Vec2, pts []model.Vec2) bool {
	inside := false
	for i := 0; i < len(pts); i++ {
		p0, p1 := pts[i], pts[(i+1)%len(pts)]
		if (p0.Y <= p.Y && p.Y < p1.Y) || (p1.Y <= p.Y && p.Y < p0.Y) {
			x := p0.X + (p.Y-p0.Y)*(p1.X-p0.X)/(p1.Y-p0.Y)
			if x > p.X {
				inside = !inside
			}
		}
	}
	return inside
}

// SegmentPolygonOverlap returns the length of segment ab lying inside the
// polygon and whether the segment touches the polygon at all (crossing,
// grazing a vertex, or running along an edge counts as touching).
func SegmentPolygonOverlap(a, b model.Vec2, poly []model.Vec2) (float64, bool) {
	if len(poly) < 3 {
		return 0, false
	}
	ts := []float64{0, 1}
	touched := false
	for i := range poly {
		hits := SegmentIntersection(a, b, poly[i], poly[(i+1)%len(poly)])
		if len(hits) > 0 {
			touched = true
			ts = append(ts, hits...)
		}
	}
	sort.Float64s(ts)

	length := a.DistanceTo(b)
	var inside float64
	for i := 0; i+1 < len(ts); i++ {
		t0, t1 := ts[i], ts[i+1]
		if t1-t0 < geomEpsilon {
			continue
		}
		mid := a.Add(b.Sub(a).Scale((t0 + t1) / 2))
		if PointInPolygon(mid, poly) {
			inside += (t1 - t0) * length
			touched = true
		}
	}
	return inside, touched
}

// SegmentClearsSphere checks whether the straight segment between p1 and p2
// stays outside the sphere of the given radius centred on the origin.
func SegmentClearsSphere(p1, p2 model.Vec3, radius float64) bool {
	v := p2.Sub(p1)
	a := v.Dot(v)
	if a == 0 {
		return p1.Dot(p1) > radius*radius
	}

	// t minimises |p1 + t v|^2.
	t := clamp01(-p1.Dot(v) / a)
	closest := p1.Add(v.Scale(t))
	return closest.Dot(closest) > radius*radius
}

// ElevationDegrees returns the elevation angle of the target as seen from
// the observer, in degrees, taking the observer's position vector as local
// zenith. 0° = geometric horizon, 90° = overhead.
func ElevationDegrees(observer, target model.Vec3) float64 {
	v := target.Sub(observer)
	vNorm := v.Norm()
	if vNorm == 0 {
		return 90
	}
	r := observer.Norm()
	if r == 0 {
		return 90
	}
	zenith := observer.Scale(1 / r)

	cosGamma := v.Dot(zenith) / vNorm
	cosGamma = math.Max(-1, math.Min(1, cosGamma))
	return 90.0 - math.Acos(cosGamma)*180.0/math.Pi
}

// AngleBetween returns the angle between two vectors in radians.
func AngleBetween(a, b model.Vec3) float64 {
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 0
	}
	c := a.Dot(b) / (na * nb)
	return math.Acos(math.Max(-1, math.Min(1, c)))
}

// WrapAngle maps an angle in radians into (-π, π].
func WrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
