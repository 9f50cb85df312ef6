package aircraft

import (
	"math"
	"math/rand/v2"

	"github.com/signalsfoundry/mission-planner/model"
)

// WindField returns the horizontal wind vector (m/s) at a planar position.
// The field is stationary: it does not vary over the duration of a flight.
type WindField interface {
	At(p model.Vec2) model.Vec2
}

// UniformWind is the same vector everywhere.
type UniformWind struct {
	V model.Vec2
}

func (w UniformWind) At(model.Vec2) model.Vec2 { return w.V }

// SpatialWind adds a bounded sinusoidal variation to a base vector, so legs
// through different regions see slightly different wind.
type SpatialWind struct {
	Base      model.Vec2
	Amplitude float64 // m/s
	Scale     float64 // m, spatial wavelength / 2π
}

func (w SpatialWind) At(p model.Vec2) model.Vec2 {
	scale := w.Scale
	if scale == 0 {
		scale = 1000
	}
	return model.Vec2{
		X: w.Base.X + w.Amplitude*math.Sin(p.X/scale),
		Y: w.Base.Y + w.Amplitude*math.Cos(p.Y/scale),
	}
}

// Gaussian describes independent per-axis normal distributions.
type Gaussian struct {
	Mean model.Vec2
	Std  model.Vec2
}

// Sample draws one wind vector from g using the caller's generator.
func (g Gaussian) Sample(rng *rand.Rand) model.Vec2 {
	return model.Vec2{
		X: g.Mean.X + g.Std.X*rng.NormFloat64(),
		Y: g.Mean.Y + g.Std.Y*rng.NormFloat64(),
	}
}
