package synth

import (
	"math"
	"math/rand"

	"github.com/soniakeys/unit"

	"github.com/nao1215/lensfind/internal/lensing"
)

// Generator produces source groups. Returned sources have ID 0; Scene
// assigns IDs.
type Generator struct {
	rng *rand.Rand
}

// New returns a Generator seeded with seed.
func New(seed int64) *Generator {
	return &Generator{rng: rngFromSeed(seed)}
}

// Cross returns four sources on a cross of the given radius around
// (cx, cy), rotated by a random angle. jitter is a fraction: positions
// move by up to jitter*radius on each axis and fluxes by up to jitter*flux.
func (g *Generator) Cross(cx, cy, radius, flux, jitter float64) []lensing.PointSource {
	rot := unit.Angle(g.rng.Float64() * 2 * math.Pi)
	out := make([]lensing.PointSource, 0, 4)
	for i := range 4 {
		a := rot + unit.AngleFromDeg(float64(i)*90)
		out = append(out, lensing.PointSource{
			X:    cx + radius*math.Cos(a.Rad()) + jitter*radius*(2*g.rng.Float64()-1),
			Y:    cy + radius*math.Sin(a.Rad()) + jitter*radius*(2*g.rng.Float64()-1),
			Flux: spread(g.rng, flux, jitter),
		})
	}
	return out
}

// Arc returns n sources spaced evenly over span, starting at start, at
// the given radius around (cx, cy). radialJitter scales both the radius
// and the flux of each source by up to that fraction.
func (g *Generator) Arc(cx, cy, radius float64, start, span unit.Angle, n int, flux, radialJitter float64) []lensing.PointSource {
	out := make([]lensing.PointSource, 0, n)
	for i := range n {
		a := start
		if n > 1 {
			a += span * unit.Angle(float64(i)/float64(n-1))
		}
		r := spread(g.rng, radius, radialJitter)
		out = append(out, lensing.PointSource{
			X:    cx + r*math.Cos(a.Rad()),
			Y:    cy + r*math.Sin(a.Rad()),
			Flux: spread(g.rng, flux, radialJitter),
		})
	}
	return out
}

// Field returns n sources placed uniformly over dims with flux uniform in
// [minFlux, maxFlux).
func (g *Generator) Field(n int, dims lensing.Dimensions, minFlux, maxFlux float64) []lensing.PointSource {
	out := make([]lensing.PointSource, 0, n)
	for range n {
		out = append(out, lensing.PointSource{
			X:    g.rng.Float64() * dims.Width,
			Y:    g.rng.Float64() * dims.Height,
			Flux: minFlux + g.rng.Float64()*(maxFlux-minFlux),
		})
	}
	return out
}

// Angle returns a uniformly random angle in [0, 2π).
func (g *Generator) Angle() unit.Angle {
	return unit.Angle(g.rng.Float64() * 2 * math.Pi)
}
