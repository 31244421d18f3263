package synth

import (
	"github.com/soniakeys/unit"

	"github.com/nao1215/lensfind/internal/lensing"
)

// Pattern selects the lensing morphologies planted in a scene.
type Pattern string

const (
	// PatternNone plants only the lens and the background.
	PatternNone Pattern = "none"
	// PatternCross plants a four-image cross around the lens.
	PatternCross Pattern = "cross"
	// PatternArc plants an arc around the lens.
	PatternArc Pattern = "arc"
	// PatternBoth plants a cross and an arc at different radii.
	PatternBoth Pattern = "both"
)

// Patterns lists every valid Pattern.
func Patterns() []Pattern {
	return []Pattern{PatternNone, PatternCross, PatternArc, PatternBoth}
}

// Valid reports whether p is a known pattern.
func (p Pattern) Valid() bool {
	switch p {
	case PatternNone, PatternCross, PatternArc, PatternBoth:
		return true
	}
	return false
}

// Scene describes a synthetic image: a bright lens at the image centre,
// the planted patterns and a dim background.
type Scene struct {
	dims    lensing.Dimensions
	seed    int64
	pattern Pattern

	lensFlux float64
	noise    float64

	crossRadius float64
	crossFlux   float64

	arcRadius float64
	arcSpan   unit.Angle
	arcCount  int
	arcFlux   float64

	background    int
	backgroundMin float64
	backgroundMax float64
}

// SceneOption configures a Scene.
type SceneOption func(*Scene)

// WithSeed sets the random seed. 0 selects a fixed default.
func WithSeed(seed int64) SceneOption {
	return func(s *Scene) {
		s.seed = seed
	}
}

// WithPattern selects the planted patterns.
func WithPattern(p Pattern) SceneOption {
	return func(s *Scene) {
		s.pattern = p
	}
}

// WithNoise sets the relative jitter applied to planted positions, radii
// and fluxes.
func WithNoise(frac float64) SceneOption {
	return func(s *Scene) {
		s.noise = frac
	}
}

// WithLensFlux sets the flux of the central lens.
func WithLensFlux(flux float64) SceneOption {
	return func(s *Scene) {
		s.lensFlux = flux
	}
}

// WithCross sets the radius and flux of the planted cross.
func WithCross(radius, flux float64) SceneOption {
	return func(s *Scene) {
		s.crossRadius = radius
		s.crossFlux = flux
	}
}

// WithArc sets the radius, angular span, size and flux of the planted arc.
func WithArc(radius float64, span unit.Angle, n int, flux float64) SceneOption {
	return func(s *Scene) {
		s.arcRadius = radius
		s.arcSpan = span
		s.arcCount = n
		s.arcFlux = flux
	}
}

// WithBackground adds n background sources with flux in [minFlux, maxFlux).
func WithBackground(n int, minFlux, maxFlux float64) SceneOption {
	return func(s *Scene) {
		s.background = n
		s.backgroundMin = minFlux
		s.backgroundMax = maxFlux
	}
}

// NewScene returns a scene for an image of the given size. Without options
// it plants a cross at W/10 and a five-source arc at W/5 spanning 120°
// around a lens of flux 1000, with no background.
func NewScene(dims lensing.Dimensions, opts ...SceneOption) *Scene {
	s := &Scene{
		dims:          dims,
		pattern:       PatternBoth,
		lensFlux:      1000,
		noise:         0.02,
		crossRadius:   dims.Width / 10,
		crossFlux:     100,
		arcRadius:     dims.Width / 5,
		arcSpan:       unit.AngleFromDeg(120),
		arcCount:      5,
		arcFlux:       40,
		backgroundMin: 5,
		backgroundMax: 30,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Build generates the sources. The lens has ID 1; the remaining sources
// are numbered sequentially in the order lens, cross, arc, background.
func (s *Scene) Build() []lensing.PointSource {
	g := New(s.seed)
	cx, cy := s.dims.Center()

	out := []lensing.PointSource{{X: cx, Y: cy, Flux: s.lensFlux}}
	if s.pattern == PatternCross || s.pattern == PatternBoth {
		out = append(out, g.Cross(cx, cy, s.crossRadius, s.crossFlux, s.noise)...)
	}
	if s.pattern == PatternArc || s.pattern == PatternBoth {
		out = append(out, g.Arc(cx, cy, s.arcRadius, g.Angle(), s.arcSpan, s.arcCount, s.arcFlux, s.noise)...)
	}
	out = append(out, g.Field(s.background, s.dims, s.backgroundMin, s.backgroundMax)...)

	for i := range out {
		out[i].ID = i + 1
	}
	return out
}
