package lensing

import (
	"cmp"
	"math"
	"slices"
)

// byFluxDesc orders sources brightest first; ties keep catalog order.
func byFluxDesc(sources []PointSource) []PointSource {
	ordered := slices.Clone(sources)
	slices.SortStableFunc(ordered, func(a, b PointSource) int {
		return cmp.Compare(b.Flux, a.Flux)
	})
	return ordered
}

// selectCentral picks the central object from flux-ordered sources and
// returns it with its index in ordered.
func selectCentral(ordered []PointSource, dims Dimensions, fraction float64) (int, Central) {
	cx, cy := dims.Center()
	radius := dims.Width * fraction

	for i, s := range ordered {
		d := math.Hypot(s.X-cx, s.Y-cy)
		if d < radius {
			return i, Central{Source: s, InRegion: true, CenterDistance: d}
		}
	}

	s := ordered[0]
	return 0, Central{
		Source:         s,
		InRegion:       false,
		CenterDistance: math.Hypot(s.X-cx, s.Y-cy),
	}
}

// SelectCentral returns the central object candidate of a catalog: the
// brightest source within Width*opts.CentralRadiusFraction of the image
// centre, or the brightest source overall when none is that close.
//
// It applies the same validation as Detect.
func SelectCentral(sources []PointSource, dims Dimensions, opts Options) (Central, error) {
	if _, err := validateInput(sources, dims, opts); err != nil {
		return Central{}, err
	}
	_, c := selectCentral(byFluxDesc(sources), dims, opts.CentralRadiusFraction)
	return c, nil
}
