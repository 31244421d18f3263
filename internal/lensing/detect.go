package lensing

import (
	"slices"

	"github.com/soniakeys/unit"
)

// reachSlack widens the multi-image pre-filter radius so that rounding in
// the distance computation can never drop a qualifying source.
const reachSlack = 1e-9

// Detect runs central-object selection followed by the multi-image and arc
// searches.
//
// The returned Result is never nil. On a fatal condition Result.Status is
// set, neither search runs, and the matching sentinel error is returned
// (possibly wrapped with detail). A search whose pool is smaller than its
// group size yields SearchInsufficientSources and no error.
//
// Inputs are not modified.
func Detect(sources []PointSource, dims Dimensions, opts Options) (*Result, error) {
	res := &Result{
		SourceCount: len(sources),
		MultiImage:  SearchOutcome{GroupSize: opts.MultiImageSize},
		Arc:         SearchOutcome{GroupSize: opts.ArcSize},
	}

	status, err := validateInput(sources, dims, opts)
	if err != nil {
		res.Status = status
		return res, err
	}

	ordered := byFluxDesc(sources)
	ci, central := selectCentral(ordered, dims, opts.CentralRadiusFraction)
	res.Central = &central

	others := make([]PointSource, 0, len(ordered)-1)
	others = append(others, ordered[:ci]...)
	others = append(others, ordered[ci+1:]...)

	res.MultiImage = searchMultiImage(central.Source, others, opts)
	res.Arc = searchArc(central.Source, others, opts)
	res.Status = StatusOK

	return res, nil
}

// budgetExceeded reports whether C(pool, k) is over the configured cap.
func budgetExceeded(pool, k int, opts Options) bool {
	return opts.MaxCombinations > 0 && Binomial(pool, k) > opts.MaxCombinations
}

// searchMultiImage enumerates MultiImageSize-subsets of others and keeps
// those with homogeneous flux, compact extent and a centroid near c.
//
// Design decision: We drop sources farther than MaxSeparation plus
// MaxCentroidOffset from c before enumerating. That bound follows from the
// two acceptance tests, so the pre-filter never removes a member of an
// accepted group and the accepted groups match an unfiltered search. A tighter
// heuristic radius would enumerate fewer subsets but could miss groups.
func searchMultiImage(c PointSource, others []PointSource, opts Options) SearchOutcome {
	k := opts.MultiImageSize
	out := SearchOutcome{GroupSize: k, Pool: len(others)}
	if len(others) < k {
		out.Status = SearchInsufficientSources
		return out
	}

	// Every member of an accepted group is within MaxSeparation of the
	// centroid, and the centroid is within MaxCentroidOffset of c.
	reach := (opts.MaxSeparation + opts.MaxCentroidOffset) * (1 + reachSlack)
	pool := make([]PointSource, 0, len(others))
	for _, s := range others {
		if s.DistanceTo(c) < reach {
			pool = append(pool, s)
		}
	}
	out.Pool = len(pool)

	if budgetExceeded(len(pool), k, opts) {
		out.Status = SearchSkipped
		return out
	}

	// Tests are written as !(x < limit) so that NaN never passes.
	group := make([]PointSource, k)
	for idx := range Combinations(len(pool), k) {
		out.Evaluated++
		for i, j := range idx {
			group[i] = pool[j]
		}

		ratio := fluxRatio(group)
		if !(ratio < opts.MaxFluxRatio) {
			continue
		}
		sep := maxPairwiseDistance(group)
		if !(sep < opts.MaxSeparation) {
			continue
		}
		gx, gy := centroid(group)
		offset := PointSource{X: gx, Y: gy}.DistanceTo(c)
		if !(offset < opts.MaxCentroidOffset) {
			continue
		}

		out.Candidates = append(out.Candidates, SourceGroup{
			Kind:           PatternMultiImage,
			Members:        slices.Clone(group),
			FluxRatio:      ratio,
			MaxSeparation:  sep,
			CentroidOffset: offset,
		})
	}
	out.Status = SearchCompleted
	return out
}

// searchArc enumerates ArcSize-subsets of others and keeps those at a
// common radius from c whose unwrapped angles span more than MinAngularSpan.
func searchArc(c PointSource, others []PointSource, opts Options) SearchOutcome {
	k := opts.ArcSize
	out := SearchOutcome{GroupSize: k, Pool: len(others)}
	if len(others) < k {
		out.Status = SearchInsufficientSources
		return out
	}
	if budgetExceeded(len(others), k, opts) {
		out.Status = SearchSkipped
		return out
	}

	// Radii and angles only depend on the source, not the group.
	radius := make([]float64, len(others))
	angle := make([]unit.Angle, len(others))
	for i, s := range others {
		radius[i] = s.DistanceTo(c)
		angle[i] = positionAngle(c, s)
	}

	r := make([]float64, k)
	a := make([]unit.Angle, k)
	for idx := range Combinations(len(others), k) {
		out.Evaluated++
		for i, j := range idx {
			r[i] = radius[j]
			a[i] = angle[j]
		}

		mean, cv := radialStats(r)
		if !(cv < opts.MaxRadialCV) {
			continue
		}
		span := AngularSpan(a)
		if !(span > opts.MinAngularSpan) {
			continue
		}

		members := make([]PointSource, k)
		for i, j := range idx {
			members[i] = others[j]
		}
		out.Candidates = append(out.Candidates, SourceGroup{
			Kind:        PatternArc,
			Members:     members,
			MeanRadius:  mean,
			RadialCV:    cv,
			AngularSpan: span,
		})
	}
	out.Status = SearchCompleted
	return out
}
