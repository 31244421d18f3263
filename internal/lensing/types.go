package lensing

import (
	"math"

	"github.com/soniakeys/unit"
)

// PointSource is one detected object in an image.
// Coordinates are sub-pixel centroids in image-plane units.
type PointSource struct {
	ID   int     `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Flux float64 `json:"flux"`
}

// DistanceTo returns the Euclidean distance between s and o.
func (s PointSource) DistanceTo(o PointSource) float64 {
	return math.Hypot(s.X-o.X, s.Y-o.Y)
}

// Dimensions are the width and height of the image the catalog was
// extracted from. They are only used to locate the central region.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the image centre (W/2, H/2).
func (d Dimensions) Center() (x, y float64) {
	return d.Width / 2, d.Height / 2
}

// Valid reports whether both dimensions are positive and finite.
func (d Dimensions) Valid() bool {
	return d.Width > 0 && d.Height > 0 &&
		!math.IsInf(d.Width, 0) && !math.IsInf(d.Height, 0)
}

// PatternKind names the morphology a SourceGroup was accepted as.
type PatternKind string

const (
	// PatternMultiImage is a tight cluster of similar-flux images ("Einstein Cross").
	PatternMultiImage PatternKind = "multi_image"
	// PatternArc is a set of sources at a common radius spanning a wide angle.
	PatternArc PatternKind = "arc"
)

// Status is the overall outcome of one Detect call.
type Status int

const (
	// StatusNotRun is the zero value: Detect has produced no result yet.
	// Detect itself never returns it.
	StatusNotRun Status = iota
	// StatusOK means both searches ran (or were legitimately empty).
	StatusOK
	// StatusNoSources means the catalog was empty; no search ran.
	StatusNoSources
	// StatusInvalidDimensions means width or height was unusable.
	StatusInvalidDimensions
	// StatusInvalidSource means at least one source record was malformed.
	StatusInvalidSource
	// StatusInvalidOptions means the detector options were out of range.
	StatusInvalidOptions
)

// String returns a stable, human-readable name.
func (s Status) String() string {
	switch s {
	case StatusNotRun:
		return "not_run"
	case StatusOK:
		return "ok"
	case StatusNoSources:
		return "no_sources"
	case StatusInvalidDimensions:
		return "invalid_dimensions"
	case StatusInvalidSource:
		return "invalid_source"
	case StatusInvalidOptions:
		return "invalid_options"
	default:
		return "unknown"
	}
}

// SearchStatus is the outcome of one sub-search.
type SearchStatus int

const (
	// SearchNotRun means the search never started because Detect failed earlier.
	SearchNotRun SearchStatus = iota
	// SearchCompleted means every candidate group was evaluated.
	SearchCompleted
	// SearchInsufficientSources means there were fewer non-central sources
	// than the group size. The result is empty; this is not an error.
	SearchInsufficientSources
	// SearchSkipped means the number of groups exceeded Options.MaxCombinations.
	SearchSkipped
)

// String returns a stable, human-readable name.
func (s SearchStatus) String() string {
	switch s {
	case SearchNotRun:
		return "not_run"
	case SearchCompleted:
		return "completed"
	case SearchInsufficientSources:
		return "insufficient_sources"
	case SearchSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Options holds the detector thresholds.
// The zero value is not usable; start from DefaultOptions.
type Options struct {
	// CentralRadiusFraction scales the image width into the radius of the
	// central region (0.25 ⇒ W/4).
	CentralRadiusFraction float64 `json:"central_radius_fraction" yaml:"centralRadiusFraction"`

	// MultiImageSize is the number of sources per multi-image group.
	MultiImageSize int `json:"multi_image_size" yaml:"multiImageSize"`
	// MaxFluxRatio bounds max(flux)/min(flux) inside a multi-image group (strict).
	MaxFluxRatio float64 `json:"max_flux_ratio" yaml:"maxFluxRatio"`
	// MaxSeparation bounds the largest pairwise distance in a group (strict, pixels).
	MaxSeparation float64 `json:"max_separation" yaml:"maxSeparation"`
	// MaxCentroidOffset bounds the centroid-to-central distance (strict, pixels).
	MaxCentroidOffset float64 `json:"max_centroid_offset" yaml:"maxCentroidOffset"`

	// ArcSize is the number of sources per arc group.
	ArcSize int `json:"arc_size" yaml:"arcSize"`
	// MaxRadialCV bounds std/mean of member radii (strict).
	MaxRadialCV float64 `json:"max_radial_cv" yaml:"maxRadialCV"`
	// MinAngularSpan is the span the unwrapped member angles must exceed.
	MinAngularSpan unit.Angle `json:"min_angular_span_rad" yaml:"-"`

	// MaxCombinations caps the number of groups a single search may evaluate.
	// 0 means unlimited.
	MaxCombinations uint64 `json:"max_combinations,omitempty" yaml:"maxCombinations,omitempty"`
}

// DefaultOptions returns the standard detector thresholds.
func DefaultOptions() Options {
	return Options{
		CentralRadiusFraction: 0.25,
		MultiImageSize:        4,
		MaxFluxRatio:          1.5,
		MaxSeparation:         100,
		MaxCentroidOffset:     50,
		ArcSize:               5,
		MaxRadialCV:           0.15,
		MinAngularSpan:        unit.AngleFromDeg(30),
	}
}

// Central is the source treated as the lensing mass.
type Central struct {
	Source PointSource `json:"source"`
	// InRegion is false when no source lay inside the central region and
	// the brightest source overall was used instead.
	InRegion bool `json:"in_region"`
	// CenterDistance is the distance from the image centre.
	CenterDistance float64 `json:"center_distance"`
}

// SourceGroup is one accepted group together with the quantities that
// decided its acceptance. Only the fields of its Kind are populated.
type SourceGroup struct {
	Kind    PatternKind   `json:"kind"`
	Members []PointSource `json:"members"`

	FluxRatio      float64 `json:"flux_ratio,omitempty"`
	MaxSeparation  float64 `json:"max_separation,omitempty"`
	CentroidOffset float64 `json:"centroid_offset,omitempty"`

	MeanRadius  float64    `json:"mean_radius,omitempty"`
	RadialCV    float64    `json:"radial_cv,omitempty"`
	AngularSpan unit.Angle `json:"angular_span_rad,omitempty"`
}

// IDs returns the member IDs in group order.
func (g SourceGroup) IDs() []int {
	ids := make([]int, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.ID
	}
	return ids
}

// SearchOutcome is the result of one sub-search.
type SearchOutcome struct {
	Status SearchStatus `json:"status"`
	// GroupSize is the subset size that was searched.
	GroupSize int `json:"group_size"`
	// Pool is the number of sources the subsets were drawn from.
	Pool int `json:"pool"`
	// Evaluated is the number of subsets tested.
	Evaluated uint64 `json:"evaluated"`
	// Candidates are the accepted groups in enumeration order.
	Candidates []SourceGroup `json:"candidates"`
}

// Count returns the number of accepted groups.
func (o SearchOutcome) Count() int {
	return len(o.Candidates)
}

// Result is the outcome of Detect. It is always non-nil.
type Result struct {
	Status Status `json:"status"`
	// SourceCount is the number of sources in the input catalog.
	SourceCount int `json:"source_count"`
	// Central is nil when Status is not StatusOK.
	Central *Central `json:"central,omitempty"`

	MultiImage SearchOutcome `json:"multi_image"`
	Arc        SearchOutcome `json:"arc"`
}

// HasPatterns reports whether either search accepted at least one group.
func (r *Result) HasPatterns() bool {
	return r.MultiImage.Count() > 0 || r.Arc.Count() > 0
}
