package lensing

import (
	"fmt"
	"math"
)

// finite reports whether v is neither NaN nor ±Inf.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// validateOptions checks thresholds and group sizes.
func validateOptions(opts Options) error {
	switch {
	case !finite(opts.CentralRadiusFraction) || opts.CentralRadiusFraction <= 0:
		return fmt.Errorf("%w: central radius fraction %v", ErrInvalidOptions, opts.CentralRadiusFraction)
	case opts.MultiImageSize < 2:
		return fmt.Errorf("%w: multi-image group size %d", ErrInvalidOptions, opts.MultiImageSize)
	case opts.ArcSize < 2:
		return fmt.Errorf("%w: arc group size %d", ErrInvalidOptions, opts.ArcSize)
	case !finite(opts.MaxFluxRatio) || opts.MaxFluxRatio <= 0:
		return fmt.Errorf("%w: max flux ratio %v", ErrInvalidOptions, opts.MaxFluxRatio)
	case !finite(opts.MaxSeparation) || opts.MaxSeparation <= 0:
		return fmt.Errorf("%w: max separation %v", ErrInvalidOptions, opts.MaxSeparation)
	case !finite(opts.MaxCentroidOffset) || opts.MaxCentroidOffset <= 0:
		return fmt.Errorf("%w: max centroid offset %v", ErrInvalidOptions, opts.MaxCentroidOffset)
	case !finite(opts.MaxRadialCV) || opts.MaxRadialCV <= 0:
		return fmt.Errorf("%w: max radial CV %v", ErrInvalidOptions, opts.MaxRadialCV)
	case !finite(opts.MinAngularSpan.Rad()) || opts.MinAngularSpan < 0:
		return fmt.Errorf("%w: min angular span %v", ErrInvalidOptions, opts.MinAngularSpan)
	}
	return nil
}

// validateSources rejects records a source extractor should never emit.
func validateSources(sources []PointSource) error {
	seen := make(map[int]struct{}, len(sources))
	for i, s := range sources {
		if !finite(s.X) || !finite(s.Y) {
			return fmt.Errorf("%w: source %d (id %d) has non-finite coordinates", ErrInvalidSource, i, s.ID)
		}
		if !finite(s.Flux) || s.Flux < 0 {
			return fmt.Errorf("%w: source %d (id %d) has flux %v", ErrInvalidSource, i, s.ID, s.Flux)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: duplicate id %d", ErrInvalidSource, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

// validateInput runs every check in the order Detect reports them and
// returns the matching status.
func validateInput(sources []PointSource, dims Dimensions, opts Options) (Status, error) {
	if err := validateOptions(opts); err != nil {
		return StatusInvalidOptions, err
	}
	if !dims.Valid() {
		return StatusInvalidDimensions, fmt.Errorf("%w: got %vx%v", ErrInvalidDimensions, dims.Width, dims.Height)
	}
	if len(sources) == 0 {
		return StatusNoSources, ErrNoSources
	}
	if err := validateSources(sources); err != nil {
		return StatusInvalidSource, err
	}
	return StatusOK, nil
}

// Validate reports whether the thresholds and group sizes are usable.
// The returned error wraps ErrInvalidOptions.
func (o Options) Validate() error {
	return validateOptions(o)
}
