package lensing

import "errors"

var (
	// ErrNoSources indicates an empty catalog.
	ErrNoSources = errors.New("lensing: no sources detected")
	// ErrInvalidDimensions indicates a non-positive or non-finite image size.
	ErrInvalidDimensions = errors.New("lensing: image width and height must be positive and finite")
	// ErrInvalidSource indicates a source with non-finite coordinates,
	// a negative or non-finite flux, or a duplicate ID.
	ErrInvalidSource = errors.New("lensing: malformed source record")
	// ErrInvalidOptions indicates out-of-range detector thresholds.
	ErrInvalidOptions = errors.New("lensing: invalid detector options")
)

