package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so that callers can use
// errors.Is() while still getting human-readable messages.
var (
	// ErrNoTarget is returned when no catalog file is specified.
	ErrNoTarget = errors.New("no target specified: provide at least one catalog file")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidDimensions is returned when only one of width and height is
	// given, or when either is negative.
	ErrInvalidDimensions = errors.New("invalid image dimensions: width and height must both be positive")

	// ErrInvalidThreshold is returned when a detector threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid detector threshold")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
