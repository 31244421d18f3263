package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRecord indicates a source record that cannot be used.
	ErrMalformedRecord = errors.New("catalog: malformed record")
	// ErrUnsupportedFormat indicates a file extension Load does not know.
	ErrUnsupportedFormat = errors.New("catalog: unsupported file format")
	// ErrMissingColumn indicates a CSV header without a required column.
	ErrMissingColumn = errors.New("catalog: missing required column")
	// ErrNoImageDimensions indicates that an image carries neither EXIF
	// pixel dimensions nor a decodable header.
	ErrNoImageDimensions = errors.New("catalog: cannot determine image dimensions")
)

// RecordError describes a rejected source record.
type RecordError struct {
	// Line is the 1-based line in a CSV file, or the 1-based index of the
	// source in a JSON file.
	Line int
	// Field is the offending column, if known.
	Field string
	Err   error
}

// Error implements error.
func (e *RecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("catalog: record %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("catalog: record %d: %s: %v", e.Line, e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *RecordError) Unwrap() error {
	return e.Err
}

// Is makes every RecordError match ErrMalformedRecord.
func (e *RecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}
