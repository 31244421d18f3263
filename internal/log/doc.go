// Package log provides the structured logger used by lensfind, built on
// top of the standard slog package.
//
// This package wraps slog to provide:
//   - Readable numbers: float attributes are rounded to a fixed precision
//     so pixel coordinates and fluxes do not print seventeen digits
//   - Angles in degrees: unit.Angle attributes are logged in degrees
//   - Home directory shortening: paths under the user's home directory
//     are logged relative to "~"
//   - Verbose and quiet levels shared by every command
//
// # Usage
//
//	// Create a text logger on stderr
//	logger := log.NewLogger(os.Stderr, true) // verbose=true
//
//	logger.Info("search finished",
//	    "x", 200.000000001,                  // x=200
//	    "minSpan", unit.AngleFromDeg(30),    // minSpan=30
//	    "path", "/home/me/data/field.csv",   // path=~/data/field.csv
//	)
//
//	// Set as default logger
//	slog.SetDefault(logger)
//
// NewJSONLogger produces the same records as JSON lines for log
// aggregation.
package log
