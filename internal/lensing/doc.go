// Package lensing detects strong-lensing morphologies in a catalog of point
// sources extracted from a single image.
//
// Given the detected sources (position and flux) and the image dimensions,
// Detect selects a central object (the putative lensing mass) and runs two
// independent exhaustive searches around it:
//
//   - Multi-image ("Einstein Cross"): groups of four sources with similar
//     flux, tightly clustered, whose centroid lies close to the central object.
//   - Arc: groups of five sources at a common radius from the central object
//     whose position angles span a wide arc.
//
// # Central object
//
// Sources are ordered by descending flux (ties keep catalog order). The first
// source closer to the image centre than Width*CentralRadiusFraction is the
// central object; when none qualifies, the brightest source is used. The
// radius is linear, not an area fraction.
//
// # Complexity
//
// Both searches enumerate every k-subset of the non-central sources, so their
// cost is C(n-1, 4) and C(n-1, 5) respectively. The multi-image search drops
// sources that cannot belong to any accepted group before enumerating, which
// reduces the effective n without changing the result. The arc search has no
// such bound. Options.MaxCombinations can cap either search; a capped search
// reports SearchSkipped instead of running.
//
// # Errors
//
// Detect always returns a non-nil *Result. Fatal conditions are reported both
// as Result.Status and as a sentinel error:
//
//   - ErrNoSources: the catalog is empty.
//   - ErrInvalidDimensions: width or height is not a positive finite number.
//   - ErrInvalidSource: a source has non-finite coordinates, a negative or
//     non-finite flux, or a duplicate ID.
//   - ErrInvalidOptions: thresholds or group sizes are out of range.
//
// A catalog that is too small for one of the searches is not an error: that
// search reports SearchInsufficientSources and an empty candidate list.
//
// The package performs no I/O and keeps no state between calls; it is safe
// to call Detect concurrently on different catalogs.
package lensing
