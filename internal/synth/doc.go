// Package synth builds synthetic source catalogs with known lensing
// patterns. It backs the simulate command and the detector tests.
//
// All randomness comes from a seeded math/rand source: the same seed gives
// the same catalog on every platform, and seed 0 selects a fixed default.
// A Generator is not safe for concurrent use.
package synth
