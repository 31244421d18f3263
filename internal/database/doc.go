// Package database provides SQLite-based storage for lensfind runs.
//
// This package implements the RunDB, which stores:
//   - Catalog records: every catalog that has been analysed
//   - Runs: complete analysis reports for historical comparison
//   - Candidates: accepted source groups, queryable across runs
//
// SQLite is accessed through modernc.org/sqlite, a CGO-free driver, so the
// database is a single file and the binary cross-compiles cleanly.
package database
