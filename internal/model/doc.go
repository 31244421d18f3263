// Package model defines the data structures shared by the pipeline, the
// report writers and the run database.
//
// This package contains the following main types:
//   - AnalysisReport: everything known about one analysed catalog
//   - Verdict: which lensing morphologies were found
//   - Summary: a condensed, human-readable view of an AnalysisReport
//
// The detector's own result types live in package lensing; AnalysisReport
// embeds them so that reports and stored runs carry the full search
// outcome. All types serialise to JSON for report output and storage.
package model
