package model

import (
	"fmt"
	"time"

	"github.com/nao1215/lensfind/internal/lensing"
)

// Summary is a condensed, human-readable view of an AnalysisReport.
// It is what the text report prints and what the run database indexes.
type Summary struct {
	// CatalogName is the analysed catalog.
	CatalogName string `json:"catalog_name"`

	// DateAnalysed is when the analysis ran.
	DateAnalysed time.Time `json:"date_analysed"`

	// SourceCount is the number of sources in the catalog.
	SourceCount int `json:"source_count"`

	// === Central Object ===

	// CentralID is the ID of the selected lens, or -1 when none was selected.
	CentralID int `json:"central_id"`

	// CentralInRegion is false when the lens was taken from outside the
	// central region.
	CentralInRegion bool `json:"central_in_region"`

	// === Pattern Counts ===

	// MultiImageCount is the number of accepted multi-image groups.
	MultiImageCount int `json:"multi_image_count"`

	// ArcCount is the number of accepted arcs.
	ArcCount int `json:"arc_count"`

	// Verdict classifies the counts.
	Verdict Verdict `json:"verdict"`

	// VerdictText is Verdict in readable form.
	VerdictText string `json:"verdict_text"`

	// Findings holds one entry per search.
	Findings []Finding `json:"findings"`

	// Error contains the error message if the analysis failed.
	Error string `json:"error,omitempty"`
}

// Finding is the outcome of one search in reportable form.
type Finding struct {
	// Kind is the morphology searched for.
	Kind lensing.PatternKind `json:"kind"`

	// Status is the search status text.
	Status string `json:"status"`

	// Count is the number of accepted groups.
	Count int `json:"count"`

	// Title is a one-line statement of the outcome.
	Title string `json:"title"`

	// Description explains the outcome; empty when nothing was found.
	Description string `json:"description,omitempty"`
}

// NewSummary condenses report.
func NewSummary(report *AnalysisReport) *Summary {
	s := &Summary{
		CatalogName:     report.CatalogName,
		DateAnalysed:    report.DateAnalysed,
		SourceCount:     report.SourceCount,
		CentralID:       -1,
		MultiImageCount: report.MultiImage.Count(),
		ArcCount:        report.Arc.Count(),
		Verdict:         report.Verdict(),
		Error:           report.ErrorMessage,
	}
	s.VerdictText = s.Verdict.String()
	if report.Central != nil {
		s.CentralID = report.Central.Source.ID
		s.CentralInRegion = report.Central.InRegion
	}

	s.Findings = []Finding{
		newFinding(lensing.PatternMultiImage, report.MultiImage),
		newFinding(lensing.PatternArc, report.Arc),
	}
	return s
}

func newFinding(kind lensing.PatternKind, outcome lensing.SearchOutcome) Finding {
	info := GetPatternInfo(kind)
	f := Finding{
		Kind:   kind,
		Status: outcome.Status.String(),
		Count:  outcome.Count(),
	}
	switch {
	case f.Count > 0:
		f.Title = fmt.Sprintf("Found %d potential '%s' pattern(s).", f.Count, info.Name)
		f.Description = info.Found
	case outcome.Status == lensing.SearchNotRun:
		f.Title = fmt.Sprintf("Search for '%s' patterns did not run.", info.Name)
	case outcome.Status == lensing.SearchSkipped:
		f.Title = fmt.Sprintf("Search for '%s' patterns skipped: %d sources exceed the combination limit.", info.Name, outcome.Pool)
	default:
		f.Title = info.NotFound
	}
	return f
}

// HasPatterns reports whether either search found something.
func (s *Summary) HasPatterns() bool {
	return s.MultiImageCount > 0 || s.ArcCount > 0
}
