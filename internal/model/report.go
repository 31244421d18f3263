package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/lensfind/internal/lensing"
)

// StatusTextFailed is the StatusText of an analysis that stopped before
// the detector produced a result, for example because the catalog could
// not be read.
const StatusTextFailed = "failed"

// AnalysisReport is the result of analysing one catalog.
type AnalysisReport struct {
	// === Identity ===

	// RunID uniquely identifies this analysis.
	RunID string `json:"run_id"`

	// CatalogName is the short name of the catalog (file name without
	// extension by default).
	CatalogName string `json:"catalog_name"`

	// CatalogPath is the file the catalog was read from.
	CatalogPath string `json:"catalog_path,omitempty"`

	// DateAnalysed is when the analysis started.
	DateAnalysed time.Time `json:"date_analysed"`

	// === Input ===

	// Dimensions is the size of the image the catalog belongs to.
	Dimensions lensing.Dimensions `json:"dimensions"`

	// SourceCount is the number of sources in the catalog.
	SourceCount int `json:"source_count"`

	// Options are the detector thresholds used for this run.
	Options lensing.Options `json:"options"`

	// Sources holds the loaded catalog between pipeline steps.
	Sources []lensing.PointSource `json:"-"`

	// === Detection ===

	// Status is the overall detector outcome. It stays StatusNotRun until
	// the detector has run.
	Status lensing.Status `json:"status"`

	// StatusText is Status in readable form, or StatusTextFailed when the
	// analysis was abandoned before detection.
	StatusText string `json:"status_text"`

	// Central is the selected lensing mass, nil when detection failed.
	Central *lensing.Central `json:"central,omitempty"`

	// MultiImage is the outcome of the multi-image search.
	MultiImage lensing.SearchOutcome `json:"multi_image"`

	// Arc is the outcome of the arc search.
	Arc lensing.SearchOutcome `json:"arc"`

	// Summary is filled in by the summary step.
	Summary *Summary `json:"summary,omitempty"`

	// === Run State ===

	// PerformedSteps lists the pipeline steps that ran, in order.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Duration is the wall time of the analysis.
	Duration time.Duration `json:"duration"`

	// Error is the error that stopped the analysis, if any.
	Error error `json:"-"`

	// ErrorMessage is the string form of Error for serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// NewAnalysisReport creates a report for the named catalog with a fresh
// run ID and the default detector options.
func NewAnalysisReport(catalogName, catalogPath string) *AnalysisReport {
	return &AnalysisReport{
		RunID:        uuid.NewString(),
		CatalogName:  catalogName,
		CatalogPath:  catalogPath,
		DateAnalysed: time.Now(),
		Options:      lensing.DefaultOptions(),
		StatusText:   lensing.StatusNotRun.String(),
	}
}

// ApplyResult copies a detector result into the report.
func (r *AnalysisReport) ApplyResult(res *lensing.Result) {
	if res == nil {
		return
	}
	r.Status = res.Status
	r.StatusText = res.Status.String()
	r.SourceCount = res.SourceCount
	r.Central = res.Central
	r.MultiImage = res.MultiImage
	r.Arc = res.Arc
}

// SetError records err as the reason the analysis stopped. If the
// detector has not run, StatusText becomes StatusTextFailed.
// A nil err clears any previous error.
func (r *AnalysisReport) SetError(err error) {
	r.Error = err
	if err == nil {
		r.ErrorMessage = ""
		if r.StatusText == StatusTextFailed {
			r.StatusText = r.Status.String()
		}
		return
	}
	r.ErrorMessage = err.Error()
	if r.Status == lensing.StatusNotRun {
		r.StatusText = StatusTextFailed
	}
}

// AddPerformedStep appends a step name to PerformedSteps.
func (r *AnalysisReport) AddPerformedStep(name string) {
	r.PerformedSteps = append(r.PerformedSteps, name)
}

// Failed reports whether the analysis ended with an error.
func (r *AnalysisReport) Failed() bool {
	return r.Error != nil || r.ErrorMessage != ""
}

// Completed reports whether the detector analysed the catalog: both
// searches were attempted, or the catalog held no sources. A report that
// is not completed carries no lensing result.
func (r *AnalysisReport) Completed() bool {
	return r.Status == lensing.StatusOK || r.Status == lensing.StatusNoSources
}

// Verdict classifies the accepted groups.
func (r *AnalysisReport) Verdict() Verdict {
	return VerdictFor(r.MultiImage.Count(), r.Arc.Count())
}
