package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/lensfind/internal/lensing"
	"github.com/nao1215/lensfind/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to show are printed.
	showEmpty bool

	// verbose adds the accepted groups and their metrics.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with the members of every group.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full report in human-readable format.
func (w *SimpleWriter) Write(report *model.AnalysisReport) (int, error) {
	summary := ensureSummary(report)

	var sb strings.Builder
	w.writeHeader(&sb, summary, report.Dimensions)
	switch {
	case !report.Completed():
		sb.WriteString("Analysis abandoned; no lensing search was run.\n\n")
	case report.Status == lensing.StatusNoSources:
		w.writeCentral(&sb, report)
		sb.WriteString("No significant sources detected.\n\n")
	default:
		w.writeCentral(&sb, report)
		w.writePatterns(&sb, summary)
	}
	if w.verbose && report.Completed() {
		w.writeGroups(&sb, "EINSTEIN CROSS CANDIDATES", report.MultiImage)
		w.writeGroups(&sb, "ARC CANDIDATES", report.Arc)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteSummary outputs the summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *model.Summary) (int, error) {
	var sb strings.Builder
	w.writeHeader(&sb, summary, lensing.Dimensions{})
	if summary.CentralID >= 0 {
		fmt.Fprintf(&sb, "Central Object: id %d", summary.CentralID)
		if !summary.CentralInRegion {
			sb.WriteString(" (outside central region)")
		}
		sb.WriteString("\n\n")
	}
	w.writePatterns(&sb, summary)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.Summary, dims lensing.Dimensions) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         LENSFIND REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Catalog:        %s\n", summary.CatalogName)
	fmt.Fprintf(sb, "Analysis Date:  %s\n", summary.DateAnalysed.Format("2006-01-02 15:04:05 MST"))
	if dims.Valid() {
		fmt.Fprintf(sb, "Image Size:     %g x %g\n", dims.Width, dims.Height)
	}
	fmt.Fprintf(sb, "Detected %d sources.\n", summary.SourceCount)

	if summary.Error != "" {
		fmt.Fprintf(sb, "Status:         ERROR - %s\n", summary.Error)
	} else {
		sb.WriteString("Status:         Complete\n")
	}

	sb.WriteString("\n")
}

// writeCentral writes the selected lens.
func (w *SimpleWriter) writeCentral(sb *strings.Builder, report *model.AnalysisReport) {
	if report.Central == nil && !w.showEmpty {
		return
	}

	writeSection(sb, "CENTRAL OBJECT")

	if report.Central == nil {
		sb.WriteString("  No central object selected\n\n")
		return
	}

	c := report.Central.Source
	fmt.Fprintf(sb, "  Identified central object candidate at (x,y): (%.2f, %.2f) with flux: %.2f\n", c.X, c.Y, c.Flux)
	if !report.Central.InRegion {
		sb.WriteString("  No source inside the central region; using the brightest source.\n")
	}
	sb.WriteString("\n")
}

// writePatterns writes one line per search with its explanation.
func (w *SimpleWriter) writePatterns(sb *strings.Builder, summary *model.Summary) {
	if len(summary.Findings) == 0 {
		return
	}

	writeSection(sb, "LENSING PATTERNS")

	for _, f := range summary.Findings {
		fmt.Fprintf(sb, "[LOGIC] %s\n", f.Title)
		if f.Description != "" {
			fmt.Fprintf(sb, "        %s\n", f.Description)
		}
	}
	sb.WriteString("\n")
}

// writeGroups lists the accepted groups of one search.
func (w *SimpleWriter) writeGroups(sb *strings.Builder, title string, outcome lensing.SearchOutcome) {
	if len(outcome.Candidates) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, title)

	if len(outcome.Candidates) == 0 {
		fmt.Fprintf(sb, "  None (%s, %d groups evaluated)\n\n", outcome.Status, outcome.Evaluated)
		return
	}

	for _, g := range outcome.Candidates {
		fmt.Fprintf(sb, "  * members %v\n", g.IDs())
		fmt.Fprintf(sb, "    %s\n", groupMetrics(g))
	}
	sb.WriteString("\n")
}

// groupMetrics formats the measurements a group was accepted on.
func groupMetrics(g lensing.SourceGroup) string {
	if g.Kind == lensing.PatternArc {
		return fmt.Sprintf("mean radius %.2f, radial CV %.3f, span %.1f deg",
			g.MeanRadius, g.RadialCV, g.AngularSpan.Deg())
	}
	return fmt.Sprintf("flux ratio %.3f, max separation %.2f, centroid offset %.2f",
		g.FluxRatio, g.MaxSeparation, g.CentroidOffset)
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by lensfind\n")
	sb.WriteString("https://github.com/nao1215/lensfind\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
