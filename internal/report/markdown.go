package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/lensfind/internal/lensing"
	"github.com/nao1215/lensfind/internal/model"
)

// maxMembersWidth bounds the member list column in group tables.
const maxMembersWidth = 40

// MarkdownWriter outputs reports in Markdown format for documentation and
// sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.AnalysisReport) (int, error) {
	summary := ensureSummary(report)
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary, report.Dimensions)
	if !report.Completed() {
		w.writeAbandoned(md, summary)
		w.writeFooter(md)
		return len(md.String()), md.Build()
	}
	w.writeCentral(md, report.Central)
	w.writeSummary(md, summary)
	w.writeGroups(md, "Einstein Cross Candidates", report.MultiImage)
	w.writeGroups(md, "Arc Candidates", report.Arc)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs the summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary, lensing.Dimensions{})
	w.writeSummary(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.Summary, dims lensing.Dimensions) {
	md.H1("Lensfind Report")
	md.PlainText("")

	rows := [][]string{
		{"Catalog", "`" + summary.CatalogName + "`"},
		{"Analysis Date", summary.DateAnalysed.Format("2006-01-02 15:04:05 MST")},
	}
	if dims.Valid() {
		rows = append(rows, []string{"Image Size", fmt.Sprintf("%g x %g", dims.Width, dims.Height)})
	}
	rows = append(rows,
		[]string{"Sources", strconv.Itoa(summary.SourceCount)},
		[]string{"Status", statusText(summary)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// statusText returns the status cell for the header table.
func statusText(summary *model.Summary) string {
	if summary.Error != "" {
		return "❌ Error - " + summary.Error
	}
	return "✅ Complete"
}

// writeAbandoned replaces the result sections of an analysis that stopped
// before the detector ran to completion.
func (w *MarkdownWriter) writeAbandoned(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Lensing Patterns")
	md.PlainText("")
	reason := summary.Error
	if reason == "" {
		reason = "the detector produced no result"
	}
	md.Cautionf("Analysis abandoned; no lensing search was run: %s", reason)
	md.PlainText("")
}

// writeCentral writes the selected lens.
func (w *MarkdownWriter) writeCentral(md *markdown.Markdown, central *lensing.Central) {
	md.H2("Central Object")
	md.PlainText("")

	if central == nil {
		md.PlainText("No central object was selected.")
		md.PlainText("")
		return
	}

	s := central.Source
	md.Table(markdown.TableSet{
		Header: []string{"ID", "X", "Y", "Flux", "Distance from Centre", "In Central Region"},
		Rows: [][]string{{
			strconv.Itoa(s.ID),
			formatFloat(s.X),
			formatFloat(s.Y),
			formatFloat(s.Flux),
			formatFloat(central.CenterDistance),
			strconv.FormatBool(central.InRegion),
		}},
	})
	md.PlainText("")

	if !central.InRegion {
		md.Note("No source lies inside the central region; the brightest source was used instead.")
		md.PlainText("")
	}
}

// writeSummary writes the pattern counts, a chart and a verdict alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Lensing Patterns")
	md.PlainText("")

	rows := make([][]string, 0, len(summary.Findings))
	for _, f := range summary.Findings {
		rows = append(rows, []string{
			model.GetPatternInfo(f.Kind).Name,
			f.Status,
			strconv.Itoa(f.Count),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Pattern", "Search", "Candidates"},
		Rows:   rows,
	})
	md.PlainText("")

	if summary.HasPatterns() {
		w.writePieChart(md, summary)
	}

	w.writeAlert(md, summary)

	for _, f := range summary.Findings {
		if f.Description != "" {
			md.Details(f.Title, f.Description)
		}
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of candidate counts.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Candidate Groups by Pattern"),
		piechart.WithShowData(true),
	)

	if summary.MultiImageCount > 0 {
		chart.LabelAndIntValue(model.GetPatternInfo(lensing.PatternMultiImage).Name, uint64(summary.MultiImageCount))
	}
	if summary.ArcCount > 0 {
		chart.LabelAndIntValue(model.GetPatternInfo(lensing.PatternArc).Name, uint64(summary.ArcCount))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the verdict.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.Summary) {
	switch {
	case summary.Error != "":
		md.Cautionf("Analysis failed: %s", summary.Error)
	case summary.Verdict == model.VerdictBoth:
		md.Importantf(
			"Both morphologies found around the same lens: %d multi-image group(s) and %d arc(s).",
			summary.MultiImageCount, summary.ArcCount,
		)
	case summary.Verdict == model.VerdictMultiImage:
		md.Importantf("%d potential Einstein Cross group(s) found.", summary.MultiImageCount)
	case summary.Verdict == model.VerdictArc:
		md.Importantf("%d potential gravitational arc(s) found.", summary.ArcCount)
	case skipped(summary):
		md.Warningf("At least one search was skipped because it exceeded the combination limit.")
	default:
		md.Tip("No lensing patterns detected.")
	}
	md.PlainText("")
}

func skipped(summary *model.Summary) bool {
	for _, f := range summary.Findings {
		if f.Status == lensing.SearchSkipped.String() {
			return true
		}
	}
	return false
}

// writeGroups writes a table of the accepted groups of one search.
func (w *MarkdownWriter) writeGroups(md *markdown.Markdown, title string, outcome lensing.SearchOutcome) {
	if len(outcome.Candidates) == 0 {
		return
	}

	md.H2(title)
	md.PlainText("")

	var header []string
	rows := make([][]string, 0, len(outcome.Candidates))
	for i, g := range outcome.Candidates {
		members := truncateString(joinIDs(g.IDs()), maxMembersWidth)
		if g.Kind == lensing.PatternArc {
			header = []string{"#", "Members", "Mean Radius", "Radial CV", "Span (deg)"}
			rows = append(rows, []string{
				strconv.Itoa(i + 1), members,
				formatFloat(g.MeanRadius),
				strconv.FormatFloat(g.RadialCV, 'f', 3, 64),
				strconv.FormatFloat(g.AngularSpan.Deg(), 'f', 1, 64),
			})
			continue
		}
		header = []string{"#", "Members", "Flux Ratio", "Max Separation", "Centroid Offset"}
		rows = append(rows, []string{
			strconv.Itoa(i + 1), members,
			strconv.FormatFloat(g.FluxRatio, 'f', 3, 64),
			formatFloat(g.MaxSeparation),
			formatFloat(g.CentroidOffset),
		})
	}

	md.Table(markdown.TableSet{
		Header: header,
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [lensfind](https://github.com/nao1215/lensfind)*")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
