package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/lensfind/internal/lensing"
	"github.com/nao1215/lensfind/internal/model"
	"github.com/nao1215/lensfind/internal/synth"
)

var testDims = lensing.Dimensions{Width: 400, Height: 400}

// createTestReport analyses a synthetic scene containing both patterns.
func createTestReport(t *testing.T) *model.AnalysisReport {
	t.Helper()

	report := model.NewAnalysisReport("testfield", "testfield.csv")
	report.Dimensions = testDims

	sources := synth.NewScene(testDims, synth.WithPattern(synth.PatternBoth)).Build()
	res, err := lensing.Detect(sources, testDims, report.Options)
	if err != nil {
		t.Fatalf("unexpected detect error: %v", err)
	}
	report.ApplyResult(res)
	report.Summary = model.NewSummary(report)

	return report
}

// createEmptyReport returns a report for a catalog without sources.
func createEmptyReport() *model.AnalysisReport {
	report := model.NewAnalysisReport("empty", "empty.csv")
	report.Dimensions = testDims
	res, err := lensing.Detect(nil, testDims, report.Options)
	report.ApplyResult(res)
	report.SetError(err)
	return report
}

// createFailedReport returns a report for a catalog that could not be read.
func createFailedReport() *model.AnalysisReport {
	report := model.NewAnalysisReport("broken", "broken.csv")
	report.SetError(errors.New("failed to open catalog: no such file or directory"))
	return report
}

func TestWritersOmitResultsOfAbandonedAnalysis(t *testing.T) {
	t.Parallel()

	t.Run("text", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithShowEmpty(true), WithVerbose(true)).Write(createFailedReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"Status:         ERROR - failed to open catalog", "Analysis abandoned"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
		for _, unwanted := range []string{"[LOGIC]", "No patterns suggestive", "CENTRAL OBJECT", "CANDIDATES"} {
			if strings.Contains(output, unwanted) {
				t.Errorf("expected output not to contain %q\n%s", unwanted, output)
			}
		}
	})

	t.Run("markdown", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createFailedReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"[!CAUTION]", "Analysis abandoned", "failed to open catalog"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
		for _, unwanted := range []string{"No patterns suggestive", "[!TIP]", "## Central Object"} {
			if strings.Contains(output, unwanted) {
				t.Errorf("expected output not to contain %q\n%s", unwanted, output)
			}
		}
	})
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes report header", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(createTestReport(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "LENSFIND REPORT") {
			t.Error("expected output to contain header")
		}
		if !strings.Contains(output, "testfield") {
			t.Error("expected output to contain catalog name")
		}
		if !strings.Contains(output, "Image Size:     400 x 400") {
			t.Error("expected output to contain image size")
		}
	})

	t.Run("writes central object", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(createTestReport(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := "Identified central object candidate at (x,y): (200.00, 200.00) with flux: 1000.00"
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, buf.String())
		}
	})

	t.Run("writes pattern findings", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(createTestReport(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"[LOGIC] Found 1 potential 'Einstein Cross' pattern(s).",
			"[LOGIC] Found 1 potential 'Gravitational Arc' pattern(s).",
			"tight cluster of 4 sources",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("verbose mode lists group members", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf, WithVerbose(true))

		if _, err := w.Write(createTestReport(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "EINSTEIN CROSS CANDIDATES") {
			t.Error("expected verbose output to list multi-image groups")
		}
		if !strings.Contains(output, "radial CV") {
			t.Error("expected verbose output to contain arc metrics")
		}
	})

	t.Run("non-verbose mode hides group members", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(createTestReport(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if strings.Contains(buf.String(), "CANDIDATES") {
			t.Error("expected group sections to be hidden")
		}
	})

	t.Run("reports empty catalog", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.Write(createEmptyReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "No significant sources detected.") {
			t.Error("expected no sources message")
		}
		if !strings.Contains(output, "Status:         ERROR - ") {
			t.Error("expected error status")
		}
		if strings.Contains(output, "[LOGIC]") {
			t.Error("expected no pattern lines for an empty catalog")
		}
	})

	t.Run("show empty prints missing central object", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf, WithShowEmpty(true))

		if _, err := w.Write(createEmptyReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(buf.String(), "No central object selected") {
			t.Error("expected empty central section")
		}
	})

	t.Run("notes fallback central object", func(t *testing.T) {
		t.Parallel()

		report := model.NewAnalysisReport("corner", "")
		report.Dimensions = testDims
		res, err := lensing.Detect([]lensing.PointSource{
			{ID: 1, X: 10, Y: 10, Flux: 50},
			{ID: 2, X: 390, Y: 390, Flux: 20},
		}, testDims, report.Options)
		if err != nil {
			t.Fatalf("unexpected detect error: %v", err)
		}
		report.ApplyResult(res)

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(buf.String(), "using the brightest source") {
			t.Error("expected fallback note")
		}
	})
}

func TestSimpleWriterWriteSummary(t *testing.T) {
	t.Parallel()

	summary := &model.Summary{
		CatalogName:  "direct",
		DateAnalysed: time.Now(),
		SourceCount:  7,
		CentralID:    3,
		Findings: []model.Finding{
			{Kind: lensing.PatternMultiImage, Title: "No patterns suggestive of an 'Einstein Cross' were found."},
		},
	}

	var buf bytes.Buffer
	n, err := NewSimpleWriter(&buf).WriteSummary(summary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n == 0 {
		t.Error("expected non-zero bytes written")
	}

	output := buf.String()
	for _, want := range []string{
		"direct",
		"Detected 7 sources.",
		"Central Object: id 3 (outside central region)",
		"[LOGIC] No patterns suggestive of an 'Einstein Cross' were found.",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("outputs valid JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.Write(createTestReport(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded["catalog_name"] != "testfield" {
			t.Errorf("expected catalog_name testfield, got %v", decoded["catalog_name"])
		}
		if _, ok := decoded["summary"]; !ok {
			t.Error("expected summary in JSON output")
		}
	})

	t.Run("compact output by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.Write(createTestReport(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("expected compact JSON on a single line")
		}
	})

	t.Run("pretty print with indent", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf, WithPrettyPrint())

		if _, err := w.Write(createTestReport(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(buf.String(), "\n  \"") {
			t.Error("expected indented JSON")
		}
	})

	t.Run("custom prefix and indent", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf, WithIndent(">", "\t"))

		if _, err := w.WriteSummary(&model.Summary{CatalogName: "x"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(buf.String(), "\n>\t\"") {
			t.Errorf("expected prefixed tab indent, got %q", buf.String())
		}
	})

	t.Run("error message is serialised", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createEmptyReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded struct {
			Error      string `json:"error"`
			StatusText string `json:"status_text"`
		}
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded.Error == "" {
			t.Error("expected error message")
		}
		if decoded.StatusText != "no_sources" {
			t.Errorf("expected status_text no_sources, got %q", decoded.StatusText)
		}
	})
}

func TestFullJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewFullJSONWriter(&buf, "1.2.3")

	if _, err := w.Write(createTestReport(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded JSONReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Version != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %q", decoded.Version)
	}
	if decoded.Report == nil || decoded.Report.CatalogName != "testfield" {
		t.Error("expected wrapped report")
	}
	if decoded.Report.MultiImage.Count() != 1 {
		t.Errorf("expected 1 multi-image group, got %d", decoded.Report.MultiImage.Count())
	}
}

type failingWriter struct{}

func (failingWriter) Write(*model.AnalysisReport) (int, error) {
	return 0, errors.New("boom")
}

func (failingWriter) WriteSummary(*model.Summary) (int, error) {
	return 0, errors.New("boom")
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var buf1, buf2 bytes.Buffer
		multi := NewMultiWriter(NewSimpleWriter(&buf1), NewJSONWriter(&buf2))

		n, err := multi.Write(createTestReport(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf1.Len()+buf2.Len() {
			t.Errorf("expected %d bytes, got %d", buf1.Len()+buf2.Len(), n)
		}
		if strings.HasPrefix(buf1.String(), "{") {
			t.Error("expected buf1 (simple) to not be JSON")
		}
		if !strings.HasPrefix(buf2.String(), "{") {
			t.Error("expected buf2 to be JSON")
		}
	})

	t.Run("writes summary to all writers", func(t *testing.T) {
		t.Parallel()

		var buf1, buf2 bytes.Buffer
		multi := NewMultiWriter(NewSimpleWriter(&buf1), NewJSONWriter(&buf2))

		if _, err := multi.WriteSummary(&model.Summary{CatalogName: "multi"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf1.String(), "multi") || !strings.Contains(buf2.String(), "multi") {
			t.Error("expected catalog name in both outputs")
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		multi := NewMultiWriter(failingWriter{}, NewJSONWriter(&buf))

		if _, err := multi.Write(createTestReport(t)); err == nil {
			t.Fatal("expected error")
		}
		if buf.Len() != 0 {
			t.Error("expected later writers to be skipped")
		}
	})

	t.Run("handles empty writers list", func(t *testing.T) {
		t.Parallel()

		n, err := NewMultiWriter().Write(createTestReport(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 0 {
			t.Errorf("expected 0 bytes, got %d", n)
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and tables", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# Lensfind Report",
			"`testfield`",
			"## Central Object",
			"## Lensing Patterns",
			"## Einstein Cross Candidates",
			"## Arc Candidates",
			"Einstein Cross",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("includes pie chart and alert", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "pie") {
			t.Error("expected mermaid pie chart")
		}
		if !strings.Contains(output, "[!IMPORTANT]") {
			t.Error("expected important alert")
		}
	})

	t.Run("tip when nothing found", func(t *testing.T) {
		t.Parallel()

		report := model.NewAnalysisReport("quiet", "")
		report.Dimensions = testDims
		sources := synth.NewScene(testDims, synth.WithPattern(synth.PatternNone)).Build()
		res, err := lensing.Detect(sources, testDims, report.Options)
		if err != nil {
			t.Fatalf("unexpected detect error: %v", err)
		}
		report.ApplyResult(res)

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "[!TIP]") {
			t.Error("expected tip alert")
		}
		if strings.Contains(output, "pie") {
			t.Error("expected no pie chart")
		}
		if strings.Contains(output, "Candidates\n") {
			t.Error("expected no candidate sections")
		}
	})

	t.Run("shows error in status", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createEmptyReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "❌ Error") {
			t.Error("expected error status")
		}
		if !strings.Contains(output, "[!CAUTION]") {
			t.Error("expected caution alert")
		}
		if !strings.Contains(output, "No central object was selected.") {
			t.Error("expected missing central object text")
		}
	})

	t.Run("writes footer with link", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteSummary(&model.Summary{CatalogName: "s"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(buf.String(), "https://github.com/nao1215/lensfind") {
			t.Error("expected footer link")
		}
	})
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			if got := truncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}
