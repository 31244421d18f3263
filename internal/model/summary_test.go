package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/nao1215/lensfind/internal/lensing"
)

// TestNewSummary tests condensing a report.
func TestNewSummary(t *testing.T) {
	t.Parallel()

	t.Run("reports found patterns in plain wording", func(t *testing.T) {
		t.Parallel()

		report := NewAnalysisReport("cross", "")
		report.ApplyResult(&lensing.Result{
			Status:      lensing.StatusOK,
			SourceCount: 9,
			Central:     &lensing.Central{Source: lensing.PointSource{ID: 4}},
			MultiImage: lensing.SearchOutcome{
				Status:     lensing.SearchCompleted,
				Candidates: make([]lensing.SourceGroup, 2),
			},
			Arc: lensing.SearchOutcome{Status: lensing.SearchCompleted},
		})

		s := NewSummary(report)
		if s.CentralID != 4 || s.CentralInRegion {
			t.Errorf("unexpected central %d/%v", s.CentralID, s.CentralInRegion)
		}
		if s.Verdict != VerdictMultiImage || s.VerdictText != "multi_image" {
			t.Errorf("unexpected verdict %v", s.Verdict)
		}
		if len(s.Findings) != 2 {
			t.Fatalf("expected 2 findings, got %d", len(s.Findings))
		}
		if want := "Found 2 potential 'Einstein Cross' pattern(s)."; s.Findings[0].Title != want {
			t.Errorf("got %q, expected %q", s.Findings[0].Title, want)
		}
		if s.Findings[0].Description == "" {
			t.Error("expected a description for found patterns")
		}
		if want := "No patterns suggestive of a 'Gravitational Arc' were found."; s.Findings[1].Title != want {
			t.Errorf("got %q, expected %q", s.Findings[1].Title, want)
		}
		if !s.HasPatterns() {
			t.Error("expected HasPatterns to be true")
		}
	})

	t.Run("marks a missing lens and skipped searches", func(t *testing.T) {
		t.Parallel()

		report := NewAnalysisReport("big", "")
		report.Arc = lensing.SearchOutcome{Status: lensing.SearchSkipped, Pool: 80}

		s := NewSummary(report)
		if s.CentralID != -1 {
			t.Errorf("got central %d, expected -1", s.CentralID)
		}
		if s.Findings[1].Status != "skipped" {
			t.Errorf("got status %q, expected skipped", s.Findings[1].Status)
		}
		if s.HasPatterns() {
			t.Error("expected no patterns")
		}
	})

	t.Run("does not report abandoned searches as empty", func(t *testing.T) {
		t.Parallel()

		report := NewAnalysisReport("broken", "broken.csv")
		report.SetError(errors.New("failed to open catalog"))

		s := NewSummary(report)
		if s.Error != "failed to open catalog" {
			t.Errorf("got error %q", s.Error)
		}
		for _, f := range s.Findings {
			if f.Status != "not_run" {
				t.Errorf("%s: got status %q, expected not_run", f.Kind, f.Status)
			}
			if !strings.Contains(f.Title, "did not run") {
				t.Errorf("%s: got title %q, expected a did-not-run title", f.Kind, f.Title)
			}
			if strings.Contains(f.Title, "No patterns") {
				t.Errorf("%s: abandoned search reported as empty: %q", f.Kind, f.Title)
			}
		}
	})
}
