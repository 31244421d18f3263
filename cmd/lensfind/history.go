package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/lensfind/internal/catalog"
	"github.com/nao1215/lensfind/internal/config"
	"github.com/nao1215/lensfind/internal/database"
	"github.com/nao1215/lensfind/internal/lensing"
	"github.com/nao1215/lensfind/internal/model"
)

// Directions of change between two runs.
const (
	directionMore      = "more"
	directionFewer     = "fewer"
	directionUnchanged = "unchanged"
	noPatternsMessage  = "No patterns"
)

// NewHistoryCmd creates the history command.
// This command compares runs stored in the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [catalog]",
		Short: "Compare analysis runs stored in the database",
		Long: `History displays differences between the latest and an earlier run of a
catalog, such as after the catalog was re-extracted or thresholds changed.

It shows:
- Candidate groups that are new in the latest run
- Candidate groups that are no longer accepted
- Changes in source count, pattern counts and verdict

The catalog may be given by name or by path; "data/abell2218.csv" and
"abell2218" refer to the same catalog.

Examples:
  # Compare the latest two runs
  lensfind history abell2218

  # List all runs of a catalog
  lensfind history --list abell2218

  # Compare with a specific run by ID
  lensfind history --with-run-id 5 abell2218

  # Compare with the first run since a date
  lensfind history --since 2026-01-01 abell2218

  # List every catalog in the database
  lensfind history --list-catalogs`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List runs of the specified catalog")
	cmd.Flags().BoolP("list-catalogs", "L", false,
		"List all catalogs in the database")

	// Comparison target flags
	cmd.Flags().Int64P("with-run-id", "i", 0,
		"Compare with a specific run by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first run on or after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	cmd.Flags().String("db-dir", "", "Database directory (default: XDG data directory)")

	return cmd
}

// historyOptions holds the parsed history flags.
type historyOptions struct {
	catalog      string
	listCatalogs bool
	list         bool
	withRunID    int64
	since        string
	json         bool
	markdown     bool
	dbDir        string
}

func parseHistoryFlags(cmd *cobra.Command, args []string) (*historyOptions, error) {
	opts := &historyOptions{}
	flags := cmd.Flags()
	var err error

	if opts.listCatalogs, err = flags.GetBool("list-catalogs"); err != nil {
		return nil, err
	}
	if opts.list, err = flags.GetBool("list"); err != nil {
		return nil, err
	}
	if opts.withRunID, err = flags.GetInt64("with-run-id"); err != nil {
		return nil, err
	}
	if opts.since, err = flags.GetString("since"); err != nil {
		return nil, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if opts.dbDir == "" {
		opts.dbDir = config.XDGDataDir()
	}

	if opts.json && opts.markdown {
		return nil, config.ErrConflictingReportFormats
	}

	if !opts.listCatalogs {
		if len(args) == 0 {
			return nil, errors.New("catalog name is required (use --list-catalogs to see available catalogs)")
		}
		opts.catalog = catalog.NameFromPath(args[0])
	}

	return opts, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	// Validate before opening the database so a bad invocation never
	// creates or locks it.
	opts, err := parseHistoryFlags(cmd, args)
	if err != nil {
		return err
	}

	db, err := database.Open(opts.dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case opts.listCatalogs:
		return listCatalogs(ctx, out, db)
	case opts.list:
		return listRunHistory(ctx, out, db, opts.catalog)
	}

	result, err := runComparison(ctx, db, opts.catalog, opts.withRunID, opts.since)
	if err != nil {
		return err
	}

	switch {
	case opts.json:
		return outputComparisonJSON(out, result)
	case opts.markdown:
		return outputComparisonMarkdown(out, result)
	default:
		outputComparisonText(out, result)
		return nil
	}
}

// listCatalogs lists every catalog that has runs in the database.
func listCatalogs(ctx context.Context, out io.Writer, db *database.RunDB) error {
	catalogs, err := db.ListCatalogs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list catalogs: %w", err)
	}

	if len(catalogs) == 0 {
		fmt.Fprintln(out, "No analysed catalogs found in the database.")
		fmt.Fprintln(out, "\nUse 'lensfind scan <catalog>' to analyse a catalog.")
		return nil
	}

	fmt.Fprintf(out, "Analysed catalogs (%d):\n\n", len(catalogs))
	for _, name := range catalogs {
		fmt.Fprintf(out, "  • %s\n", name)
	}
	fmt.Fprintln(out, "\nUse 'lensfind history --list <catalog>' to see the runs of a catalog.")

	return nil
}

// listRunHistory lists all runs of a catalog.
func listRunHistory(ctx context.Context, out io.Writer, db *database.RunDB, name string) error {
	runs, err := db.RunHistoryWithMetadata(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No run history found for %s\n", name)
		fmt.Fprintln(out, "\nUse 'lensfind scan' to analyse this catalog.")
		return nil
	}

	fmt.Fprintf(out, "Run history for %s (%d runs):\n\n", name, len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-8s  %s\n", "ID", "Date", "Sources", "Patterns")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))

	for _, meta := range runs {
		fmt.Fprintf(out, "  %-6d  %-20s  %-8d  %s\n",
			meta.ID,
			meta.Timestamp.Local().Format("2006-01-02 15:04:05"),
			meta.SourceCount,
			formatPatternCounts(meta),
		)
	}

	fmt.Fprintln(out, "\nUse 'lensfind history <catalog>' to compare the latest two runs.")
	fmt.Fprintln(out, "Use 'lensfind history --with-run-id <id> <catalog>' to compare with a specific run.")

	return nil
}

// formatPatternCounts renders the pattern counts of a run compactly.
func formatPatternCounts(meta database.RunMetadata) string {
	if meta.Status != lensing.StatusOK.String() {
		return meta.Status
	}

	var parts []string
	if meta.MultiImageCount > 0 {
		parts = append(parts, fmt.Sprintf("X:%d", meta.MultiImageCount))
	}
	if meta.ArcCount > 0 {
		parts = append(parts, fmt.Sprintf("A:%d", meta.ArcCount))
	}
	if len(parts) == 0 {
		return noPatternsMessage
	}
	return strings.Join(parts, " ")
}

// runComparison selects the two runs to compare and compares them.
func runComparison(ctx context.Context, db *database.RunDB, name string, withRunID int64, sinceDate string) (*ComparisonResult, error) {
	reports, err := db.RunHistory(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}

	if len(reports) == 0 {
		return nil, fmt.Errorf("no run history found for %s", name)
	}

	// Abandoned runs carry no groups and are left out of the comparison.
	reports = slices.DeleteFunc(reports, func(r *model.AnalysisReport) bool {
		return !r.Completed()
	})
	if len(reports) == 0 {
		return nil, fmt.Errorf("no completed run found for %s", name)
	}

	if len(reports) < 2 && withRunID == 0 && sinceDate == "" {
		return nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(reports))
	}

	// Newest first, so the latest run is always the current one.
	current := reports[0]
	var previous *model.AnalysisReport

	switch {
	case withRunID > 0:
		previous, err = db.RunByID(ctx, withRunID)
		if err != nil {
			return nil, fmt.Errorf("failed to get run with ID %d: %w", withRunID, err)
		}
		if previous == nil {
			return nil, fmt.Errorf("run with ID %d not found", withRunID)
		}
		if previous.CatalogName != name {
			return nil, fmt.Errorf("run ID %d belongs to %s, not %s", withRunID, previous.CatalogName, name)
		}
		if !previous.Completed() {
			return nil, fmt.Errorf("run with ID %d did not complete (status %s)", withRunID, previous.StatusText)
		}
	case sinceDate != "":
		parsedDate, err := time.ParseInLocation("2006-01-02", sinceDate, time.Local)
		if err != nil {
			return nil, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}

		// Oldest matching run.
		for i := len(reports) - 1; i >= 0; i-- {
			if !reports[i].DateAnalysed.Before(parsedDate) {
				previous = reports[i]
				break
			}
		}
		if previous == nil {
			return nil, fmt.Errorf("no runs found since %s", sinceDate)
		}
		if previous == current {
			return nil, fmt.Errorf("only one run found since %s; at least 2 runs are required for comparison", sinceDate)
		}
	default:
		previous = reports[1]
	}

	return compareReports(previous, current), nil
}

// ComparisonResult holds the result of comparing two runs of a catalog.
type ComparisonResult struct {
	// Catalog is the compared catalog name.
	Catalog string `json:"catalog"`

	// PreviousRun describes the earlier run.
	PreviousRun RunSnapshot `json:"previous_run"`

	// CurrentRun describes the latest run.
	CurrentRun RunSnapshot `json:"current_run"`

	// NewGroups are accepted in the current run only.
	NewGroups []GroupKey `json:"new_groups,omitempty"`

	// ResolvedGroups were accepted in the previous run only.
	ResolvedGroups []GroupKey `json:"resolved_groups,omitempty"`

	// UnchangedCount is the number of groups accepted in both runs.
	UnchangedCount int `json:"unchanged_count"`

	// Change summarises the count differences.
	Change PatternChange `json:"change"`
}

// RunSnapshot contains the comparable facts of one run.
type RunSnapshot struct {
	RunID           string    `json:"run_id"`
	DateAnalysed    time.Time `json:"date_analysed"`
	Status          string    `json:"status"`
	SourceCount     int       `json:"source_count"`
	CentralID       int       `json:"central_id"`
	MultiImageCount int       `json:"multi_image_count"`
	ArcCount        int       `json:"arc_count"`
	Verdict         string    `json:"verdict"`
}

// GroupKey identifies an accepted group across runs by its kind and the
// IDs of its members. Source IDs are only stable when the catalog keeps
// its numbering between extractions.
type GroupKey struct {
	Kind    lensing.PatternKind `json:"kind"`
	Members []int               `json:"members"`
}

func (k GroupKey) String() string {
	return string(k.Kind) + "|" + joinInts(k.Members)
}

// PatternChange describes the change in accepted groups between runs.
type PatternChange struct {
	// Direction is "more", "fewer", or "unchanged".
	Direction string `json:"direction"`

	SourceDelta     int  `json:"source_delta"`
	MultiImageDelta int  `json:"multi_image_delta"`
	ArcDelta        int  `json:"arc_delta"`
	VerdictChanged  bool `json:"verdict_changed"`
	CentralChanged  bool `json:"central_changed"`
}

// snapshot extracts the comparable facts of a report.
func snapshot(r *model.AnalysisReport) RunSnapshot {
	s := RunSnapshot{
		RunID:           r.RunID,
		DateAnalysed:    r.DateAnalysed,
		Status:          r.StatusText,
		SourceCount:     r.SourceCount,
		CentralID:       -1,
		MultiImageCount: r.MultiImage.Count(),
		ArcCount:        r.Arc.Count(),
		Verdict:         r.Verdict().String(),
	}
	if r.Central != nil {
		s.CentralID = r.Central.Source.ID
	}
	return s
}

// groupKeys returns the keys of every accepted group in r. Members are
// sorted so enumeration order does not matter.
func groupKeys(r *model.AnalysisReport) []GroupKey {
	var keys []GroupKey
	for _, outcome := range []lensing.SearchOutcome{r.MultiImage, r.Arc} {
		for _, g := range outcome.Candidates {
			ids := g.IDs()
			slices.Sort(ids)
			keys = append(keys, GroupKey{Kind: g.Kind, Members: ids})
		}
	}
	return keys
}

// compareReports compares two runs and generates a comparison result.
func compareReports(previous, current *model.AnalysisReport) *ComparisonResult {
	result := &ComparisonResult{
		Catalog:     current.CatalogName,
		PreviousRun: snapshot(previous),
		CurrentRun:  snapshot(current),
	}

	previousGroups := make(map[string]struct{})
	for _, k := range groupKeys(previous) {
		previousGroups[k.String()] = struct{}{}
	}
	currentGroups := make(map[string]struct{})
	for _, k := range groupKeys(current) {
		currentGroups[k.String()] = struct{}{}
		if _, exists := previousGroups[k.String()]; !exists {
			result.NewGroups = append(result.NewGroups, k)
		}
	}
	for _, k := range groupKeys(previous) {
		if _, exists := currentGroups[k.String()]; exists {
			result.UnchangedCount++
		} else {
			result.ResolvedGroups = append(result.ResolvedGroups, k)
		}
	}

	result.Change = calculatePatternChange(result.PreviousRun, result.CurrentRun)

	return result
}

// calculatePatternChange calculates the change in counts between two runs.
func calculatePatternChange(previous, current RunSnapshot) PatternChange {
	change := PatternChange{
		SourceDelta:     current.SourceCount - previous.SourceCount,
		MultiImageDelta: current.MultiImageCount - previous.MultiImageCount,
		ArcDelta:        current.ArcCount - previous.ArcCount,
		VerdictChanged:  current.Verdict != previous.Verdict,
		CentralChanged:  current.CentralID != previous.CentralID,
	}

	previousTotal := previous.MultiImageCount + previous.ArcCount
	currentTotal := current.MultiImageCount + current.ArcCount

	switch {
	case currentTotal > previousTotal:
		change.Direction = directionMore
	case currentTotal < previousTotal:
		change.Direction = directionFewer
	default:
		change.Direction = directionUnchanged
	}

	return change
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	prev, cur, change := result.PreviousRun, result.CurrentRun, result.Change

	md := markdown.NewMarkdown(out)
	md.H1("Run Comparison: " + result.Catalog)
	md.PlainText("")
	md.H2("Summary")
	md.PlainText("")
	md.PlainText(markdown.Bold("Pattern Status:") + " " + formatDirection(change.Direction))
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Date", prev.DateAnalysed.Local().Format("2006-01-02 15:04"), cur.DateAnalysed.Local().Format("2006-01-02 15:04"), "-"},
			{"Sources", strconv.Itoa(prev.SourceCount), strconv.Itoa(cur.SourceCount), formatDelta(change.SourceDelta)},
			{"Central Object", formatCentralID(prev.CentralID), formatCentralID(cur.CentralID), formatChanged(change.CentralChanged)},
			{"Einstein Cross", strconv.Itoa(prev.MultiImageCount), strconv.Itoa(cur.MultiImageCount), formatDelta(change.MultiImageDelta)},
			{"Arc", strconv.Itoa(prev.ArcCount), strconv.Itoa(cur.ArcCount), formatDelta(change.ArcDelta)},
			{"Verdict", prev.Verdict, cur.Verdict, formatChanged(change.VerdictChanged)},
		},
	})

	if len(result.NewGroups) > 0 {
		md.PlainText("")
		md.H2(fmt.Sprintf("New Groups (%d)", len(result.NewGroups)))
		md.PlainText("")
		md.BulletList(groupLines(result.NewGroups, false)...)
	}

	if len(result.ResolvedGroups) > 0 {
		md.PlainText("")
		md.H2(fmt.Sprintf("Resolved Groups (%d)", len(result.ResolvedGroups)))
		md.PlainText("")
		md.BulletList(groupLines(result.ResolvedGroups, true)...)
	}

	if result.UnchangedCount > 0 {
		md.PlainText("")
		md.HorizontalRule()
		md.PlainText("")
		md.PlainText(markdown.Italic(fmt.Sprintf("%d groups unchanged", result.UnchangedCount)))
	}

	return md.Build()
}

func groupLines(keys []GroupKey, strike bool) []string {
	lines := make([]string, len(keys))
	for i, k := range keys {
		line := markdown.Bold("["+model.GetPatternInfo(k.Kind).Name+"]") + " members " + joinInts(k.Members)
		if strike {
			line = markdown.Strikethrough(line)
		}
		lines[i] = line
	}
	return lines
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) {
	prev, cur, change := result.PreviousRun, result.CurrentRun, result.Change

	fmt.Fprintf(out, "Run Comparison: %s\n", result.Catalog)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nPattern Status: %s\n", formatDirection(change.Direction))

	fmt.Fprintf(out, "\nPrevious run: %s\n", prev.DateAnalysed.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Current run:  %s\n", cur.DateAnalysed.Local().Format("2006-01-02 15:04:05"))

	fmt.Fprintln(out, "\nSummary:")
	fmt.Fprintf(out, "  %-16s  %-10s  %-10s  %-10s\n", "Metric", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 52))
	fmt.Fprintf(out, "  %-16s  %-10d  %-10d  %-10s\n", "Sources",
		prev.SourceCount, cur.SourceCount, formatDelta(change.SourceDelta))
	fmt.Fprintf(out, "  %-16s  %-10s  %-10s  %-10s\n", "Central Object",
		formatCentralID(prev.CentralID), formatCentralID(cur.CentralID), formatChanged(change.CentralChanged))
	fmt.Fprintf(out, "  %-16s  %-10d  %-10d  %-10s\n", "Einstein Cross",
		prev.MultiImageCount, cur.MultiImageCount, formatDelta(change.MultiImageDelta))
	fmt.Fprintf(out, "  %-16s  %-10d  %-10d  %-10s\n", "Arc",
		prev.ArcCount, cur.ArcCount, formatDelta(change.ArcDelta))
	fmt.Fprintln(out, "  "+strings.Repeat("-", 52))
	fmt.Fprintf(out, "  %-16s  %-10s  %-10s  %-10s\n", "Verdict",
		prev.Verdict, cur.Verdict, formatChanged(change.VerdictChanged))

	if len(result.NewGroups) > 0 {
		fmt.Fprintf(out, "\nNew Groups (%d):\n", len(result.NewGroups))
		for _, k := range result.NewGroups {
			fmt.Fprintf(out, "  [+] [%s] members %s\n", model.GetPatternInfo(k.Kind).Name, joinInts(k.Members))
		}
	}

	if len(result.ResolvedGroups) > 0 {
		fmt.Fprintf(out, "\nResolved Groups (%d):\n", len(result.ResolvedGroups))
		for _, k := range result.ResolvedGroups {
			fmt.Fprintf(out, "  [-] [%s] members %s\n", model.GetPatternInfo(k.Kind).Name, joinInts(k.Members))
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d groups\n", result.UnchangedCount)
	}
}

// formatDirection formats the change direction for display.
func formatDirection(direction string) string {
	switch direction {
	case directionMore:
		return "MORE (additional candidate groups)"
	case directionFewer:
		return "FEWER (candidate groups lost)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	} else if delta < 0 {
		return strconv.Itoa(delta)
	}
	return "0"
}

func formatChanged(changed bool) string {
	if changed {
		return "changed"
	}
	return "-"
}

func formatCentralID(id int) string {
	if id < 0 {
		return "none"
	}
	return strconv.Itoa(id)
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
