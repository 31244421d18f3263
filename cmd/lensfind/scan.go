package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/lensfind/internal/catalog"
	"github.com/nao1215/lensfind/internal/config"
	"github.com/nao1215/lensfind/internal/database"
	"github.com/nao1215/lensfind/internal/lensing"
	lflog "github.com/nao1215/lensfind/internal/log"
	"github.com/nao1215/lensfind/internal/model"
	"github.com/nao1215/lensfind/internal/pipeline"
	"github.com/nao1215/lensfind/internal/report"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [catalog...]",
		Short: "Search source catalogs for lensing patterns",
		Long: `Scan loads one or more source catalogs and searches each for:
- a central lensing mass (the brightest source near the image centre)
- Einstein Cross candidates: 4 sources of similar flux tightly grouped
  around the lens
- Gravitational arcs: 5 sources at a common radius spanning a wide angle

Catalogs are CSV (columns id, x, y, flux; xcentroid/ycentroid are accepted)
or JSON files. The image size is taken from --width/--height, from
"# width=" and "# height=" comments in the catalog, or from --image.

Examples:
  # Scan a single catalog
  lensfind scan field.csv

  # Scan several catalogs concurrently
  lensfind scan --batch 4 fields/*.csv

  # Give the image size explicitly
  lensfind scan --width 2048 --height 2048 abell2218.csv

  # Read the image size from the original image
  lensfind scan --image abell2218.jpg abell2218.csv

  # Output a Markdown report to a file
  lensfind scan --markdown -o reports/abell2218.md abell2218.csv

Configuration file (.lensfind) example:
  defaults:
    detector:
      maxSeparation: 120
  catalogs:
    abell2218:
      width: 2048
      height: 2048
      detector:
        minAngularSpanDeg: 45`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of catalogs analysed concurrently")

	addInputFlags(cmd)
	addReportFlags(cmd)

	// Report file
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	addDatabaseFlags(cmd)

	return cmd
}

// addInputFlags registers the configuration, image and threshold flags
// shared by scan and watch.
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .lensfind in current or home directory)")

	cmd.Flags().Float64("width", 0, "Image width in pixels (overrides the catalog)")
	cmd.Flags().Float64("height", 0, "Image height in pixels (overrides the catalog)")
	cmd.Flags().StringP("image", "i", "", "Image to read the size from when the catalog has none")

	cmd.Flags().Float64("max-flux-ratio", 0, "Maximum brightest/faintest flux ratio in an Einstein Cross group")
	cmd.Flags().Float64("max-separation", 0, "Maximum pairwise distance inside an Einstein Cross group")
	cmd.Flags().Float64("max-centroid-offset", 0, "Maximum distance of a group centroid from the lens")
	cmd.Flags().Float64("max-radial-cv", 0, "Maximum coefficient of variation of arc radii")
	cmd.Flags().Float64("min-arc-span", 0, "Minimum angular span of an arc in degrees")
	cmd.Flags().Uint64("max-combinations", 0, "Skip a search that would evaluate more groups than this (0: no limit)")
}

// addReportFlags registers the report format flags.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().Bool("details", false, "Include every candidate group in the text report")
}

// addDatabaseFlags registers the run database flags.
func addDatabaseFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-db", false, "Do not save runs to the database")
	cmd.Flags().String("db-dir", "", "Database directory (default: XDG data directory)")
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, err := setupLogger(cmd)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	details, err := cmd.Flags().GetBool("details")
	if err != nil {
		return err
	}

	return runScan(ctx, cfg, logger, cmd.OutOrStdout(), details)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error

	if cmd.Flags().Lookup("batch") != nil {
		cfg.BatchSize, err = cmd.Flags().GetInt("batch")
		if err != nil {
			return nil, err
		}
	}

	if err := loadConfigFile(cmd, cfg); err != nil {
		return nil, err
	}

	cfg.Dimensions.Width, err = cmd.Flags().GetFloat64("width")
	if err != nil {
		return nil, err
	}
	cfg.Dimensions.Height, err = cmd.Flags().GetFloat64("height")
	if err != nil {
		return nil, err
	}
	cfg.ImagePath, err = cmd.Flags().GetString("image")
	if err != nil {
		return nil, err
	}

	cfg.Detector, err = detectorFlags(cmd)
	if err != nil {
		return nil, err
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}
	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Lookup("output") != nil {
		cfg.ReportFile, err = cmd.Flags().GetString("output")
		if err != nil {
			return nil, err
		}
	}

	noDB, err := cmd.Flags().GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	if dir, err := cmd.Flags().GetString("db-dir"); err != nil {
		return nil, err
	} else if dir != "" {
		cfg.DBDir = dir
	}

	cfg.Targets = args

	return cfg, nil
}

// loadConfigFile fills cfg.CatalogConfigs from the --config flag or the
// default search path. A missing file is an error only when it was named
// explicitly.
func loadConfigFile(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.CatalogConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.CatalogConfigs = &config.File{
			Catalogs: make(map[string]config.CatalogConfig),
		}
	}
	return nil
}

// detectorFlags reads the threshold overrides registered by addInputFlags.
func detectorFlags(cmd *cobra.Command) (config.DetectorConfig, error) {
	var d config.DetectorConfig
	var err error

	floats := []struct {
		name string
		dst  *float64
	}{
		{"max-flux-ratio", &d.MaxFluxRatio},
		{"max-separation", &d.MaxSeparation},
		{"max-centroid-offset", &d.MaxCentroidOffset},
		{"max-radial-cv", &d.MaxRadialCV},
		{"min-arc-span", &d.MinAngularSpanDeg},
	}
	for _, f := range floats {
		if *f.dst, err = cmd.Flags().GetFloat64(f.name); err != nil {
			return d, err
		}
	}

	d.MaxCombinations, err = cmd.Flags().GetUint64("max-combinations")
	return d, err
}

// setupLogger creates a structured logger on stderr based on the verbose
// and log-format flags.
func setupLogger(cmd *cobra.Command) (*slog.Logger, error) {
	formatName, err := cmd.Flags().GetString("log-format")
	if err != nil {
		formatName, err = cmd.Root().PersistentFlags().GetString("log-format")
		if err != nil {
			formatName = string(lflog.FormatText)
		}
	}

	format, err := lflog.ParseFormat(formatName)
	if err != nil {
		return nil, err
	}
	return lflog.New(os.Stderr, getVerboseFlag(cmd), format), nil
}

// scanner holds what every analysed catalog shares during one scan.
type scanner struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *database.RunDB
	status io.Writer
	writer report.Writer

	mu     sync.Mutex
	failed int
}

// newScanner opens the run database and the report destination named in
// cfg. The returned function releases both.
func newScanner(cfg *config.Config, logger *slog.Logger, stdout io.Writer, details bool) (*scanner, func(), error) {
	s := &scanner{
		cfg:    cfg,
		logger: logger,
		status: stdout,
	}

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		logger.Info("database opened", "path", db.Path())
		s.db = db
	}

	output, closeOutput, err := openOutput(cfg.ReportFile, stdout)
	if err != nil {
		if s.db != nil {
			_ = s.db.Close()
		}
		return nil, nil, err
	}
	s.writer = newReportWriter(cfg, output, details)

	return s, func() {
		closeOutput()
		if s.db != nil {
			_ = s.db.Close()
		}
	}, nil
}

// runScan analyses every target and writes a report for each.
// It returns an error when at least one catalog could not be analysed.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer, details bool) error {
	if len(cfg.Targets) == 0 {
		return errors.New("no catalogs provided (specify one or more catalog files as arguments)")
	}

	logger.Info("starting scan",
		"targets", cfg.Targets,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	s, release, err := newScanner(cfg, logger, stdout, details)
	if err != nil {
		return err
	}
	defer release()

	if len(cfg.Targets) > 1 && cfg.BatchSize > 1 {
		err = s.runBatch(ctx)
	} else {
		err = s.runSequential(ctx)
	}
	if err != nil {
		return err
	}

	if s.failed > 0 {
		return fmt.Errorf("%d of %d catalogs could not be analysed", s.failed, len(cfg.Targets))
	}
	return nil
}

// runSequential analyses targets one at a time.
func (s *scanner) runSequential(ctx context.Context) error {
	for _, target := range s.cfg.Targets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.analyse(ctx, target)
	}

	return nil
}

// analyse runs the pipeline for one catalog and reports the outcome.
func (s *scanner) analyse(ctx context.Context, target string) {
	analysis := model.NewAnalysisReport(catalog.NameFromPath(target), target)

	fmt.Fprintf(s.status, "Analysing %s...\n", target)
	startTime := time.Now()

	if err := createPipelineForCatalog(s.cfg, s.logger, target).Execute(ctx, analysis); err != nil {
		s.logger.Debug("analysis ended with error", "catalog", target, "error", err)
	}

	fmt.Fprintf(s.status, "Analysis completed in %s\n\n", time.Since(startTime).Round(time.Millisecond))
	s.finish(ctx, analysis)
}

// runBatch analyses targets concurrently using BatchProcessor.
func (s *scanner) runBatch(ctx context.Context) error {
	fmt.Fprintf(s.status, "Starting batch analysis of %d catalogs (concurrency: %d)...\n\n",
		len(s.cfg.Targets), s.cfg.BatchSize)

	startTime := time.Now()

	bp := pipeline.NewBatchProcessor(
		func(path string) *pipeline.Pipeline {
			return createPipelineForCatalog(s.cfg, s.logger, path)
		},
		pipeline.WithConcurrency(s.cfg.BatchSize),
		pipeline.WithBatchLogger(s.logger),
	)

	err := bp.ProcessBatchWithCallback(ctx, s.cfg.Targets, func(analysis *model.AnalysisReport, index int) {
		s.mu.Lock()
		defer s.mu.Unlock()

		fmt.Fprintf(s.status, "[%d/%d] Analysis completed: %s\n", index+1, len(s.cfg.Targets), analysis.CatalogPath)
		s.finish(ctx, analysis)
	})

	fmt.Fprintf(s.status, "\nBatch analysis completed in %s\n", time.Since(startTime).Round(time.Millisecond))

	return err
}

// finish writes and stores one report. Callers serialise access.
func (s *scanner) finish(ctx context.Context, analysis *model.AnalysisReport) {
	if analysisFailed(analysis) {
		s.failed++
		fmt.Fprintf(s.status, "Error analysing %s: %s\n", analysis.CatalogPath, analysis.ErrorMessage)
	}

	if _, err := s.writer.Write(analysis); err != nil {
		s.logger.Error("report failed", "catalog", analysis.CatalogPath, "error", err)
	}

	if err := saveRun(ctx, s.db, analysis, s.logger); err != nil {
		s.logger.Error("failed to save run", "catalog", analysis.CatalogPath, "error", err)
	}
}

// analysisFailed reports whether a report ended in a real failure. An
// empty catalog is a valid, if uninteresting, result.
func analysisFailed(analysis *model.AnalysisReport) bool {
	if !analysis.Failed() {
		return false
	}
	return !errors.Is(analysis.Error, lensing.ErrNoSources)
}

// createPipelineForCatalog creates a pipeline with the settings that apply
// to the catalog at path.
func createPipelineForCatalog(cfg *config.Config, logger *slog.Logger, path string) *pipeline.Pipeline {
	settings := cfg.Resolve(catalog.NameFromPath(path))

	return pipeline.DefaultPipeline(
		[]pipeline.Option{pipeline.WithLogger(logger)},
		pipeline.WithPipelineDimensions(settings.Dimensions),
		pipeline.WithPipelineImage(settings.ImagePath),
		pipeline.WithPipelineDetectOptions(settings.Options),
	)
}

// openOutput returns the report destination: the named file, created with
// its directories, or stdout when path is empty.
func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// newReportWriter selects the writer for the configured format.
func newReportWriter(cfg *config.Config, output io.Writer, details bool) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(details))
	}
}

// saveRun saves the report to the database.
// If db is nil, this function is a no-op.
func saveRun(ctx context.Context, db *database.RunDB, analysis *model.AnalysisReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	if analysis.Summary == nil {
		analysis.Summary = model.NewSummary(analysis)
	}

	id, err := db.SaveRun(ctx, analysis)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	logger.Info("run saved to database", "catalog", analysis.CatalogName, "id", id)
	return nil
}
