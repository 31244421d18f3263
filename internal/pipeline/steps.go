package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/lensfind/internal/catalog"
	"github.com/nao1215/lensfind/internal/lensing"
	"github.com/nao1215/lensfind/internal/model"
)

// LoadCatalogStep reads the catalog named by report.CatalogPath and
// stores its sources and image size in the report.
type LoadCatalogStep struct {
	// dims overrides the image size found in the catalog when valid.
	dims lensing.Dimensions

	// imagePath names an image to read the size from when neither dims
	// nor the catalog provide one.
	imagePath string

	// logger for structured logging.
	logger *slog.Logger
}

// LoadCatalogStepOption configures a LoadCatalogStep.
type LoadCatalogStepOption func(*LoadCatalogStep)

// WithLoadDimensions sets explicit image dimensions.
func WithLoadDimensions(d lensing.Dimensions) LoadCatalogStepOption {
	return func(s *LoadCatalogStep) {
		s.dims = d
	}
}

// WithLoadImage sets the image to take the dimensions from.
func WithLoadImage(path string) LoadCatalogStepOption {
	return func(s *LoadCatalogStep) {
		s.imagePath = path
	}
}

// WithLoadLogger sets a custom logger for the load step.
func WithLoadLogger(logger *slog.Logger) LoadCatalogStepOption {
	return func(s *LoadCatalogStep) {
		s.logger = logger
	}
}

// NewLoadCatalogStep creates a new catalog loading step.
func NewLoadCatalogStep(opts ...LoadCatalogStepOption) *LoadCatalogStep {
	s := &LoadCatalogStep{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *LoadCatalogStep) Name() string {
	return "load_catalog"
}

// Do executes the load step.
func (s *LoadCatalogStep) Do(_ context.Context, report *model.AnalysisReport) error {
	var opts []catalog.Option
	if s.dims.Valid() {
		opts = append(opts, catalog.WithDimensions(s.dims))
	}
	if s.imagePath != "" {
		opts = append(opts, catalog.WithImage(s.imagePath))
	}
	if report.CatalogName != "" {
		opts = append(opts, catalog.WithName(report.CatalogName))
	}

	cat, err := catalog.Load(report.CatalogPath, opts...)
	if err != nil {
		return err
	}

	report.CatalogName = cat.Name
	report.Dimensions = cat.Dimensions
	report.Sources = cat.Sources
	report.SourceCount = len(cat.Sources)

	s.logger.Debug("catalog loaded",
		"catalog", cat.Name,
		"sources", len(cat.Sources),
		"width", cat.Dimensions.Width,
		"height", cat.Dimensions.Height,
	)
	return nil
}

// DetectStep runs the lensing detector on the loaded sources.
type DetectStep struct {
	// opts are the detector thresholds.
	opts lensing.Options

	// logger for structured logging.
	logger *slog.Logger
}

// DetectStepOption configures a DetectStep.
type DetectStepOption func(*DetectStep)

// WithDetectOptions sets the detector thresholds.
func WithDetectOptions(opts lensing.Options) DetectStepOption {
	return func(s *DetectStep) {
		s.opts = opts
	}
}

// WithDetectLogger sets a custom logger for the detect step.
func WithDetectLogger(logger *slog.Logger) DetectStepOption {
	return func(s *DetectStep) {
		s.logger = logger
	}
}

// NewDetectStep creates a new detection step using the default thresholds.
func NewDetectStep(opts ...DetectStepOption) *DetectStep {
	s := &DetectStep{
		opts:   lensing.DefaultOptions(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *DetectStep) Name() string {
	return "detect"
}

// Do executes the detection step. A fatal detector status is returned
// as an error after the partial result has been recorded.
func (s *DetectStep) Do(_ context.Context, report *model.AnalysisReport) error {
	report.Options = s.opts

	res, err := lensing.Detect(report.Sources, report.Dimensions, s.opts)
	report.ApplyResult(res)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	c := res.Central
	s.logger.Info("central object selected",
		"catalog", report.CatalogName,
		"id", c.Source.ID,
		"x", c.Source.X,
		"y", c.Source.Y,
		"flux", c.Source.Flux,
		"inRegion", c.InRegion,
	)
	s.logger.Info("search finished",
		"catalog", report.CatalogName,
		"multiImage", res.MultiImage.Count(),
		"multiImageStatus", res.MultiImage.Status.String(),
		"arcs", res.Arc.Count(),
		"arcStatus", res.Arc.Status.String(),
		"minArcSpan", s.opts.MinAngularSpan,
		"evaluated", res.MultiImage.Evaluated+res.Arc.Evaluated,
	)
	return nil
}

// SummaryStep condenses the report into a model.Summary.
type SummaryStep struct{}

// NewSummaryStep creates a new summary step.
func NewSummaryStep() *SummaryStep {
	return &SummaryStep{}
}

// Name returns the step name.
func (s *SummaryStep) Name() string {
	return "summary"
}

// Do executes the summary step.
func (s *SummaryStep) Do(_ context.Context, report *model.AnalysisReport) error {
	report.Summary = model.NewSummary(report)
	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// Dimensions overrides the catalog's image size when valid.
	Dimensions lensing.Dimensions

	// ImagePath names the image to read dimensions from.
	ImagePath string

	// Options are the detector thresholds.
	Options lensing.Options
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineDimensions sets explicit image dimensions.
func WithPipelineDimensions(d lensing.Dimensions) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Dimensions = d
	}
}

// WithPipelineImage sets the image to take the dimensions from.
func WithPipelineImage(path string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.ImagePath = path
	}
}

// WithPipelineDetectOptions sets the detector thresholds.
func WithPipelineDetectOptions(opts lensing.Options) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Options = opts
	}
}

// DefaultPipeline creates the standard load, detect and summary pipeline.
//
// The first parameter accepts pipeline options (WithLogger, etc).
// The variadic parameter accepts pipeline config options.
func DefaultPipeline(pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{
		Options: lensing.DefaultOptions(),
	}
	for _, opt := range configOpts {
		opt(cfg)
	}

	p.AddSteps(
		NewLoadCatalogStep(
			WithLoadDimensions(cfg.Dimensions),
			WithLoadImage(cfg.ImagePath),
			WithLoadLogger(p.logger),
		),
		NewDetectStep(
			WithDetectOptions(cfg.Options),
			WithDetectLogger(p.logger),
		),
		NewSummaryStep(),
	)

	return p
}
