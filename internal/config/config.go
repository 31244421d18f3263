package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/lensfind/internal/lensing"
)

// Default configuration values.
const (
	// DefaultBatchSize is the number of catalogs analysed concurrently in
	// batch mode. Each analysis is CPU bound, so values far above the
	// number of cores only add memory pressure.
	DefaultBatchSize = 10

	// DefaultWatchDebounce is how long the watch command waits after the
	// last write to a catalog before analysing it. Editors and exporters
	// often write a file in several chunks.
	DefaultWatchDebounce = 500 * time.Millisecond

	// AppName is the application name used for XDG directory paths.
	AppName = "lensfind"
)

// Config holds all configuration options for lensfind.
// It is populated from CLI flags and passed through the application
// rather than kept in global state.
type Config struct {
	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// BatchSize is the number of concurrent analyses when processing
	// multiple catalogs.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .lensfind in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// CatalogConfigs holds the per-catalog settings loaded from the config
	// file. Nil when no config file was found.
	CatalogConfigs *File

	// JSONReport enables JSON report output instead of human-readable format.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output with tables, alerts
	// and a pattern chart. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	// Directories are created automatically if they don't exist.
	ReportFile string

	// Targets is the list of catalog files to analyse.
	Targets []string

	// DBDir is the directory path for storing the SQLite database.
	// Defaults to the XDG data directory (~/.local/share/lensfind on Linux).
	DBDir string

	// SaveToDB indicates whether to save runs to the database.
	SaveToDB bool

	// Dimensions overrides the image size for every catalog.
	// The zero value means "not set".
	Dimensions lensing.Dimensions

	// ImagePath is an image whose size is used for catalogs that carry no
	// dimensions of their own.
	ImagePath string

	// Detector holds thresholds given on the command line. Zero fields
	// are not set and fall back to the config file, then to the defaults.
	Detector DetectorConfig

	// WatchDebounce is the quiet period before a changed catalog is
	// analysed by the watch command.
	WatchDebounce time.Duration
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		BatchSize:     DefaultBatchSize,
		DBDir:         XDGDataDir(),
		SaveToDB:      true,
		WatchDebounce: DefaultWatchDebounce,
	}
}

// XDGDataDir returns the XDG data directory for lensfind.
// On Linux: ~/.local/share/lensfind
// On macOS: ~/Library/Application Support/lensfind
// On Windows: %LOCALAPPDATA%\lensfind
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for lensfind.
// On Linux: ~/.config/lensfind
// On macOS: ~/Library/Application Support/lensfind
// On Windows: %APPDATA%\lensfind
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if err := validateDimensions(c.Dimensions); err != nil {
		return err
	}

	if err := c.Detector.Validate(); err != nil {
		return err
	}

	return nil
}

// validateDimensions accepts the zero value (unset) or a valid size.
func validateDimensions(d lensing.Dimensions) error {
	if d == (lensing.Dimensions{}) || d.Valid() {
		return nil
	}
	return fmt.Errorf("%w: got %gx%g", ErrInvalidDimensions, d.Width, d.Height)
}

// CatalogSettings is everything the pipeline needs to analyse one catalog.
type CatalogSettings struct {
	// Dimensions is the explicit image size, zero when the catalog or an
	// image should provide it.
	Dimensions lensing.Dimensions

	// ImagePath is the image to read the size from, if any.
	ImagePath string

	// Options are the detector thresholds.
	Options lensing.Options
}

// Resolve returns the settings for the named catalog.
//
// Precedence, highest first: command-line values, the catalog's entry in
// the config file, the config file defaults, the built-in defaults.
func (c *Config) Resolve(catalogName string) CatalogSettings {
	var fileCfg CatalogConfig
	if c.CatalogConfigs != nil {
		fileCfg = c.CatalogConfigs.GetCatalogConfig(catalogName)
	}

	settings := CatalogSettings{
		Dimensions: lensing.Dimensions{Width: fileCfg.Width, Height: fileCfg.Height},
		ImagePath:  fileCfg.Image,
		Options:    c.Detector.Apply(fileCfg.Detector.Apply(lensing.DefaultOptions())),
	}
	if c.Dimensions != (lensing.Dimensions{}) {
		settings.Dimensions = c.Dimensions
	}
	if c.ImagePath != "" {
		settings.ImagePath = c.ImagePath
	}
	return settings
}
