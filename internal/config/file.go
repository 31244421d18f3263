package config

import (
	"fmt"

	"github.com/soniakeys/unit"

	"github.com/nao1215/lensfind/internal/lensing"
)

// DetectorConfig holds detector thresholds as written in the config file
// or given on the command line. A zero field is not set.
type DetectorConfig struct {
	// CentralRadiusFraction scales the image width into the radius of the
	// central region.
	CentralRadiusFraction float64 `yaml:"centralRadiusFraction,omitempty"`

	// MultiImageSize is the number of sources per multi-image group.
	MultiImageSize int `yaml:"multiImageSize,omitempty"`

	MaxFluxRatio      float64 `yaml:"maxFluxRatio,omitempty"`
	MaxSeparation     float64 `yaml:"maxSeparation,omitempty"`
	MaxCentroidOffset float64 `yaml:"maxCentroidOffset,omitempty"`

	// ArcSize is the number of sources per arc.
	ArcSize int `yaml:"arcSize,omitempty"`

	MaxRadialCV float64 `yaml:"maxRadialCV,omitempty"`

	// MinAngularSpanDeg is the minimum arc span in degrees.
	MinAngularSpanDeg float64 `yaml:"minAngularSpanDeg,omitempty"`

	// MaxCombinations caps the groups a single search may evaluate.
	MaxCombinations uint64 `yaml:"maxCombinations,omitempty"`
}

// Apply returns base with every set field of d copied over it.
func (d DetectorConfig) Apply(base lensing.Options) lensing.Options {
	if d.CentralRadiusFraction != 0 {
		base.CentralRadiusFraction = d.CentralRadiusFraction
	}
	if d.MultiImageSize != 0 {
		base.MultiImageSize = d.MultiImageSize
	}
	if d.MaxFluxRatio != 0 {
		base.MaxFluxRatio = d.MaxFluxRatio
	}
	if d.MaxSeparation != 0 {
		base.MaxSeparation = d.MaxSeparation
	}
	if d.MaxCentroidOffset != 0 {
		base.MaxCentroidOffset = d.MaxCentroidOffset
	}
	if d.ArcSize != 0 {
		base.ArcSize = d.ArcSize
	}
	if d.MaxRadialCV != 0 {
		base.MaxRadialCV = d.MaxRadialCV
	}
	if d.MinAngularSpanDeg != 0 {
		base.MinAngularSpan = unit.AngleFromDeg(d.MinAngularSpanDeg)
	}
	if d.MaxCombinations != 0 {
		base.MaxCombinations = d.MaxCombinations
	}
	return base
}

// Validate checks the set fields by applying them to the defaults.
func (d DetectorConfig) Validate() error {
	if err := d.Apply(lensing.DefaultOptions()).Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidThreshold, err)
	}
	return nil
}

// merge returns d with every set field of o copied over it.
func (d DetectorConfig) merge(o DetectorConfig) DetectorConfig {
	if o.CentralRadiusFraction != 0 {
		d.CentralRadiusFraction = o.CentralRadiusFraction
	}
	if o.MultiImageSize != 0 {
		d.MultiImageSize = o.MultiImageSize
	}
	if o.MaxFluxRatio != 0 {
		d.MaxFluxRatio = o.MaxFluxRatio
	}
	if o.MaxSeparation != 0 {
		d.MaxSeparation = o.MaxSeparation
	}
	if o.MaxCentroidOffset != 0 {
		d.MaxCentroidOffset = o.MaxCentroidOffset
	}
	if o.ArcSize != 0 {
		d.ArcSize = o.ArcSize
	}
	if o.MaxRadialCV != 0 {
		d.MaxRadialCV = o.MaxRadialCV
	}
	if o.MinAngularSpanDeg != 0 {
		d.MinAngularSpanDeg = o.MinAngularSpanDeg
	}
	if o.MaxCombinations != 0 {
		d.MaxCombinations = o.MaxCombinations
	}
	return d
}

// CatalogConfig holds settings for a single catalog.
type CatalogConfig struct {
	// Width and Height give the image size when the catalog file does not.
	Width  float64 `yaml:"width,omitempty"`
	Height float64 `yaml:"height,omitempty"`

	// Image is an image file whose size is used when no width and height
	// are known.
	Image string `yaml:"image,omitempty"`

	// Detector overrides thresholds for this catalog.
	Detector DetectorConfig `yaml:"detector,omitempty"`
}

// File represents the structure of the .lensfind configuration file.
type File struct {
	// Catalogs maps catalog names (file names without extension) to their
	// settings.
	Catalogs map[string]CatalogConfig `yaml:"catalogs,omitempty"`

	// Defaults applies to every catalog unless overridden in Catalogs.
	Defaults CatalogConfig `yaml:"defaults,omitempty"`
}

// GetCatalogConfig returns the configuration for a catalog, merged with
// the defaults.
func (cf *File) GetCatalogConfig(name string) CatalogConfig {
	result := cf.Defaults

	if cc, ok := cf.Catalogs[name]; ok {
		if cc.Width != 0 {
			result.Width = cc.Width
		}
		if cc.Height != 0 {
			result.Height = cc.Height
		}
		if cc.Image != "" {
			result.Image = cc.Image
		}
		result.Detector = result.Detector.merge(cc.Detector)
	}

	return result
}

// Validate checks the defaults and every catalog entry.
func (cf *File) Validate() error {
	if err := cf.Defaults.validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	for name := range cf.Catalogs {
		if err := cf.GetCatalogConfig(name).validate(); err != nil {
			return fmt.Errorf("catalog %q: %w", name, err)
		}
	}
	return nil
}

func (cc CatalogConfig) validate() error {
	if cc.Width < 0 || cc.Height < 0 {
		return fmt.Errorf("%w: got %gx%g", ErrInvalidDimensions, cc.Width, cc.Height)
	}
	return cc.Detector.Validate()
}
