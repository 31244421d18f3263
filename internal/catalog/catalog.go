package catalog

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/lensfind/internal/lensing"
)

// Catalog is the list of sources detected in one image.
type Catalog struct {
	// Name identifies the catalog in reports; by default the file name
	// without extension.
	Name string `json:"name"`
	// Path is the file the catalog was loaded from, if any.
	Path string `json:"path,omitempty"`
	// Dimensions is the size of the source image. It is the zero value
	// when no source of dimensions was available.
	Dimensions lensing.Dimensions    `json:"dimensions"`
	Sources    []lensing.PointSource `json:"sources"`
}

// HasDimensions reports whether the catalog knows its image size.
func (c *Catalog) HasDimensions() bool {
	return c.Dimensions.Valid()
}

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	dims      lensing.Dimensions
	imagePath string
	name      string
}

// WithDimensions overrides any image size found in the file.
// A zero or invalid value is ignored.
func WithDimensions(d lensing.Dimensions) Option {
	return func(o *loadOptions) {
		o.dims = d
	}
}

// WithImage names the image the catalog was extracted from. It is only
// read when neither WithDimensions nor the file provides a size.
func WithImage(path string) Option {
	return func(o *loadOptions) {
		o.imagePath = path
	}
}

// WithName overrides the catalog name.
func WithName(name string) Option {
	return func(o *loadOptions) {
		o.name = name
	}
}

// Load reads the catalog at path. The format is chosen by extension.
func Load(path string, opts ...Option) (*Catalog, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	f, err := os.Open(path) //nolint:gosec // path is supplied by the user
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	var cat *Catalog
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".txt":
		cat, err = ReadCSV(f)
	case ".json":
		cat, err = ReadJSON(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cat.Path = path
	cat.Name = o.name
	if cat.Name == "" {
		cat.Name = NameFromPath(path)
	}

	switch {
	case o.dims.Valid():
		cat.Dimensions = o.dims
	case cat.HasDimensions():
	case o.imagePath != "":
		d, err := ImageDimensions(o.imagePath)
		if err != nil {
			return nil, err
		}
		cat.Dimensions = d
	}
	return cat, nil
}

// NameFromPath returns the default catalog name for path: the file name
// without its extension.
func NameFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// checkSource rejects records a detector would refuse. seen tracks IDs
// already accepted.
func checkSource(s lensing.PointSource, line int, seen map[int]struct{}) error {
	switch {
	case !finite(s.X):
		return &RecordError{Line: line, Field: "x", Err: errors.New("non-finite coordinate")}
	case !finite(s.Y):
		return &RecordError{Line: line, Field: "y", Err: errors.New("non-finite coordinate")}
	case !finite(s.Flux):
		return &RecordError{Line: line, Field: "flux", Err: errors.New("non-finite flux")}
	case s.Flux < 0:
		return &RecordError{Line: line, Field: "flux", Err: fmt.Errorf("negative flux %v", s.Flux)}
	}
	if _, dup := seen[s.ID]; dup {
		return &RecordError{Line: line, Field: "id", Err: fmt.Errorf("duplicate id %d", s.ID)}
	}
	seen[s.ID] = struct{}{}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
