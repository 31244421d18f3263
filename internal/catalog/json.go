package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/nao1215/lensfind/internal/lensing"
)

// jsonCatalog is the on-disk JSON layout.
type jsonCatalog struct {
	Width   float64               `json:"width"`
	Height  float64               `json:"height"`
	Sources []lensing.PointSource `json:"sources"`
}

// jsonSource is a source as read. ID is nil when the record has no "id".
type jsonSource struct {
	ID   *int    `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Flux float64 `json:"flux"`
}

// ReadJSON parses a JSON catalog. The returned catalog has no name or path.
//
// Like a CSV catalog without an id column, a catalog whose sources carry
// no "id" is numbered 1, 2, ... in file order. A catalog that gives IDs to
// some sources only is rejected.
func ReadJSON(r io.Reader) (*Catalog, error) {
	var raw struct {
		Width   float64      `json:"width"`
		Height  float64      `json:"height"`
		Sources []jsonSource `json:"sources"`
	}
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}

	numbered := len(raw.Sources) > 0 && raw.Sources[0].ID == nil
	sources := make([]lensing.PointSource, 0, len(raw.Sources))
	seen := make(map[int]struct{}, len(raw.Sources))
	for i, js := range raw.Sources {
		s := lensing.PointSource{X: js.X, Y: js.Y, Flux: js.Flux}
		switch {
		case numbered && js.ID != nil, !numbered && js.ID == nil:
			return nil, &RecordError{Line: i + 1, Field: "id", Err: errors.New("id must be given for every source or for none")}
		case numbered:
			s.ID = i + 1
		default:
			s.ID = *js.ID
		}
		if err := checkSource(s, i+1, seen); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return &Catalog{
		Dimensions: lensing.Dimensions{Width: raw.Width, Height: raw.Height},
		Sources:    sources,
	}, nil
}

// WriteJSON writes cat in the layout ReadJSON accepts.
func WriteJSON(w io.Writer, cat *Catalog) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonCatalog{
		Width:   cat.Dimensions.Width,
		Height:  cat.Dimensions.Height,
		Sources: cat.Sources,
	})
}
