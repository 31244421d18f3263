package catalog

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/lensfind/internal/lensing"
)

// columnAliases maps accepted header names to canonical columns.
var columnAliases = map[string]string{
	"id":         "id",
	"x":          "x",
	"xcentroid":  "x",
	"x_centroid": "x",
	"y":          "y",
	"ycentroid":  "y",
	"y_centroid": "y",
	"flux":       "flux",
}

// ReadCSV parses a CSV catalog. The returned catalog has no name or path.
func ReadCSV(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	cat := &Catalog{}
	if err := readHeaderComments(data, &cat.Dimensions); err != nil {
		return nil, err
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return cat, nil
	}
	if err != nil {
		return nil, err
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]struct{})
	for n := 1; ; n++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)

		s, err := parseRecord(rec, cols, line)
		if err != nil {
			return nil, err
		}
		if _, ok := cols["id"]; !ok {
			s.ID = n
		}
		if err := checkSource(s, line, seen); err != nil {
			return nil, err
		}
		cat.Sources = append(cat.Sources, s)
	}
	return cat, nil
}

// readHeaderComments picks "# width=" and "# height=" out of comment lines.
func readHeaderComments(data []byte, dims *lensing.Dimensions) error {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(text, "#") {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(text, "#")), "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key != "width" && key != "height" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return &RecordError{Line: line, Field: key, Err: err}
		}
		if key == "width" {
			dims.Width = v
		} else {
			dims.Height = v
		}
	}
	return sc.Err()
}

// mapColumns returns the field index of each canonical column.
func mapColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name, ok := columnAliases[strings.ToLower(strings.TrimSpace(h))]
		if !ok {
			continue
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, required := range []string{"x", "y", "flux"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}
	return cols, nil
}

func parseRecord(rec []string, cols map[string]int, line int) (lensing.PointSource, error) {
	var s lensing.PointSource
	field := func(name string) (string, error) {
		i := cols[name]
		if i >= len(rec) {
			return "", &RecordError{Line: line, Field: name, Err: errors.New("missing value")}
		}
		return strings.TrimSpace(rec[i]), nil
	}
	float := func(name string, dst *float64) error {
		raw, err := field(name)
		if err != nil {
			return err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return &RecordError{Line: line, Field: name, Err: err}
		}
		*dst = v
		return nil
	}

	if _, ok := cols["id"]; ok {
		raw, err := field("id")
		if err != nil {
			return s, err
		}
		id, err := strconv.Atoi(raw)
		if err != nil {
			return s, &RecordError{Line: line, Field: "id", Err: err}
		}
		s.ID = id
	}
	if err := float("x", &s.X); err != nil {
		return s, err
	}
	if err := float("y", &s.Y); err != nil {
		return s, err
	}
	if err := float("flux", &s.Flux); err != nil {
		return s, err
	}
	return s, nil
}
