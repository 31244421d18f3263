package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Write writes cat as CSV in the layout ReadCSV accepts, with the image
// size in "# width=" and "# height=" comment lines when known.
func Write(w io.Writer, cat *Catalog) error {
	if cat.HasDimensions() {
		if _, err := fmt.Fprintf(w, "# width=%s\n# height=%s\n",
			formatFloat(cat.Dimensions.Width), formatFloat(cat.Dimensions.Height)); err != nil {
			return err
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "x", "y", "flux"}); err != nil {
		return err
	}
	for _, s := range cat.Sources {
		rec := []string{strconv.Itoa(s.ID), formatFloat(s.X), formatFloat(s.Y), formatFloat(s.Flux)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
