package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/lensfind/internal/catalog"
	"github.com/nao1215/lensfind/internal/lensing"
	"github.com/nao1215/lensfind/internal/synth"
)

// NewSimulateCmd creates the simulate command.
func NewSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate a synthetic catalog with planted lensing patterns",
		Long: `Simulate writes a catalog with a bright lens at the image centre and
the requested patterns planted around it. Use it to try thresholds or to
check a detector change against known answers.

The output format follows the file extension: .json writes JSON, anything
else writes CSV. Without --out the CSV goes to stdout.

Examples:
  # Cross and arc on a 400x400 image
  lensfind simulate --out scene.csv

  # Only an arc, with 200 background sources
  lensfind simulate --pattern arc --background 200 --seed 7 --out arc.json`,
		Args: cobra.NoArgs,
		RunE: runSimulateCmd,
	}

	cmd.Flags().String("pattern", string(synth.PatternBoth),
		"Patterns to plant: "+joinPatterns(synth.Patterns()))
	cmd.Flags().Int64("seed", 0, "Random seed (0: derived from the current time)")
	cmd.Flags().Float64("noise", 0.02, "Relative jitter applied to positions and fluxes")
	cmd.Flags().Float64("width", 400, "Image width in pixels")
	cmd.Flags().Float64("height", 400, "Image height in pixels")
	cmd.Flags().Int("background", 0, "Number of dim background sources")
	cmd.Flags().StringP("out", "o", "", "Output file (default: stdout as CSV)")

	return cmd
}

func runSimulateCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	patternName, err := flags.GetString("pattern")
	if err != nil {
		return err
	}
	pattern := synth.Pattern(strings.ToLower(patternName))
	if !pattern.Valid() {
		return fmt.Errorf("unknown pattern %q (valid: %s)", patternName, joinPatterns(synth.Patterns()))
	}

	seed, err := flags.GetInt64("seed")
	if err != nil {
		return err
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	noise, err := flags.GetFloat64("noise")
	if err != nil {
		return err
	}
	background, err := flags.GetInt("background")
	if err != nil {
		return err
	}
	if background < 0 {
		return fmt.Errorf("background must not be negative, got %d", background)
	}

	var dims lensing.Dimensions
	if dims.Width, err = flags.GetFloat64("width"); err != nil {
		return err
	}
	if dims.Height, err = flags.GetFloat64("height"); err != nil {
		return err
	}
	if !dims.Valid() {
		return fmt.Errorf("invalid image size %gx%g", dims.Width, dims.Height)
	}

	out, err := flags.GetString("out")
	if err != nil {
		return err
	}

	scene := synth.NewScene(dims,
		synth.WithPattern(pattern),
		synth.WithSeed(seed),
		synth.WithNoise(noise),
		synth.WithBackground(background, 5, 30),
	)
	cat := &catalog.Catalog{
		Name:       "simulated",
		Dimensions: dims,
		Sources:    scene.Build(),
	}

	if out == "" {
		return catalog.Write(cmd.OutOrStdout(), cat)
	}

	if err := writeCatalogFile(out, cat); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d sources to %s (pattern: %s, seed: %d)\n",
		len(cat.Sources), out, pattern, seed)
	return nil
}

// writeCatalogFile writes cat to path, choosing JSON or CSV by extension.
func writeCatalogFile(path string, cat *catalog.Catalog) (err error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	var write func(io.Writer, *catalog.Catalog) error = catalog.Write
	if strings.EqualFold(filepath.Ext(path), ".json") {
		write = catalog.WriteJSON
	}
	if err := write(f, cat); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}

func joinPatterns(ps []synth.Pattern) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
