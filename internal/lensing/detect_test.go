package lensing_test

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sort"
	"testing"

	"github.com/soniakeys/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/lensfind/internal/lensing"
)

var frame = lensing.Dimensions{Width: 400, Height: 400}

// polar places a source at the given radius and position angle (degrees)
// around (200, 200).
func polar(id int, radius, deg, flux float64) lensing.PointSource {
	a := unit.AngleFromDeg(deg)
	return lensing.PointSource{
		ID:   id,
		X:    200 + radius*math.Cos(a.Rad()),
		Y:    200 + radius*math.Sin(a.Rad()),
		Flux: flux,
	}
}

// crossCatalog is a bright lens at the image centre with four images at
// radius 40 whose fluxes agree to within 10%.
func crossCatalog() []lensing.PointSource {
	return []lensing.PointSource{
		{ID: 1, X: 200, Y: 200, Flux: 500},
		{ID: 2, X: 240, Y: 200, Flux: 100},
		{ID: 3, X: 160, Y: 200, Flux: 105},
		{ID: 4, X: 200, Y: 240, Flux: 97},
		{ID: 5, X: 200, Y: 160, Flux: 102},
	}
}

// arcCatalog is a lens of flux 1000 at the centre with five sources at
// radius 80±2 spread evenly over 300 degrees.
func arcCatalog() []lensing.PointSource {
	return []lensing.PointSource{
		{ID: 1, X: 200, Y: 200, Flux: 1000},
		polar(2, 80, 0, 50),
		polar(3, 82, 75, 52),
		polar(4, 78, 150, 49),
		polar(5, 81, 225, 51),
		polar(6, 79, 300, 50),
	}
}

// groupKeys returns the accepted groups as sorted, comparable ID strings.
func groupKeys(groups []lensing.SourceGroup) []string {
	keys := make([]string, 0, len(groups))
	for _, g := range groups {
		ids := g.IDs()
		sort.Ints(ids)
		keys = append(keys, fmt.Sprint(ids))
	}
	sort.Strings(keys)
	return keys
}

func TestDetectKnownScenarios(t *testing.T) {
	t.Parallel()

	t.Run("perfect cross yields one multi-image match and no arcs", func(t *testing.T) {
		t.Parallel()

		res, err := lensing.Detect(crossCatalog(), frame, lensing.DefaultOptions())
		require.NoError(t, err)
		require.NotNil(t, res.Central)

		assert.Equal(t, lensing.StatusOK, res.Status)
		assert.Equal(t, 1, res.Central.Source.ID)
		assert.True(t, res.Central.InRegion)

		require.Equal(t, 1, res.MultiImage.Count())
		assert.Equal(t, lensing.SearchCompleted, res.MultiImage.Status)
		assert.ElementsMatch(t, []int{2, 3, 4, 5}, res.MultiImage.Candidates[0].IDs())
		assert.InDelta(t, 0, res.MultiImage.Candidates[0].CentroidOffset, 1e-9)
		assert.InDelta(t, 80, res.MultiImage.Candidates[0].MaxSeparation, 1e-9)
		assert.InDelta(t, 105.0/97.0, res.MultiImage.Candidates[0].FluxRatio, 1e-12)

		assert.Equal(t, lensing.SearchInsufficientSources, res.Arc.Status)
		assert.Zero(t, res.Arc.Count())
	})

	t.Run("ring segment yields one arc match and no multi-images", func(t *testing.T) {
		t.Parallel()

		res, err := lensing.Detect(arcCatalog(), frame, lensing.DefaultOptions())
		require.NoError(t, err)

		assert.Equal(t, 1, res.Central.Source.ID)
		assert.Equal(t, lensing.SearchCompleted, res.MultiImage.Status)
		assert.Equal(t, uint64(5), res.MultiImage.Evaluated)
		assert.Zero(t, res.MultiImage.Count())

		require.Equal(t, 1, res.Arc.Count())
		arc := res.Arc.Candidates[0]
		assert.ElementsMatch(t, []int{2, 3, 4, 5, 6}, arc.IDs())
		assert.InDelta(t, 80, arc.MeanRadius, 1e-9)
		assert.Less(t, arc.RadialCV, 0.15)
		assert.InDelta(t, 285, arc.AngularSpan.Deg(), 1e-6)
	})
}

func TestDetectFailures(t *testing.T) {
	t.Parallel()

	t.Run("empty catalog reports no sources", func(t *testing.T) {
		t.Parallel()

		res, err := lensing.Detect(nil, frame, lensing.DefaultOptions())
		require.ErrorIs(t, err, lensing.ErrNoSources)
		require.NotNil(t, res)

		assert.Equal(t, lensing.StatusNoSources, res.Status)
		assert.Nil(t, res.Central)
		assert.Equal(t, lensing.SearchNotRun, res.MultiImage.Status)
		assert.Equal(t, lensing.SearchNotRun, res.Arc.Status)
		assert.Empty(t, res.MultiImage.Candidates)
		assert.Empty(t, res.Arc.Candidates)
	})

	dims := []struct {
		name string
		dims lensing.Dimensions
	}{
		{"zero width", lensing.Dimensions{Width: 0, Height: 100}},
		{"negative height", lensing.Dimensions{Width: 100, Height: -1}},
		{"NaN width", lensing.Dimensions{Width: math.NaN(), Height: 100}},
		{"infinite height", lensing.Dimensions{Width: 100, Height: math.Inf(1)}},
	}
	for _, tc := range dims {
		t.Run("invalid dimensions: "+tc.name, func(t *testing.T) {
			t.Parallel()

			res, err := lensing.Detect(crossCatalog(), tc.dims, lensing.DefaultOptions())
			require.ErrorIs(t, err, lensing.ErrInvalidDimensions)
			assert.Equal(t, lensing.StatusInvalidDimensions, res.Status)
			assert.Nil(t, res.Central)
		})
	}

	sources := []struct {
		name   string
		mutate func([]lensing.PointSource)
	}{
		{"negative flux", func(s []lensing.PointSource) { s[2].Flux = -1 }},
		{"NaN flux", func(s []lensing.PointSource) { s[2].Flux = math.NaN() }},
		{"NaN x", func(s []lensing.PointSource) { s[1].X = math.NaN() }},
		{"infinite y", func(s []lensing.PointSource) { s[3].Y = math.Inf(-1) }},
		{"duplicate id", func(s []lensing.PointSource) { s[4].ID = s[0].ID }},
	}
	for _, tc := range sources {
		t.Run("invalid source: "+tc.name, func(t *testing.T) {
			t.Parallel()

			cat := crossCatalog()
			tc.mutate(cat)
			res, err := lensing.Detect(cat, frame, lensing.DefaultOptions())
			require.ErrorIs(t, err, lensing.ErrInvalidSource)
			assert.Equal(t, lensing.StatusInvalidSource, res.Status)
		})
	}

	t.Run("invalid options", func(t *testing.T) {
		t.Parallel()

		for _, mutate := range []func(*lensing.Options){
			func(o *lensing.Options) { o.MultiImageSize = 1 },
			func(o *lensing.Options) { o.ArcSize = 0 },
			func(o *lensing.Options) { o.MaxFluxRatio = 0 },
			func(o *lensing.Options) { o.MaxSeparation = math.NaN() },
			func(o *lensing.Options) { o.MaxRadialCV = -0.1 },
			func(o *lensing.Options) { o.CentralRadiusFraction = 0 },
			func(o *lensing.Options) { o.MinAngularSpan = -1 },
		} {
			opts := lensing.DefaultOptions()
			mutate(&opts)
			res, err := lensing.Detect(crossCatalog(), frame, opts)
			require.ErrorIs(t, err, lensing.ErrInvalidOptions)
			assert.Equal(t, lensing.StatusInvalidOptions, res.Status)
		}
	})
}

func TestDetectInsufficientSources(t *testing.T) {
	t.Parallel()

	lens := lensing.PointSource{ID: 100, X: 200, Y: 200, Flux: 1000}
	ring := []lensing.PointSource{
		polar(1, 30, 0, 100),
		polar(2, 30, 90, 100),
		polar(3, 30, 180, 100),
		polar(4, 30, 270, 100),
	}

	for n := 0; n <= 4; n++ {
		t.Run(fmt.Sprintf("%d non-central sources", n), func(t *testing.T) {
			t.Parallel()

			cat := append([]lensing.PointSource{lens}, ring[:n]...)
			res, err := lensing.Detect(cat, frame, lensing.DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, lensing.StatusOK, res.Status)
			assert.Equal(t, lens.ID, res.Central.Source.ID)

			if n < 4 {
				assert.Equal(t, lensing.SearchInsufficientSources, res.MultiImage.Status)
				assert.Empty(t, res.MultiImage.Candidates)
			} else {
				assert.Equal(t, lensing.SearchCompleted, res.MultiImage.Status)
				assert.Equal(t, 1, res.MultiImage.Count())
			}
			assert.Equal(t, lensing.SearchInsufficientSources, res.Arc.Status)
			assert.Empty(t, res.Arc.Candidates)
			assert.Zero(t, res.Arc.Evaluated)
		})
	}
}

func TestCentralSelection(t *testing.T) {
	t.Parallel()

	t.Run("brightest source inside the central radius wins", func(t *testing.T) {
		t.Parallel()

		cat := []lensing.PointSource{
			{ID: 1, X: 10, Y: 10, Flux: 5000}, // brightest but in a corner
			{ID: 2, X: 230, Y: 210, Flux: 800},
			{ID: 3, X: 200, Y: 200, Flux: 300},
		}
		c, err := lensing.SelectCentral(cat, frame, lensing.DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, 2, c.Source.ID)
		assert.True(t, c.InRegion)
	})

	t.Run("radius is a quarter of the width, not of the area", func(t *testing.T) {
		t.Parallel()

		// 99 px from the centre of a 400 px frame is inside W/4 = 100.
		cat := []lensing.PointSource{
			{ID: 1, X: 299, Y: 200, Flux: 10},
			{ID: 2, X: 301, Y: 200, Flux: 20},
		}
		c, err := lensing.SelectCentral(cat, frame, lensing.DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, 1, c.Source.ID)
		assert.InDelta(t, 99, c.CenterDistance, 1e-9)
	})

	t.Run("falls back to the brightest source overall", func(t *testing.T) {
		t.Parallel()

		cat := []lensing.PointSource{
			{ID: 1, X: 10, Y: 10, Flux: 50},
			{ID: 2, X: 390, Y: 390, Flux: 70},
		}
		c, err := lensing.SelectCentral(cat, frame, lensing.DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, 2, c.Source.ID)
		assert.False(t, c.InRegion)
	})

	t.Run("flux ties keep catalog order", func(t *testing.T) {
		t.Parallel()

		cat := []lensing.PointSource{
			{ID: 7, X: 210, Y: 200, Flux: 100},
			{ID: 3, X: 190, Y: 200, Flux: 100},
		}
		c, err := lensing.SelectCentral(cat, frame, lensing.DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, 7, c.Source.ID)
	})

	t.Run("repeated calls select the same object", func(t *testing.T) {
		t.Parallel()

		cat := randomField(rand.New(rand.NewSource(3)), 40)
		first, err := lensing.SelectCentral(cat, frame, lensing.DefaultOptions())
		require.NoError(t, err)
		for range 10 {
			again, err := lensing.SelectCentral(cat, frame, lensing.DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})
}

// randomField returns n sources with distinct fluxes scattered over frame.
func randomField(rng *rand.Rand, n int) []lensing.PointSource {
	out := make([]lensing.PointSource, n)
	for i := range out {
		out[i] = lensing.PointSource{
			ID:   i + 1,
			X:    rng.Float64() * frame.Width,
			Y:    rng.Float64() * frame.Height,
			Flux: 10 + rng.Float64()*90,
		}
	}
	return out
}

// clusteredField returns a lens at the centre and n similar-flux sources
// within 45 px of it, so that many four-source groups qualify.
func clusteredField(rng *rand.Rand, n int) []lensing.PointSource {
	out := []lensing.PointSource{{ID: 1, X: 200, Y: 200, Flux: 1000}}
	for i := range n {
		r := 15 + rng.Float64()*30
		out = append(out, polar(i+2, r, rng.Float64()*360, 90+rng.Float64()*40))
	}
	return out
}

func TestDetectOrderIndependence(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(11))
	cat := clusteredField(rng, 12)

	base, err := lensing.Detect(cat, frame, lensing.DefaultOptions())
	require.NoError(t, err)
	require.NotZero(t, base.MultiImage.Count(), "fixture should produce multi-image groups")
	want := groupKeys(base.MultiImage.Candidates)

	for i := range 5 {
		shuffled := slices.Clone(cat)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		res, err := lensing.Detect(shuffled, frame, lensing.DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, base.Central.Source.ID, res.Central.Source.ID, "permutation %d", i)
		assert.Equal(t, want, groupKeys(res.MultiImage.Candidates), "permutation %d", i)
	}
}

func TestDetectInvariants(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(5))
	cat := append(clusteredField(rng, 10), randomField(rng, 6)...)
	// randomField restarts IDs at 1; move them out of the way.
	for i := 11; i < len(cat); i++ {
		cat[i].ID = 100 + i
	}
	orig := slices.Clone(cat)

	res, err := lensing.Detect(cat, frame, lensing.DefaultOptions())
	require.NoError(t, err)

	t.Run("input is not modified", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, orig, cat)
	})

	t.Run("central object is never a group member", func(t *testing.T) {
		t.Parallel()
		for _, g := range append(slices.Clone(res.MultiImage.Candidates), res.Arc.Candidates...) {
			assert.NotContains(t, g.IDs(), res.Central.Source.ID)
		}
	})

	t.Run("accepted groups satisfy the thresholds", func(t *testing.T) {
		t.Parallel()
		opts := lensing.DefaultOptions()
		for _, g := range res.MultiImage.Candidates {
			assert.Len(t, g.Members, opts.MultiImageSize)
			assert.Less(t, g.FluxRatio, opts.MaxFluxRatio)
			assert.Less(t, g.MaxSeparation, opts.MaxSeparation)
			assert.Less(t, g.CentroidOffset, opts.MaxCentroidOffset)
		}
		for _, g := range res.Arc.Candidates {
			assert.Len(t, g.Members, opts.ArcSize)
			assert.Less(t, g.RadialCV, opts.MaxRadialCV)
			assert.Greater(t, g.AngularSpan, opts.MinAngularSpan)
		}
	})
}

func TestDetectPrefilterMatchesExhaustiveSearch(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(21))
	cat := clusteredField(rng, 8)
	// Sources well outside MaxSeparation+MaxCentroidOffset of the lens.
	cat = append(cat,
		lensing.PointSource{ID: 50, X: 5, Y: 5, Flux: 110},
		lensing.PointSource{ID: 51, X: 395, Y: 10, Flux: 100},
		lensing.PointSource{ID: 52, X: 20, Y: 390, Flux: 95},
		lensing.PointSource{ID: 53, X: 360, Y: 200, Flux: 105},
	)

	opts := lensing.DefaultOptions()
	res, err := lensing.Detect(cat, frame, opts)
	require.NoError(t, err)
	require.Equal(t, 1, res.Central.Source.ID)
	assert.Equal(t, 8, res.MultiImage.Pool)

	lens := res.Central.Source
	others := cat[1:]
	var brute []lensing.SourceGroup
	for idx := range lensing.Combinations(len(others), opts.MultiImageSize) {
		group := make([]lensing.PointSource, len(idx))
		lo, hi := math.Inf(1), math.Inf(-1)
		var gx, gy, sep float64
		for i, j := range idx {
			group[i] = others[j]
			lo = min(lo, others[j].Flux)
			hi = max(hi, others[j].Flux)
			gx += others[j].X / float64(len(idx))
			gy += others[j].Y / float64(len(idx))
		}
		for i := range group {
			for j := i + 1; j < len(group); j++ {
				sep = max(sep, group[i].DistanceTo(group[j]))
			}
		}
		offset := lensing.PointSource{X: gx, Y: gy}.DistanceTo(lens)
		if hi/lo < opts.MaxFluxRatio && sep < opts.MaxSeparation && offset < opts.MaxCentroidOffset {
			brute = append(brute, lensing.SourceGroup{Members: group})
		}
	}
	require.NotEmpty(t, brute)
	assert.Equal(t, groupKeys(brute), groupKeys(res.MultiImage.Candidates))
}

func TestDetectCombinationBudget(t *testing.T) {
	t.Parallel()

	opts := lensing.DefaultOptions()
	opts.MaxCombinations = 3

	res, err := lensing.Detect(arcCatalog(), frame, opts)
	require.NoError(t, err)

	// C(5,4) = 5 and C(5,5) = 1.
	assert.Equal(t, lensing.SearchSkipped, res.MultiImage.Status)
	assert.Zero(t, res.MultiImage.Evaluated)
	assert.Equal(t, lensing.SearchCompleted, res.Arc.Status)
	assert.Equal(t, 1, res.Arc.Count())
}

func TestStatusStrings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "not_run", lensing.Status(0).String())
	assert.Equal(t, "ok", lensing.StatusOK.String())
	assert.Equal(t, "no_sources", lensing.StatusNoSources.String())
	assert.Equal(t, "invalid_dimensions", lensing.StatusInvalidDimensions.String())
	assert.Equal(t, "invalid_source", lensing.StatusInvalidSource.String())
	assert.Equal(t, "unknown", lensing.Status(99).String())
	assert.Equal(t, "insufficient_sources", lensing.SearchInsufficientSources.String())
	assert.Equal(t, "skipped", lensing.SearchSkipped.String())
}
