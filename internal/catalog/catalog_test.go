package catalog_test

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/lensfind/internal/catalog"
	"github.com/nao1215/lensfind/internal/lensing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCSV(t *testing.T) {
	t.Parallel()

	t.Run("reads header comments and sources", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "draco.csv", `# width=400
# height=300
id,x,y,flux
1,200,150,500
2,240.5,150,100
`)
		cat, err := catalog.Load(path)
		require.NoError(t, err)

		assert.Equal(t, "draco", cat.Name)
		assert.Equal(t, path, cat.Path)
		assert.Equal(t, lensing.Dimensions{Width: 400, Height: 300}, cat.Dimensions)
		assert.Equal(t, []lensing.PointSource{
			{ID: 1, X: 200, Y: 150, Flux: 500},
			{ID: 2, X: 240.5, Y: 150, Flux: 100},
		}, cat.Sources)
	})

	t.Run("accepts DAOStarFinder columns and ignores the rest", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "horologium.csv", `id,xcentroid,ycentroid,sharpness,flux,mag
3,10.5,20.25,0.4,1234.5,-7.7
4,11,21,0.5,99,-5
`)
		cat, err := catalog.Load(path, catalog.WithDimensions(lensing.Dimensions{Width: 64, Height: 64}))
		require.NoError(t, err)
		require.Len(t, cat.Sources, 2)
		assert.Equal(t, lensing.PointSource{ID: 3, X: 10.5, Y: 20.25, Flux: 1234.5}, cat.Sources[0])
		assert.Equal(t, lensing.Dimensions{Width: 64, Height: 64}, cat.Dimensions)
	})

	t.Run("numbers sources when the id column is missing", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "noid.csv", "x,y,flux\n1,1,1\n2,2,2\n3,3,3\n")
		cat, err := catalog.Load(path)
		require.NoError(t, err)
		ids := make([]int, 0, len(cat.Sources))
		for _, s := range cat.Sources {
			ids = append(ids, s.ID)
		}
		assert.Equal(t, []int{1, 2, 3}, ids)
		assert.False(t, cat.HasDimensions())
	})

	t.Run("explicit dimensions win over the file", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "dims.csv", "# width=10\n# height=10\nx,y,flux\n1,1,1\n")
		cat, err := catalog.Load(path, catalog.WithDimensions(lensing.Dimensions{Width: 20, Height: 30}))
		require.NoError(t, err)
		assert.Equal(t, lensing.Dimensions{Width: 20, Height: 30}, cat.Dimensions)
	})

	t.Run("empty file is an empty catalog", func(t *testing.T) {
		t.Parallel()

		cat, err := catalog.Load(writeFile(t, "empty.csv", ""))
		require.NoError(t, err)
		assert.Empty(t, cat.Sources)
	})
}

func TestLoadRejectsMalformedRecords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		body  string
		line  int
		field string
	}{
		{"non-numeric x", "id,x,y,flux\n1,abc,2,3\n", 2, "x"},
		{"NaN y", "id,x,y,flux\n1,1,2,3\n2,1,NaN,3\n", 3, "y"},
		{"infinite x", "id,x,y,flux\n1,+Inf,2,3\n", 2, "x"},
		{"negative flux", "id,x,y,flux\n1,1,2,-3\n", 2, "flux"},
		{"duplicate id", "id,x,y,flux\n1,1,2,3\n1,4,5,6\n", 3, "id"},
		{"bad id", "id,x,y,flux\none,1,2,3\n", 2, "id"},
		{"short row", "id,x,y,flux\n1,1,2\n", 2, "flux"},
		{"bad width comment", "# width=wide\nx,y,flux\n", 1, "width"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cat, err := catalog.Load(writeFile(t, "bad.csv", tt.body))
			require.Error(t, err)
			assert.Nil(t, cat)
			assert.ErrorIs(t, err, catalog.ErrMalformedRecord)

			var recErr *catalog.RecordError
			require.ErrorAs(t, err, &recErr)
			assert.Equal(t, tt.line, recErr.Line)
			assert.Equal(t, tt.field, recErr.Field)
		})
	}

	t.Run("missing required column", func(t *testing.T) {
		t.Parallel()

		_, err := catalog.Load(writeFile(t, "cols.csv", "id,x,y\n1,2,3\n"))
		assert.ErrorIs(t, err, catalog.ErrMissingColumn)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		t.Parallel()

		_, err := catalog.Load(writeFile(t, "cat.fits", "SIMPLE = T"))
		assert.ErrorIs(t, err, catalog.ErrUnsupportedFormat)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := catalog.Load(filepath.Join(t.TempDir(), "nope.csv"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()

	t.Run("reads dimensions and sources", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "cat.json", `{"width": 512, "height": 256, "sources": [
			{"id": 7, "x": 1, "y": 2, "flux": 3},
			{"id": 8, "x": 4, "y": 5, "flux": 6}
		]}`)
		cat, err := catalog.Load(path, catalog.WithName("override"))
		require.NoError(t, err)
		assert.Equal(t, "override", cat.Name)
		assert.Equal(t, lensing.Dimensions{Width: 512, Height: 256}, cat.Dimensions)
		assert.Len(t, cat.Sources, 2)
	})

	t.Run("rejects negative flux with the source index", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "cat.json", `{"sources": [{"id": 1, "flux": 1}, {"id": 2, "flux": -1}]}`)
		_, err := catalog.Load(path)
		var recErr *catalog.RecordError
		require.ErrorAs(t, err, &recErr)
		assert.Equal(t, 2, recErr.Line)
	})

	t.Run("numbers sources without ids like the CSV reader", func(t *testing.T) {
		t.Parallel()

		jsonCat, err := catalog.Load(writeFile(t, "cat.json", `{"sources": [
			{"x": 1, "y": 2, "flux": 3},
			{"x": 4, "y": 5, "flux": 6}
		]}`))
		require.NoError(t, err)

		csvCat, err := catalog.Load(writeFile(t, "cat.csv", "x,y,flux\n1,2,3\n4,5,6\n"))
		require.NoError(t, err)

		assert.Equal(t, csvCat.Sources, jsonCat.Sources)
		assert.Equal(t, []int{1, 2}, []int{jsonCat.Sources[0].ID, jsonCat.Sources[1].ID})
	})

	t.Run("rejects a mix of sources with and without ids", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "cat.json", `{"sources": [{"id": 5, "flux": 1}, {"flux": 2}]}`)
		_, err := catalog.Load(path)
		var recErr *catalog.RecordError
		require.ErrorAs(t, err, &recErr)
		assert.Equal(t, 2, recErr.Line)
		assert.Equal(t, "id", recErr.Field)
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		t.Parallel()

		_, err := catalog.Load(writeFile(t, "cat.json", `{"sources": [`))
		assert.ErrorIs(t, err, catalog.ErrMalformedRecord)
	})
}

func TestWriteRoundTrip(t *testing.T) {
	t.Parallel()

	in := &catalog.Catalog{
		Dimensions: lensing.Dimensions{Width: 400, Height: 400},
		Sources: []lensing.PointSource{
			{ID: 1, X: 200, Y: 200, Flux: 500},
			{ID: 2, X: 240.125, Y: 199.5, Flux: 100.75},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, catalog.Write(&buf, in))
	assert.True(t, strings.HasPrefix(buf.String(), "# width=400\n# height=400\nid,x,y,flux\n"))

	out, err := catalog.ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, in.Dimensions, out.Dimensions)
	assert.Equal(t, in.Sources, out.Sources)

	buf.Reset()
	require.NoError(t, catalog.WriteJSON(&buf, in))
	out, err = catalog.ReadJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, in.Sources, out.Sources)
}

func TestImageDimensions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	imgPath := filepath.Join(dir, "frame.png")
	f, err := os.Create(imgPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 320, 240))))
	require.NoError(t, f.Close())

	t.Run("falls back to the image header", func(t *testing.T) {
		t.Parallel()

		d, err := catalog.ImageDimensions(imgPath)
		require.NoError(t, err)
		assert.Equal(t, lensing.Dimensions{Width: 320, Height: 240}, d)
	})

	t.Run("used by Load when the file has no size", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "cat.csv", "x,y,flux\n1,1,1\n")
		cat, err := catalog.Load(path, catalog.WithImage(imgPath))
		require.NoError(t, err)
		assert.Equal(t, lensing.Dimensions{Width: 320, Height: 240}, cat.Dimensions)
	})

	t.Run("not an image", func(t *testing.T) {
		t.Parallel()

		_, err := catalog.ImageDimensions(writeFile(t, "notes.txt", "hello"))
		assert.ErrorIs(t, err, catalog.ErrNoImageDimensions)
	})
}
