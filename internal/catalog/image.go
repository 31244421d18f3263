package catalog

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"os"

	exif "github.com/dsoprea/go-exif/v3"

	"github.com/nao1215/lensfind/internal/lensing"
)

// maxImageSize bounds how much of an image file is read.
const maxImageSize = 64 * 1024 * 1024

// ImageDimensions returns the pixel size of the image at path. EXIF pixel
// dimensions are preferred; otherwise the image header is decoded.
func ImageDimensions(path string) (lensing.Dimensions, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is supplied by the user
	if err != nil {
		return lensing.Dimensions{}, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > maxImageSize {
		data = data[:maxImageSize]
	}

	if d, ok := exifDimensions(data); ok {
		return d, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return lensing.Dimensions{}, fmt.Errorf("%w: %s: %w", ErrNoImageDimensions, path, err)
	}
	return lensing.Dimensions{Width: float64(cfg.Width), Height: float64(cfg.Height)}, nil
}

// exifDimensions looks for PixelXDimension/PixelYDimension, then
// ImageWidth/ImageLength, in the EXIF block of data.
func exifDimensions(data []byte) (lensing.Dimensions, bool) {
	raw, err := exif.SearchAndExtractExif(data)
	if err != nil || raw == nil {
		return lensing.Dimensions{}, false
	}
	entries, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		return lensing.Dimensions{}, false
	}

	tags := make(map[string]float64, 4)
	for _, e := range entries {
		switch e.TagName {
		case "PixelXDimension", "PixelYDimension", "ImageWidth", "ImageLength":
			if v, ok := firstUint(e.Value); ok {
				if _, dup := tags[e.TagName]; !dup {
					tags[e.TagName] = v
				}
			}
		}
	}

	for _, pair := range [][2]string{{"PixelXDimension", "PixelYDimension"}, {"ImageWidth", "ImageLength"}} {
		d := lensing.Dimensions{Width: tags[pair[0]], Height: tags[pair[1]]}
		if d.Valid() {
			return d, true
		}
	}
	return lensing.Dimensions{}, false
}

// firstUint extracts the first element of a SHORT or LONG tag value.
func firstUint(v any) (float64, bool) {
	switch t := v.(type) {
	case []uint16:
		if len(t) > 0 {
			return float64(t[0]), true
		}
	case []uint32:
		if len(t) > 0 {
			return float64(t[0]), true
		}
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	}
	return 0, false
}
