// Package catalog reads and writes source catalogs: the list of point
// sources a source extractor found in one image, together with the size of
// that image.
//
// Two on-disk formats are supported, chosen by file extension:
//
//   - CSV (.csv, .txt): a header row naming at least the x, y and flux
//     columns. DAOStarFinder-style names (xcentroid, ycentroid) are accepted
//     and unknown columns are ignored. When the id column is missing, sources
//     are numbered from 1 in file order. Lines starting with '#' are
//     comments; "# width=<w>" and "# height=<h>" set the image size.
//   - JSON (.json): {"width": w, "height": h, "sources": [{"id", "x", "y", "flux"}, ...]}.
//
// The image size is taken from, in order of precedence, WithDimensions, the
// catalog file itself, and the image named by WithImage (EXIF pixel
// dimensions, falling back to the decoded image header).
//
// A malformed record abandons the whole catalog; the error is a
// *RecordError wrapping ErrMalformedRecord.
package catalog
