// Package imaging is the raster surface used by the background removal pipeline.
//
// It plays the role a drawing canvas plays in a browser: it decodes user
// supplied bytes into pixels, stretches rasters to a requested size, encodes
// the final image and offers a few helpers that operate on finished results
// (matte flattening, foreground measurement, cropping to the subject). The numerical pipeline itself
// lives in the preprocess and mask packages; this package only moves pixels.
//
// # Pixel Format
//
// Every function that returns a raster returns *image.NRGBA with its origin at
// (0,0): 8-bit channels, straight (non-premultiplied) alpha, Stride = 4*width.
// Callers index Pix directly and rely on this layout.
//
// # Resampling
//
// Resizing is pluggable through the Resampler interface. Four backends are
// provided, all producing the same stretch semantics (no letterboxing, no
// aspect correction):
//   - "imaging": github.com/disintegration/imaging (default)
//   - "bild": github.com/anthonynsimon/bild/transform
//   - "xdraw": golang.org/x/image/draw scalers
//   - "nfnt": github.com/nfnt/resize
//
// Each backend accepts a Filter: "linear" (bilinear, default), "catmullrom"
// (bicubic) or "lanczos". Backends that lack a filter fall back to the closest
// one they have.
//
// # Thread Safety
//
// Resamplers are stateless and safe for concurrent use. ImageCache is safe for
// concurrent use. Returned rasters are owned by the caller.
//
// # Error Handling
//
// Two sentinel errors classify failures:
//   - ErrDecode: the input bytes are not a decodable image
//   - ErrSurface: a raster surface could not be produced (invalid size,
//     backend failure)
//
// Both are wrapped with context; test with errors.Is.
package imaging
