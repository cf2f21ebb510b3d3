package imaging

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

var (
	// ErrDecode reports input that cannot be decoded as a raster image.
	ErrDecode = errors.New("image decode failed")

	// ErrSurface reports that a raster surface could not be acquired.
	ErrSurface = errors.New("raster surface unavailable")
)

// Decode reads an image from r and returns it as NRGBA.
//
// PNG, JPEG, GIF, BMP, TIFF and WebP are accepted. EXIF orientation is applied
// so the returned pixels are upright, the same way a browser displays an
// uploaded photo.
//
// # Errors
//
//   - Wraps ErrDecode if the data is not a supported image
//   - Wraps ErrSurface if the decoded image has an empty bounding box
func Decode(r io.Reader) (*image.NRGBA, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: decoded image has no pixels", ErrSurface)
	}
	return imaging.Clone(img), nil
}

// DecodeFile opens path and decodes it with Decode.
func DecodeFile(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// ImageCache keeps decoded source images keyed by file path.
//
// Removing the background of one picture with several models decodes the
// file once; each model run then works on the same cached source. Cached
// images are treated as read-only by every consumer in this module.
//
// ImageCache is safe for concurrent use by multiple goroutines.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]*image.NRGBA
}

// NewImageCache creates an empty cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]*image.NRGBA),
	}
}

// Load returns the cached image for path or decodes it from disk.
//
// The image is cached using the exact path string provided. Different paths to
// the same file (relative vs absolute) produce separate entries.
func (c *ImageCache) Load(path string) (*image.NRGBA, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Evict removes a single path from the cache. Unknown paths are ignored.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// Clear drops every cached image.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]*image.NRGBA)
	c.mu.Unlock()
}

// Len reports how many images are cached.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// ToNRGBA returns img as an origin-anchored NRGBA raster. An image that
// already has that form is returned as is; anything else is copied.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}
