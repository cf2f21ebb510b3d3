package imaging

import (
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// Filter names a resampling kernel.
type Filter string

const (
	// FilterLinear is bilinear interpolation.
	FilterLinear Filter = "linear"
	// FilterCatmullRom is the Catmull-Rom bicubic kernel.
	FilterCatmullRom Filter = "catmullrom"
	// FilterLanczos is the Lanczos (a=3) kernel.
	FilterLanczos Filter = "lanczos"
)

// Backend names accepted by NewResampler.
const (
	BackendImaging = "imaging"
	BackendBild    = "bild"
	BackendXDraw   = "xdraw"
	BackendNfnt    = "nfnt"
)

// Resampler stretches an image to an exact width and height.
//
// The aspect ratio is never preserved: a 100x150 image resized to 320x320 is
// stretched, not letterboxed. Implementations return an NRGBA raster with
// origin (0,0) and exactly the requested bounds.
type Resampler interface {
	Resize(src image.Image, width, height int) (*image.NRGBA, error)
	Name() string
}

// ParseFilter converts a filter name to a Filter. The empty string selects
// FilterLinear.
func ParseFilter(name string) (Filter, error) {
	switch Filter(strings.ToLower(strings.TrimSpace(name))) {
	case "", FilterLinear:
		return FilterLinear, nil
	case FilterCatmullRom:
		return FilterCatmullRom, nil
	case FilterLanczos:
		return FilterLanczos, nil
	default:
		return "", fmt.Errorf("unknown resampling filter: %s", name)
	}
}

// Backends returns the accepted backend names in sorted order.
func Backends() []string {
	names := []string{BackendImaging, BackendBild, BackendXDraw, BackendNfnt}
	sort.Strings(names)
	return names
}

// NewResampler returns the backend identified by name using filter f.
// The empty name selects BackendImaging.
func NewResampler(name string, f Filter) (Resampler, error) {
	if f == "" {
		f = FilterLinear
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendImaging:
		return ImagingResampler{Filter: f}, nil
	case BackendBild:
		return BildResampler{Filter: f}, nil
	case BackendXDraw:
		return DrawResampler{Filter: f}, nil
	case BackendNfnt:
		return NfntResampler{Filter: f}, nil
	default:
		return nil, fmt.Errorf("unknown resampler backend: %s", name)
	}
}

// DefaultResampler is the imaging backend with bilinear filtering.
func DefaultResampler() Resampler {
	return ImagingResampler{Filter: FilterLinear}
}

// ImagingResampler resizes with github.com/disintegration/imaging.
type ImagingResampler struct {
	Filter Filter
}

func (r ImagingResampler) Name() string { return BackendImaging + "/" + string(r.Filter) }

func (r ImagingResampler) Resize(src image.Image, width, height int) (*image.NRGBA, error) {
	if err := checkResize(src, width, height); err != nil {
		return nil, err
	}
	filter := imaging.Linear
	switch r.Filter {
	case FilterCatmullRom:
		filter = imaging.CatmullRom
	case FilterLanczos:
		filter = imaging.Lanczos
	}
	return checkResult(imaging.Resize(src, width, height, filter), width, height)
}

// BildResampler resizes with github.com/anthonynsimon/bild/transform.
type BildResampler struct {
	Filter Filter
}

func (r BildResampler) Name() string { return BackendBild + "/" + string(r.Filter) }

func (r BildResampler) Resize(src image.Image, width, height int) (*image.NRGBA, error) {
	if err := checkResize(src, width, height); err != nil {
		return nil, err
	}
	filter := transform.Linear
	switch r.Filter {
	case FilterCatmullRom:
		filter = transform.CatmullRom
	case FilterLanczos:
		filter = transform.Lanczos
	}
	out := transform.Resize(src, width, height, filter)
	if out == nil {
		return nil, fmt.Errorf("%w: bild returned no raster", ErrSurface)
	}
	return checkResult(imaging.Clone(out), width, height)
}

// DrawResampler resizes with the golang.org/x/image/draw scalers.
// x/image/draw has no Lanczos kernel; FilterLanczos uses Catmull-Rom.
type DrawResampler struct {
	Filter Filter
}

func (r DrawResampler) Name() string { return BackendXDraw + "/" + string(r.Filter) }

func (r DrawResampler) Resize(src image.Image, width, height int) (*image.NRGBA, error) {
	if err := checkResize(src, width, height); err != nil {
		return nil, err
	}
	var scaler draw.Scaler = draw.BiLinear
	if r.Filter == FilterCatmullRom || r.Filter == FilterLanczos {
		scaler = draw.CatmullRom
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return checkResult(imaging.Clone(dst), width, height)
}

// NfntResampler resizes with github.com/nfnt/resize.
type NfntResampler struct {
	Filter Filter
}

func (r NfntResampler) Name() string { return BackendNfnt + "/" + string(r.Filter) }

func (r NfntResampler) Resize(src image.Image, width, height int) (*image.NRGBA, error) {
	if err := checkResize(src, width, height); err != nil {
		return nil, err
	}
	interp := resize.Bilinear
	switch r.Filter {
	case FilterCatmullRom:
		interp = resize.Bicubic
	case FilterLanczos:
		interp = resize.Lanczos3
	}
	out := resize.Resize(uint(width), uint(height), src, interp)
	if out == nil {
		return nil, fmt.Errorf("%w: nfnt returned no raster", ErrSurface)
	}
	return checkResult(imaging.Clone(out), width, height)
}

func checkResize(src image.Image, width, height int) error {
	if src == nil {
		return fmt.Errorf("%w: no source image", ErrSurface)
	}
	if src.Bounds().Empty() {
		return fmt.Errorf("%w: source image has no pixels", ErrSurface)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: invalid target size %dx%d", ErrSurface, width, height)
	}
	return nil
}

func checkResult(img *image.NRGBA, width, height int) (*image.NRGBA, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: resize produced no raster", ErrSurface)
	}
	if img.Bounds().Dx() != width || img.Bounds().Dy() != height {
		return nil, fmt.Errorf("%w: resize produced %dx%d, want %dx%d",
			ErrSurface, img.Bounds().Dx(), img.Bounds().Dy(), width, height)
	}
	return img, nil
}
