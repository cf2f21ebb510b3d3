// Package mask turns a segmentation model's output into the alpha channel of
// the source image.
//
// Models disagree on what they emit: some end in a sigmoid and produce
// probabilities, others produce raw logits. NeedsSigmoid decides from the
// observed value range alone. It is a heuristic and can misclassify logits
// that happen to fall inside [-0.1, 1.1].
package mask

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/ironsheep/rmbg-local/internal/imaging"
	"github.com/ironsheep/rmbg-local/internal/tensor"
)

// Range outside of which output values are treated as logits.
const (
	LogitLow  = -0.1
	LogitHigh = 1.1
)

// ErrMaskSize is returned when the output tensor does not hold maskSize² values.
var ErrMaskSize = errors.New("mask size mismatch")

// Stats describes the raw output a mask was built from.
type Stats struct {
	SigmoidApplied bool    `json:"sigmoid_applied"`
	Min            float32 `json:"min"`
	Max            float32 `json:"max"`
}

// Sigmoid is 1/(1+e^-x).
func Sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}

// Range returns the minimum and maximum of values, skipping NaN.
// An empty or all-NaN slice yields (0, 0).
func Range(values []float32) (lo, hi float32) {
	first := true
	for _, v := range values {
		if v != v {
			continue
		}
		if first {
			lo, hi = v, v
			first = false
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}

// NeedsSigmoid reports whether values look like logits: some value below -0.1
// or above 1.1. Both bounds are exclusive.
func NeedsSigmoid(values []float32) bool {
	lo, hi := Range(values)
	return lo < LogitLow || hi > LogitHigh
}

// ToAlpha maps a probability to an 8-bit alpha: round(v*255) clamped to [0, 255].
// NaN maps to 0.
func ToAlpha(v float32) uint8 {
	a := math.Round(float64(v) * 255)
	switch {
	case math.IsNaN(a), a <= 0:
		return 0
	case a >= 255:
		return 255
	default:
		return uint8(a)
	}
}

// Build writes values as a size×size grayscale mask, applying the sigmoid
// first when sigmoid is true.
func Build(values []float32, size int, sigmoid bool) (*image.Gray, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: mask size %d", imaging.ErrSurface, size)
	}
	if len(values) != size*size {
		return nil, fmt.Errorf("%w: got %d values, want %d for %dx%d", ErrMaskSize, len(values), size*size, size, size)
	}

	m := image.NewGray(image.Rect(0, 0, size, size))
	for i, v := range values {
		if sigmoid {
			v = Sigmoid(v)
		}
		m.Pix[i] = ToAlpha(v)
	}
	return m, nil
}

// Composite applies the model output to src.
//
// out must hold maskSize*maskSize values in row-major order. The mask is
// stretched to src's native resolution with rs (the default resampler when
// nil). The result keeps src's RGB values exactly and takes its alpha from the
// mask, discarding any alpha src had. src is not modified.
func Composite(src image.Image, out tensor.Tensor, maskSize int, rs imaging.Resampler) (*image.NRGBA, Stats, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, Stats{}, fmt.Errorf("%w: empty source image", imaging.ErrSurface)
	}
	if rs == nil {
		rs = imaging.DefaultResampler()
	}

	var stats Stats
	stats.Min, stats.Max = Range(out.Data)
	stats.SigmoidApplied = stats.Min < LogitLow || stats.Max > LogitHigh

	m, err := Build(out.Data, maskSize, stats.SigmoidApplied)
	if err != nil {
		return nil, stats, err
	}

	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	scaled, err := rs.Resize(m, w, h)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to scale mask to %dx%d: %w", w, h, err)
	}

	base := imaging.ToNRGBA(src)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		s := base.Pix[y*base.Stride : y*base.Stride+w*4]
		a := scaled.Pix[y*scaled.Stride : y*scaled.Stride+w*4]
		d := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		for i := 0; i < len(d); i += 4 {
			d[i], d[i+1], d[i+2] = s[i], s[i+1], s[i+2]
			// The scaled mask is gray, so any colour channel holds the alpha.
			d[i+3] = a[i]
		}
	}
	return dst, stats, nil
}

// CompositePNG runs Composite and encodes the result as PNG.
func CompositePNG(src image.Image, out tensor.Tensor, maskSize int, rs imaging.Resampler) ([]byte, Stats, error) {
	img, stats, err := Composite(src, out, maskSize, rs)
	if err != nil {
		return nil, stats, err
	}
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, stats, fmt.Errorf("%w: %v", imaging.ErrSurface, err)
	}
	return data, stats, nil
}
