// Package preprocess turns a decoded image into the input tensor of a
// segmentation model.
//
// The image is stretched to the model's square input size, read as 8-bit
// RGBA, normalized according to the model's family and written in
// channel-planar order: every red value, then every green value, then every
// blue value, each plane row-major.
package preprocess

import (
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/ironsheep/rmbg-local/internal/imaging"
	"github.com/ironsheep/rmbg-local/internal/registry"
	"github.com/ironsheep/rmbg-local/internal/tensor"
)

// ImageNet channel statistics in R, G, B order.
var (
	ImageNetMean = [3]float64{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float64{0.229, 0.224, 0.225}
)

// ErrNormalization is returned for a family outside the known set.
var ErrNormalization = errors.New("unknown normalization family")

// Preprocess builds the [1, 3, size, size] input tensor for src.
//
// The second return value is the source handle later passed to the mask
// compositor: src itself when it is already an origin-anchored NRGBA raster,
// otherwise an NRGBA copy. Callers must not modify it until compositing is done.
//
// Errors wrap imaging.ErrSurface when the resize surface cannot be produced
// (non-positive size, empty source) and ErrNormalization for an unknown family.
func Preprocess(src image.Image, size int, family registry.Normalization, rs imaging.Resampler) (tensor.Tensor, *image.NRGBA, error) {
	scale, offset, err := coefficients(family)
	if err != nil {
		return tensor.Tensor{}, nil, err
	}
	if rs == nil {
		rs = imaging.DefaultResampler()
	}

	resized, err := rs.Resize(src, size, size)
	if err != nil {
		return tensor.Tensor{}, nil, fmt.Errorf("failed to resize to %dx%d: %w", size, size, err)
	}

	input, err := tensor.New(tensor.PlanarImageShape(size)...)
	if err != nil {
		return tensor.Tensor{}, nil, fmt.Errorf("%w: %v", imaging.ErrSurface, err)
	}

	plane := size * size
	data := input.Data
	for y := 0; y < size; y++ {
		row := resized.Pix[y*resized.Stride : y*resized.Stride+size*4]
		for x := 0; x < size; x++ {
			i := y*size + x
			px := row[x*4 : x*4+3]
			data[i] = float32(float64(px[0])*scale[0] + offset[0])
			data[plane+i] = float32(float64(px[1])*scale[1] + offset[1])
			data[2*plane+i] = float32(float64(px[2])*scale[2] + offset[2])
		}
	}

	return input, imaging.ToNRGBA(src), nil
}

// PreprocessReader decodes r and runs Preprocess on the result.
// Undecodable input yields an error wrapping imaging.ErrDecode.
func PreprocessReader(r io.Reader, size int, family registry.Normalization, rs imaging.Resampler) (tensor.Tensor, *image.NRGBA, error) {
	src, err := imaging.Decode(r)
	if err != nil {
		return tensor.Tensor{}, nil, err
	}
	return Preprocess(src, size, family, rs)
}

// Normalize maps one 8-bit value of channel c (0=R, 1=G, 2=B) the same way
// Preprocess does.
func Normalize(v uint8, c int, family registry.Normalization) (float32, error) {
	if c < 0 || c > 2 {
		return 0, fmt.Errorf("channel %d out of range", c)
	}
	scale, offset, err := coefficients(family)
	if err != nil {
		return 0, err
	}
	return float32(float64(v)*scale[c] + offset[c]), nil
}

// coefficients folds v/255 and (x-mean)/std into v*scale + offset per channel.
func coefficients(family registry.Normalization) (scale, offset [3]float64, err error) {
	switch family {
	case registry.NormalizationUnit:
		for c := 0; c < 3; c++ {
			scale[c] = 1.0 / 255
		}
	case registry.NormalizationImageNet:
		for c := 0; c < 3; c++ {
			scale[c] = 1.0 / (255 * ImageNetStd[c])
			offset[c] = -ImageNetMean[c] / ImageNetStd[c]
		}
	default:
		return scale, offset, fmt.Errorf("%w: %q", ErrNormalization, string(family))
	}
	return scale, offset, nil
}
