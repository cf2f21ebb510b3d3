// Package tensor holds the flat float32 buffers exchanged with the inference engine.
package tensor

import "fmt"

// Tensor is a flat float32 buffer with a logical shape. Data is row-major over
// Shape; only the element count is checked against it.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// New allocates a zero-filled tensor of the given shape.
func New(shape ...int64) (Tensor, error) {
	n, err := elements(shape)
	if err != nil {
		return Tensor{}, err
	}
	s := make([]int64, len(shape))
	copy(s, shape)
	return Tensor{Shape: s, Data: make([]float32, n)}, nil
}

// FromData wraps data with a shape, checking that the element counts match.
func FromData(data []float32, shape ...int64) (Tensor, error) {
	n, err := elements(shape)
	if err != nil {
		return Tensor{}, err
	}
	if int64(len(data)) != n {
		return Tensor{}, fmt.Errorf("tensor: shape %v needs %d values, got %d", shape, n, len(data))
	}
	s := make([]int64, len(shape))
	copy(s, shape)
	return Tensor{Shape: s, Data: data}, nil
}

// Len is the number of values in Data.
func (t Tensor) Len() int { return len(t.Data) }

// PlanarImageShape is the [1, 3, size, size] input layout of segmentation models.
func PlanarImageShape(size int) []int64 {
	return []int64{1, 3, int64(size), int64(size)}
}

// MaskShape is the [1, 1, size, size] output layout of segmentation models.
func MaskShape(size int) []int64 {
	return []int64{1, 1, int64(size), int64(size)}
}

func elements(shape []int64) (int64, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("tensor: empty shape")
	}
	n := int64(1)
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("tensor: invalid dimension %d in shape %v", d, shape)
		}
		n *= d
	}
	return n, nil
}
