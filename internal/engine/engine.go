// Package engine defines how the background remover talks to a neural
// network runtime and provides the ONNX Runtime implementation.
//
// A Loader turns a registry.Descriptor into a ready Engine, fetching the
// weights on the way. An Engine runs one input tensor at a time and must be
// closed when it is no longer selected.
package engine

import (
	"context"
	"errors"

	"github.com/ironsheep/rmbg-local/internal/registry"
	"github.com/ironsheep/rmbg-local/internal/tensor"
)

var (
	// ErrNetwork is returned when model weights cannot be retrieved.
	ErrNetwork = errors.New("network error")

	// ErrLoad is returned when weights cannot be turned into a runnable model.
	ErrLoad = errors.New("model load error")

	// ErrInference is returned when running a loaded model fails.
	ErrInference = errors.New("inference error")
)

// ProgressFunc receives download progress as a fraction in [0, 1].
//
// Values are non-decreasing. When the total size is unknown no intermediate
// values are reported. The final 1 is reported exactly once, on success.
type ProgressFunc func(fraction float64)

// Engine is a loaded model.
type Engine interface {
	// Run executes the model on a [1, 3, R, R] input and returns its first
	// output, which holds R*R values.
	Run(ctx context.Context, input tensor.Tensor) (tensor.Tensor, error)

	// Close releases the runtime resources held by the engine.
	Close() error
}

// Loader produces engines from descriptors.
type Loader interface {
	Load(ctx context.Context, d registry.Descriptor, progress ProgressFunc) (Engine, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, d registry.Descriptor, progress ProgressFunc) (Engine, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, d registry.Descriptor, progress ProgressFunc) (Engine, error) {
	return f(ctx, d, progress)
}

func report(progress ProgressFunc, fraction float64) {
	if progress != nil {
		progress(fraction)
	}
}
