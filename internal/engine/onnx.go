package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/ironsheep/rmbg-local/internal/registry"
	"github.com/ironsheep/rmbg-local/internal/tensor"
)

// The ONNX Runtime environment is process-wide and can only be set up once.
var (
	ortOnce sync.Once
	ortErr  error
)

func initRuntime(libraryPath string, logger *slog.Logger) error {
	ortOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			ortErr = fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
			return
		}
		logger.Info("onnx runtime initialized", "library", libraryPath)
	})
	return ortErr
}

// ONNXLoader fetches model weights and builds ONNX Runtime sessions from them.
type ONNXLoader struct {
	Fetcher *Fetcher

	// LibraryPath points at the onnxruntime shared library. Empty uses the
	// platform default search. Only the first load in a process applies it.
	LibraryPath string

	Logger *slog.Logger
}

// NewONNXLoader returns a loader that downloads through fetcher.
func NewONNXLoader(fetcher *Fetcher, libraryPath string, logger *slog.Logger) *ONNXLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &ONNXLoader{Fetcher: fetcher, LibraryPath: libraryPath, Logger: logger}
}

func (l *ONNXLoader) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// Load implements Loader.
//
// The first input and the first output declared by the model are used; the
// remaining outputs of multi-output models (u2net side outputs) are ignored.
// Progress covers the download; the final 1 is reported only once the
// session has been created.
func (l *ONNXLoader) Load(ctx context.Context, d registry.Descriptor, progress ProgressFunc) (Engine, error) {
	log := l.logger().With("model", string(d.ID))

	if err := initRuntime(l.LibraryPath, l.logger()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	fetcher := l.Fetcher
	if fetcher == nil {
		fetcher = NewFetcher("", l.Logger)
	}
	data, err := fetcher.Fetch(ctx, d.URL, downloadProgress(progress))
	if err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfoWithONNXData(data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read model metadata: %v", ErrLoad, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("%w: model declares %d inputs and %d outputs", ErrLoad, len(inputs), len(outputs))
	}

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(data,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create session: %v", ErrLoad, err)
	}

	report(progress, 1)
	log.Info("model loaded",
		"input", inputs[0].Name,
		"output", outputs[0].Name,
		"output_type", outputs[0].DataType,
		"bytes", len(data))

	return &onnxEngine{
		id:      d.ID,
		session: session,
		input:   inputs[0].Name,
		output:  outputs[0].Name,
		logger:  log,
	}, nil
}

// downloadProgress forwards fetch progress but holds back completion.
func downloadProgress(progress ProgressFunc) ProgressFunc {
	if progress == nil {
		return nil
	}
	return func(fraction float64) {
		if fraction < 1 {
			progress(fraction)
		}
	}
}

type onnxEngine struct {
	id      registry.ModelType
	input   string
	output  string
	logger  *slog.Logger
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
}

func (e *onnxEngine) Run(ctx context.Context, input tensor.Tensor) (tensor.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return tensor.Tensor{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return tensor.Tensor{}, fmt.Errorf("%w: engine for %s is closed", ErrInference, e.id)
	}

	in, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return tensor.Tensor{}, fmt.Errorf("%w: failed to create input tensor: %v", ErrInference, err)
	}
	defer in.Destroy()

	// A nil output lets the runtime allocate a value of the model's own type
	// and shape.
	outputs := []ort.ArbitraryTensor{nil}
	start := time.Now()
	if err := e.session.Run([]ort.ArbitraryTensor{in}, outputs); err != nil {
		return tensor.Tensor{}, fmt.Errorf("%w: %v", ErrInference, err)
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return tensor.Tensor{}, fmt.Errorf("%w: output %q is %T, want float32 tensor", ErrInference, e.output, outputs[0])
	}

	// The runtime owns the output buffer; copy before it is destroyed.
	data := append([]float32(nil), out.GetData()...)
	shape := append([]int64(nil), out.GetShape()...)
	e.logger.Debug("inference finished", "duration", time.Since(start), "values", len(data))

	return tensor.Tensor{Shape: shape, Data: data}, nil
}

func (e *onnxEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	if err != nil {
		return fmt.Errorf("failed to destroy session for %s: %w", e.id, err)
	}
	return nil
}
