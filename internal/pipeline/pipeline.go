// Package pipeline runs one background-removal request end to end:
// select model, decode, preprocess, infer, composite, encode.
//
// Stages run strictly in order and the first failure aborts the request. The
// returned error is wrapped with the name of the failing stage; the
// underlying sentinel (imaging.ErrDecode, engine.ErrNetwork, ...) stays
// reachable with errors.Is. Nothing is retried and no partial result is
// returned.
package pipeline

import (
	"context"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"

	"github.com/ironsheep/rmbg-local/internal/engine"
	"github.com/ironsheep/rmbg-local/internal/imaging"
	"github.com/ironsheep/rmbg-local/internal/mask"
	"github.com/ironsheep/rmbg-local/internal/preprocess"
	"github.com/ironsheep/rmbg-local/internal/registry"
	"github.com/ironsheep/rmbg-local/internal/session"
)

// Stage names used to wrap errors.
const (
	StageSelect     = "select model"
	StageDecode     = "decode"
	StagePreprocess = "preprocess"
	StageInference  = "inference"
	StageComposite  = "composite"
	StageEncode     = "encode"
	StageMatte      = "matte"
	StageCrop       = "crop"
)

// DefaultForegroundThreshold is the alpha at which a pixel counts as kept
// subject in Result.Foreground.
const DefaultForegroundThreshold = 128

// Options tunes a single request.
type Options struct {
	// Progress receives weight download progress when the model has to be
	// loaded.
	Progress engine.ProgressFunc

	// Matte, when set, flattens the result onto this colour ("#RRGGBB").
	Matte string

	// ForegroundThreshold overrides DefaultForegroundThreshold when non-zero.
	ForegroundThreshold uint8

	// Crop trims the result to the foreground bounds plus CropPadding pixels.
	Crop        bool
	CropPadding int
}

// Result is a finished cut-out.
type Result struct {
	RequestID string
	Model     registry.Descriptor

	// Image is the composited result at the source resolution.
	Image *image.NRGBA
	// PNG is Image encoded as PNG.
	PNG []byte

	Width  int
	Height int

	Mask          mask.Stats
	InferenceTime time.Duration
	// Foreground is measured in source coordinates, before any crop.
	Foreground *imaging.ForegroundResult
}

// Pipeline wires a session to the image stages.
type Pipeline struct {
	Session   *session.Session
	Resampler imaging.Resampler
	Logger    *slog.Logger
}

// New returns a pipeline. A nil resampler selects imaging.DefaultResampler.
func New(s *session.Session, rs imaging.Resampler, logger *slog.Logger) *Pipeline {
	if rs == nil {
		rs = imaging.DefaultResampler()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{Session: s, Resampler: rs, Logger: logger}
}

// RemoveBackgroundReader decodes r and runs RemoveBackground on it.
func (p *Pipeline) RemoveBackgroundReader(ctx context.Context, id registry.ModelType, r io.Reader, opts Options) (*Result, error) {
	src, err := imaging.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, StageDecode)
	}
	return p.RemoveBackground(ctx, id, src, opts)
}

// RemoveBackgroundFile decodes the image at path and runs RemoveBackground on it.
func (p *Pipeline) RemoveBackgroundFile(ctx context.Context, id registry.ModelType, path string, opts Options) (*Result, error) {
	src, err := imaging.DecodeFile(path)
	if err != nil {
		return nil, errors.Wrap(err, StageDecode)
	}
	return p.RemoveBackground(ctx, id, src, opts)
}

// RemoveBackground makes id the session's model and cuts the background out
// of src. src is not modified.
func (p *Pipeline) RemoveBackground(ctx context.Context, id registry.ModelType, src image.Image, opts Options) (*Result, error) {
	reqID := ksuid.New().String()
	log := p.logger().With("request_id", reqID, "model", string(id))

	var matte *colorful.Color
	if opts.Matte != "" {
		c, err := imaging.ParseMatte(opts.Matte)
		if err != nil {
			return nil, errors.Wrap(err, StageMatte)
		}
		matte = &c
	}

	d, err := registry.Describe(id)
	if err != nil {
		return nil, errors.Wrap(err, StageSelect)
	}

	log.Debug("selecting model")
	eng, err := p.Session.Select(ctx, id, opts.Progress)
	if err != nil {
		return nil, errors.Wrap(err, StageSelect)
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, StagePreprocess)
	}
	input, handle, err := preprocess.Preprocess(src, d.InputSize, d.Normalization, p.resampler())
	if err != nil {
		return nil, errors.Wrap(err, StagePreprocess)
	}

	start := time.Now()
	output, err := eng.Run(ctx, input)
	if err != nil {
		return nil, errors.Wrap(err, StageInference)
	}
	elapsed := time.Since(start)

	img, stats, err := mask.Composite(handle, output, d.InputSize, p.resampler())
	if err != nil {
		return nil, errors.Wrap(err, StageComposite)
	}

	threshold := opts.ForegroundThreshold
	if threshold == 0 {
		threshold = DefaultForegroundThreshold
	}
	fg := imaging.MeasureForeground(img, threshold)

	if opts.Crop {
		img, err = imaging.CropToForeground(img, fg, opts.CropPadding)
		if err != nil {
			return nil, errors.Wrap(err, StageCrop)
		}
	}

	if matte != nil {
		img = imaging.Flatten(img, *matte)
	}

	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, errors.Wrap(err, StageEncode)
	}

	log.Info("background removed",
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
		"inference", elapsed,
		"sigmoid", stats.SigmoidApplied,
		"coverage_percent", fg.CoveragePercent)

	return &Result{
		RequestID:     reqID,
		Model:         d,
		Image:         img,
		PNG:           data,
		Width:         img.Bounds().Dx(),
		Height:        img.Bounds().Dy(),
		Mask:          stats,
		InferenceTime: elapsed,
		Foreground:    fg,
	}, nil
}

// Save writes the result to path. PNG reuses the encoded bytes; other
// formats are encoded from Image according to the extension.
func (r *Result) Save(path string) error {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		if err := os.WriteFile(path, r.PNG, 0o644); err != nil {
			return errors.Wrapf(err, "%s: failed to write %s", StageEncode, path)
		}
		return nil
	}
	if err := imaging.Save(r.Image, path); err != nil {
		return errors.Wrap(err, StageEncode)
	}
	return nil
}

func (p *Pipeline) resampler() imaging.Resampler {
	if p.Resampler != nil {
		return p.Resampler
	}
	return imaging.DefaultResampler()
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
