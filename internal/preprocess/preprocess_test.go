package preprocess

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/ironsheep/rmbg-local/internal/imaging"
	"github.com/ironsheep/rmbg-local/internal/registry"
)

func solidImage(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// quadrantImage: red top-left, green top-right, blue bottom-left, white bottom-right.
func quadrantImage(size int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	h := size / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			switch {
			case x < h && y < h:
				img.SetNRGBA(x, y, color.NRGBA{255, 0, 0, 255})
			case y < h:
				img.SetNRGBA(x, y, color.NRGBA{0, 255, 0, 255})
			case x < h:
				img.SetNRGBA(x, y, color.NRGBA{0, 0, 255, 255})
			default:
				img.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
			}
		}
	}
	return img
}

func TestPreprocess_LengthAndFinite(t *testing.T) {
	src := quadrantImage(64)
	families := []registry.Normalization{registry.NormalizationUnit, registry.NormalizationImageNet}

	for _, fam := range families {
		for _, size := range []int{1, 7, 32, 320} {
			t.Run(string(fam), func(t *testing.T) {
				in, _, err := Preprocess(src, size, fam, nil)
				if err != nil {
					t.Fatalf("Preprocess failed: %v", err)
				}
				if in.Len() != 3*size*size {
					t.Fatalf("length: got %d, want %d", in.Len(), 3*size*size)
				}
				want := []int64{1, 3, int64(size), int64(size)}
				for i := range want {
					if in.Shape[i] != want[i] {
						t.Fatalf("shape: got %v, want %v", in.Shape, want)
					}
				}
				for i, v := range in.Data {
					if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
						t.Fatalf("value %d is not finite: %v", i, v)
					}
				}
			})
		}
	}
}

func TestPreprocess_ChannelPlanarLayout(t *testing.T) {
	const size = 4
	in, _, err := Preprocess(quadrantImage(size), size, registry.NormalizationUnit, nil)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}

	plane := size * size
	tests := []struct {
		name    string
		x, y    int
		r, g, b float32
	}{
		{"red top-left", 0, 0, 1, 0, 0},
		{"green top-right", 3, 0, 0, 1, 0},
		{"blue bottom-left", 0, 3, 0, 0, 1},
		{"white bottom-right", 3, 3, 1, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := tt.y*size + tt.x
			got := [3]float32{in.Data[i], in.Data[plane+i], in.Data[2*plane+i]}
			want := [3]float32{tt.r, tt.g, tt.b}
			if got != want {
				t.Errorf("pixel (%d,%d): got %v, want %v", tt.x, tt.y, got, want)
			}
		})
	}
}

func TestPreprocess_StretchesNonSquare(t *testing.T) {
	src := solidImage(100, 150, color.NRGBA{51, 102, 204, 255})
	in, handle, err := Preprocess(src, 32, registry.NormalizationUnit, nil)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}

	// A stretched (not letterboxed) solid image has no padding anywhere.
	plane := 32 * 32
	for _, i := range []int{0, 31, plane - 32, plane - 1} {
		if math.Abs(float64(in.Data[i])-0.2) > 1.0/255 {
			t.Errorf("R[%d] = %v, want 0.2", i, in.Data[i])
		}
		if math.Abs(float64(in.Data[2*plane+i])-0.8) > 1.0/255 {
			t.Errorf("B[%d] = %v, want 0.8", i, in.Data[2*plane+i])
		}
	}

	if handle.Bounds().Dx() != 100 || handle.Bounds().Dy() != 150 {
		t.Errorf("handle dimensions: got %v, want 100x150", handle.Bounds())
	}
	if handle != src {
		t.Error("an NRGBA source should be returned as the handle without copying")
	}
}

func TestPreprocess_HandleCopiesOtherTypes(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 20))
	_, handle, err := Preprocess(src, 8, registry.NormalizationUnit, nil)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	if handle.Bounds() != image.Rect(0, 0, 10, 20) {
		t.Errorf("handle bounds: got %v", handle.Bounds())
	}
}

func TestPreprocess_ImageNetValues(t *testing.T) {
	in, _, err := Preprocess(solidImage(4, 4, color.NRGBA{0, 255, 128, 255}), 4, registry.NormalizationImageNet, nil)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}

	want := [3]float64{
		(0 - 0.485) / 0.229,
		(1 - 0.456) / 0.224,
		(128.0/255 - 0.406) / 0.225,
	}
	for c := 0; c < 3; c++ {
		got := float64(in.Data[c*16])
		if math.Abs(got-want[c]) > 1e-5 {
			t.Errorf("channel %d: got %v, want %v", c, got, want[c])
		}
	}
}

func TestNormalize_ImageNetInvertible(t *testing.T) {
	for c := 0; c < 3; c++ {
		for v := 0; v < 256; v++ {
			n, err := Normalize(uint8(v), c, registry.NormalizationImageNet)
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			back := float64(n)*ImageNetStd[c] + ImageNetMean[c]
			if math.Abs(back-float64(v)/255) > 1e-6 {
				t.Fatalf("channel %d value %d: reconstructed %v, want %v", c, v, back, float64(v)/255)
			}
		}
	}
}

func TestNormalize_Unit(t *testing.T) {
	for v := 0; v < 256; v++ {
		n, err := Normalize(uint8(v), 1, registry.NormalizationUnit)
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if n < 0 || n > 1 {
			t.Fatalf("value %d: got %v, outside [0,1]", v, n)
		}
		if math.Abs(float64(n)-float64(v)/255) > 1e-7 {
			t.Fatalf("value %d: got %v, want %v", v, n, float64(v)/255)
		}
	}
}

func TestNormalize_InvalidChannel(t *testing.T) {
	for _, c := range []int{-1, 3} {
		if _, err := Normalize(0, c, registry.NormalizationUnit); err == nil {
			t.Errorf("channel %d should be rejected", c)
		}
	}
}

func TestPreprocess_Errors(t *testing.T) {
	src := solidImage(10, 10, color.NRGBA{0, 0, 0, 255})

	t.Run("unknown family", func(t *testing.T) {
		_, _, err := Preprocess(src, 8, "zscore", nil)
		if !errors.Is(err, ErrNormalization) {
			t.Errorf("expected ErrNormalization, got %v", err)
		}
	})

	t.Run("zero size", func(t *testing.T) {
		_, _, err := Preprocess(src, 0, registry.NormalizationUnit, nil)
		if !errors.Is(err, imaging.ErrSurface) {
			t.Errorf("expected ErrSurface, got %v", err)
		}
	})

	t.Run("empty source", func(t *testing.T) {
		_, _, err := Preprocess(image.NewNRGBA(image.Rectangle{}), 8, registry.NormalizationUnit, nil)
		if !errors.Is(err, imaging.ErrSurface) {
			t.Errorf("expected ErrSurface, got %v", err)
		}
	})
}

func TestPreprocessReader(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solidImage(30, 20, color.NRGBA{255, 255, 255, 255})); err != nil {
		t.Fatalf("encode: %v", err)
	}

	in, handle, err := PreprocessReader(&buf, 16, registry.NormalizationUnit, nil)
	if err != nil {
		t.Fatalf("PreprocessReader failed: %v", err)
	}
	if in.Len() != 3*16*16 {
		t.Errorf("length: got %d", in.Len())
	}
	if handle.Bounds().Dx() != 30 || handle.Bounds().Dy() != 20 {
		t.Errorf("handle: got %v", handle.Bounds())
	}
}

func TestPreprocessReader_DecodeError(t *testing.T) {
	_, _, err := PreprocessReader(strings.NewReader("GIF89a but not really"), 16, registry.NormalizationUnit, nil)
	if !errors.Is(err, imaging.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestPreprocess_AllResamplers(t *testing.T) {
	src := quadrantImage(40)
	for _, backend := range imaging.Backends() {
		rs, err := imaging.NewResampler(backend, imaging.FilterLinear)
		if err != nil {
			t.Fatalf("NewResampler(%s): %v", backend, err)
		}
		t.Run(rs.Name(), func(t *testing.T) {
			in, _, err := Preprocess(src, 20, registry.NormalizationImageNet, rs)
			if err != nil {
				t.Fatalf("Preprocess failed: %v", err)
			}
			if in.Len() != 3*20*20 {
				t.Errorf("length: got %d", in.Len())
			}
		})
	}
}
