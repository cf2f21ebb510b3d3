package mask

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/ironsheep/rmbg-local/internal/imaging"
	"github.com/ironsheep/rmbg-local/internal/tensor"
)

func filled(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func outputTensor(t *testing.T, size int, v float32) tensor.Tensor {
	t.Helper()
	out, err := tensor.FromData(filled(size*size, v), tensor.MaskShape(size)...)
	if err != nil {
		t.Fatalf("FromData: %v", err)
	}
	return out
}

// gradientImage has distinct RGB values per pixel and a non-opaque alpha so
// the tests can tell whether source alpha leaks into the result.
func gradientImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x), uint8(y), uint8(x + y), 77})
		}
	}
	return img
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestNeedsSigmoid(t *testing.T) {
	tests := []struct {
		name   string
		values []float32
		want   bool
	}{
		{"probabilities", []float32{0, 0.25, 1}, false},
		{"lower boundary", []float32{-0.1, 0.5}, false},
		{"upper boundary", []float32{0.5, 1.1}, false},
		{"both boundaries", []float32{-0.1, 1.1}, false},
		{"just below", []float32{-0.1001, 0.5}, true},
		{"just above", []float32{0.5, 1.1001}, true},
		{"logits", []float32{-8, 3, 9}, true},
		{"empty", nil, false},
		{"nan ignored", []float32{float32(math.NaN()), 0.5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsSigmoid(tt.values); got != tt.want {
				t.Errorf("NeedsSigmoid(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestSigmoid(t *testing.T) {
	if got := Sigmoid(2); math.Abs(float64(got)-0.8808) > 1e-4 {
		t.Errorf("Sigmoid(2) = %v, want ~0.8808", got)
	}
	if got := Sigmoid(0); got != 0.5 {
		t.Errorf("Sigmoid(0) = %v, want 0.5", got)
	}

	prev := float32(0)
	for x := float32(-10); x <= 10; x += 0.25 {
		s := Sigmoid(x)
		if s <= 0 || s >= 1 {
			t.Fatalf("Sigmoid(%v) = %v, outside (0,1)", x, s)
		}
		if s < prev {
			t.Fatalf("Sigmoid not monotonic at %v: %v < %v", x, s, prev)
		}
		prev = s
	}
}

func TestToAlpha(t *testing.T) {
	tests := []struct {
		in   float32
		want uint8
	}{
		{0, 0},
		{1, 255},
		{0.5, 128},
		{0.25, 64},
		{-3, 0},
		{4, 255},
		{float32(math.NaN()), 0},
		{float32(math.Inf(1)), 255},
	}

	for _, tt := range tests {
		if got := ToAlpha(tt.in); got != tt.want {
			t.Errorf("ToAlpha(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBuild(t *testing.T) {
	m, err := Build([]float32{0, 1, 0.5, 2}, 2, false)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	want := []uint8{0, 255, 128, 255}
	for i := range want {
		if m.Pix[i] != want[i] {
			t.Errorf("pixel %d: got %d, want %d", i, m.Pix[i], want[i])
		}
	}

	m, err = Build([]float32{0, 2}, 1, true)
	if err == nil {
		t.Fatalf("expected size error, got mask %v", m.Bounds())
	}
	if !errors.Is(err, ErrMaskSize) {
		t.Errorf("expected ErrMaskSize, got %v", err)
	}

	if _, err := Build(nil, 0, false); !errors.Is(err, imaging.ErrSurface) {
		t.Errorf("expected ErrSurface for size 0, got %v", err)
	}
}

func TestComposite_HalfMaskOnTallImage(t *testing.T) {
	src := gradientImage(100, 150)

	for _, backend := range imaging.Backends() {
		rs, err := imaging.NewResampler(backend, imaging.FilterLinear)
		if err != nil {
			t.Fatalf("NewResampler: %v", err)
		}
		t.Run(rs.Name(), func(t *testing.T) {
			out, stats, err := Composite(src, outputTensor(t, 320, 0.5), 320, rs)
			if err != nil {
				t.Fatalf("Composite failed: %v", err)
			}
			if stats.SigmoidApplied {
				t.Error("sigmoid should not be applied to 0.5")
			}
			if out.Bounds() != image.Rect(0, 0, 100, 150) {
				t.Fatalf("bounds: got %v, want 100x150", out.Bounds())
			}

			for y := 0; y < 150; y++ {
				for x := 0; x < 100; x++ {
					got := out.NRGBAAt(x, y)
					want := src.NRGBAAt(x, y)
					if got.R != want.R || got.G != want.G || got.B != want.B {
						t.Fatalf("rgb at (%d,%d): got %v, want %v", x, y, got, want)
					}
					if absDiff(got.A, 128) > 1 {
						t.Fatalf("alpha at (%d,%d): got %d, want 128+-1", x, y, got.A)
					}
				}
			}
		})
	}
}

func TestComposite_SolidMasks(t *testing.T) {
	src := gradientImage(40, 30)

	tests := []struct {
		name      string
		value     float32
		wantAlpha uint8
		sigmoid   bool
	}{
		{"all ones", 1, 255, false},
		{"all zeros", 0, 0, false},
		{"large logits", 20, 255, true},
		{"negative logits", -20, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, stats, err := Composite(src, outputTensor(t, 16, tt.value), 16, nil)
			if err != nil {
				t.Fatalf("Composite failed: %v", err)
			}
			if stats.SigmoidApplied != tt.sigmoid {
				t.Errorf("SigmoidApplied: got %v, want %v", stats.SigmoidApplied, tt.sigmoid)
			}
			if stats.Min != tt.value || stats.Max != tt.value {
				t.Errorf("range: got [%v,%v], want [%v,%v]", stats.Min, stats.Max, tt.value, tt.value)
			}
			for i := 3; i < len(out.Pix); i += 4 {
				if out.Pix[i] != tt.wantAlpha {
					t.Fatalf("alpha byte %d: got %d, want %d", i, out.Pix[i], tt.wantAlpha)
				}
			}
		})
	}
}

func TestComposite_DoesNotModifySource(t *testing.T) {
	src := gradientImage(12, 9)
	before := append([]uint8(nil), src.Pix...)

	if _, _, err := Composite(src, outputTensor(t, 4, 1), 4, nil); err != nil {
		t.Fatalf("Composite failed: %v", err)
	}
	if !bytes.Equal(before, src.Pix) {
		t.Error("source pixels changed")
	}
}

func TestComposite_SameSizeMaskIsExact(t *testing.T) {
	src := gradientImage(3, 3)
	values := []float32{0, 0.2, 0.4, 0.6, 0.8, 1, 1, 0, 0.5}
	out, err := tensor.FromData(values, tensor.MaskShape(3)...)
	if err != nil {
		t.Fatalf("FromData: %v", err)
	}

	img, _, err := Composite(src, out, 3, nil)
	if err != nil {
		t.Fatalf("Composite failed: %v", err)
	}
	for i, v := range values {
		if got := img.Pix[i*4+3]; got != ToAlpha(v) {
			t.Errorf("alpha %d: got %d, want %d", i, got, ToAlpha(v))
		}
	}
}

func TestComposite_Errors(t *testing.T) {
	src := gradientImage(10, 10)

	tests := []struct {
		name    string
		src     image.Image
		values  []float32
		size    int
		wantErr error
	}{
		{"short output", src, filled(15, 0.5), 4, ErrMaskSize},
		{"long output", src, filled(17, 0.5), 4, ErrMaskSize},
		{"zero mask size", src, nil, 0, imaging.ErrSurface},
		{"empty source", image.NewNRGBA(image.Rectangle{}), filled(16, 0.5), 4, imaging.ErrSurface},
		{"nil source", nil, filled(16, 0.5), 4, imaging.ErrSurface},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Composite(tt.src, tensor.Tensor{Data: tt.values}, tt.size, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCompositePNG(t *testing.T) {
	src := gradientImage(20, 10)
	data, stats, err := CompositePNG(src, outputTensor(t, 8, 5), 8, nil)
	if err != nil {
		t.Fatalf("CompositePNG failed: %v", err)
	}
	if !stats.SigmoidApplied {
		t.Error("sigmoid should be applied to 5")
	}

	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if decoded.Bounds() != image.Rect(0, 0, 20, 10) {
		t.Errorf("bounds: got %v", decoded.Bounds())
	}

	nrgba, ok := decoded.(*image.NRGBA)
	if !ok {
		t.Fatalf("decoded type %T, want *image.NRGBA", decoded)
	}
	// sigmoid(5) = 0.9933 -> 253
	if got := nrgba.NRGBAAt(7, 3); got.A != 253 || got.R != 7 || got.G != 3 {
		t.Errorf("pixel (7,3): got %v", got)
	}
}
