package imaging

import (
	"image"
	"math"
)

// Bounds is a rectangle in pixel coordinates: (X1,Y1) inclusive, (X2,Y2) exclusive.
type Bounds struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// ForegroundResult describes the opaque part of a cut-out image.
type ForegroundResult struct {
	// Found is false when no pixel passes the threshold.
	Found bool `json:"found"`

	// Bounds is the smallest rectangle containing every foreground pixel.
	Bounds Bounds `json:"bounds"`

	// CoveragePercent is the share of pixels at or above the threshold (0-100).
	CoveragePercent float64 `json:"coverage_percent"`

	// MeanAlpha is the average alpha over the whole image (0-255).
	MeanAlpha float64 `json:"mean_alpha"`
}

// MeasureForeground scans the alpha channel of img and reports where the kept
// subject lies. A pixel counts as foreground when its alpha is >= threshold.
//
// Useful after background removal to check that the model found something
// (Found == false usually means the mask was empty) and to crop to the subject.
func MeasureForeground(img *image.NRGBA, threshold uint8) *ForegroundResult {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return &ForegroundResult{}
	}

	minX, minY := w, h
	maxX, maxY := -1, -1
	count := 0
	var sum float64

	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			a := img.Pix[row+x*4+3]
			sum += float64(a)
			if a < threshold {
				continue
			}
			count++
			minX = min(minX, x)
			minY = min(minY, y)
			maxX = max(maxX, x)
			maxY = max(maxY, y)
		}
	}

	res := &ForegroundResult{
		MeanAlpha:       math.Round(sum/float64(w*h)*100) / 100,
		CoveragePercent: math.Round(float64(count)/float64(w*h)*10000) / 100,
	}
	if count > 0 {
		res.Found = true
		res.Bounds = Bounds{X1: minX, Y1: minY, X2: maxX + 1, Y2: maxY + 1}
	}
	return res
}
