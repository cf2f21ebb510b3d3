package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// CropToForeground trims img to fg.Bounds grown by padding pixels on every
// side, clamped to the image. When fg found nothing, img is returned as is.
func CropToForeground(img *image.NRGBA, fg *ForegroundResult, padding int) (*image.NRGBA, error) {
	if padding < 0 {
		return nil, fmt.Errorf("invalid crop padding: %d", padding)
	}
	if fg == nil || !fg.Found {
		return img, nil
	}

	b := img.Bounds()
	x1, y1 := fg.Bounds.X1-padding, fg.Bounds.Y1-padding
	x2, y2 := fg.Bounds.X2+padding, fg.Bounds.Y2+padding
	rect := image.Rect(x1, y1, x2, y2).Add(b.Min).Intersect(b)
	if rect.Empty() {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			x1, y1, x2, y2, b.Min.X, b.Min.Y, b.Max.X, b.Max.Y)
	}
	if rect == b {
		return img, nil
	}

	return imaging.Crop(img, rect), nil
}
