package imaging

import (
	"fmt"
	"image"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ParseMatte parses a matte colour such as "#FFFFFF", "ffffff" or "#fff".
func ParseMatte(hex string) (colorful.Color, error) {
	hex = strings.TrimSpace(hex)
	if hex == "" {
		return colorful.Color{}, fmt.Errorf("empty matte colour")
	}
	if hex[0] != '#' {
		hex = "#" + hex
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("invalid matte colour %q: %w", hex, err)
	}
	return c, nil
}

// Flatten composites img over a solid matte colour and returns an opaque copy.
//
// Each pixel becomes matte + alpha*(pixel - matte) in sRGB space, matching the
// way a browser paints a transparent PNG over a coloured page. The source is
// not modified.
func Flatten(img *image.NRGBA, matte colorful.Color) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+b.Dx()*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()*4]
		for i := 0; i < len(src); i += 4 {
			switch a := src[i+3]; a {
			case 255:
				copy(dst[i:i+3], src[i:i+3])
			default:
				fg := colorful.Color{
					R: float64(src[i]) / 255,
					G: float64(src[i+1]) / 255,
					B: float64(src[i+2]) / 255,
				}
				dst[i], dst[i+1], dst[i+2] = matte.BlendRgb(fg, float64(a)/255).RGB255()
			}
			dst[i+3] = 255
		}
	}
	return out
}
