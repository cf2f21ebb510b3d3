package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// DefaultOutputName is the file name used for results when the caller gives none.
const DefaultOutputName = "removed-bg.png"

// EncodedImage is a finished raster in a transport-friendly form.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodePNG encodes img as PNG. PNG keeps the alpha channel and is lossless.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeBase64 encodes img as PNG and wraps it for JSON transport.
func EncodeBase64(img image.Image) (*EncodedImage, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return nil, err
	}
	return WrapPNG(data, img.Bounds().Dx(), img.Bounds().Dy()), nil
}

// WrapPNG wraps already encoded PNG bytes for JSON transport.
func WrapPNG(data []byte, width, height int) *EncodedImage {
	return &EncodedImage{
		Width:       width,
		Height:      height,
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:    "image/png",
	}
}

// Encode writes img to w in the format implied by the file name.
//
// Formats without an alpha channel (JPEG, BMP) drop the transparency. Callers
// that care flatten onto a matte first.
func Encode(w io.Writer, img image.Image, name string) error {
	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		return fmt.Errorf("unsupported output format for %q: %w", name, err)
	}
	if err := imaging.Encode(w, img, format); err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return nil
}

// Save writes img to path, choosing the format from its extension.
func Save(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// ValidateOutputName reports an error when the extension of name is not a
// format Encode can write.
func ValidateOutputName(name string) error {
	if _, err := imaging.FormatFromFilename(name); err != nil {
		return fmt.Errorf("unsupported output format for %q: %w", name, err)
	}
	return nil
}

// SupportsAlpha reports whether the format chosen for name keeps transparency.
func SupportsAlpha(name string) bool {
	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		return false
	}
	switch format {
	case imaging.PNG, imaging.TIFF:
		return true
	}
	return false
}

// DefaultOutputPath returns removed-bg.png next to input, or removed-bg-1.png
// when the input itself is named removed-bg.png.
func DefaultOutputPath(input string) string {
	dir := filepath.Dir(input)
	if strings.EqualFold(filepath.Base(input), DefaultOutputName) {
		return filepath.Join(dir, "removed-bg-1.png")
	}
	return filepath.Join(dir, DefaultOutputName)
}
