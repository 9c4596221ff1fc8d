// Package render turns generated fields into grayscale images.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/gift"
	"golang.org/x/image/draw"
)

// ToGray maps a row-major field of values in [0, 1] onto a grayscale image.
// Values outside the range are clamped.
func ToGray(values []float32, width, height int) (*image.Gray, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if len(values) != width*height {
		return nil, fmt.Errorf("field has %d samples, image %dx%d needs %d", len(values), width, height, width*height)
	}

	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := range height {
		row := values[y*width : (y+1)*width]
		for x, v := range row {
			img.SetGray(x, y, color.Gray{Y: toByte(v)})
		}
	}
	return img, nil
}

func toByte(v float32) uint8 {
	if math.IsNaN(float64(v)) {
		return 0
	}
	return uint8(math.Round(float64(min(max(v, 0), 1)) * 255))
}

// Smooth applies a Gaussian blur. The sigma parameter controls the blur
// radius; sigma <= 0 returns img unchanged.
func Smooth(img *image.Gray, sigma float32) *image.Gray {
	if sigma <= 0 {
		return img
	}
	g := gift.New(gift.GaussianBlur(sigma))
	dst := image.NewGray(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

// Scale resizes img by factor with Catmull-Rom interpolation.
func Scale(img *image.Gray, factor float64) (*image.Gray, error) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil, fmt.Errorf("scale factor must be positive, got %v", factor)
	}
	if factor == 1 {
		return img, nil
	}
	b := img.Bounds()
	w := max(int(math.Round(float64(b.Dx())*factor)), 1)
	h := max(int(math.Round(float64(b.Dy())*factor)), 1)
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, nil
}

// WritePNG encodes img to path, creating parent directories as needed.
func WritePNG(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image %s: %w", path, err)
	}
	defer file.Close()

	if err := EncodePNG(file, img); err != nil {
		return fmt.Errorf("failed to encode image %s: %w", path, err)
	}
	return nil
}

// EncodePNG writes img as a PNG, favouring speed over size.
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return enc.Encode(w, img)
}
