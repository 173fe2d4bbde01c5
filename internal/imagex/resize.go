// Package imagex produces fixed-width raster derivatives of uploaded images.
package imagex

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrUndecodable is returned when the source bytes are not a supported image.
var ErrUndecodable = errors.New("undecodable image")

const (
	// JPEGQuality is used when re-encoding JPEG derivatives.
	JPEGQuality = 85

	// MaxPixels caps width*height of a source image. Decoding allocates the
	// full bitmap, so headers are checked before any pixel is read.
	MaxPixels = 40_000_000
)

// Resize scales src so its width equals width, keeping the aspect ratio, and
// re-encodes it. JPEG stays JPEG, GIF stays GIF (first frame), everything
// else is written as PNG. Images narrower than width are scaled up, matching
// how thumbnail consumers expect a fixed width.
func Resize(src []byte, width int) ([]byte, error) {
	if width <= 0 {
		return nil, fmt.Errorf("invalid width %d", width)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUndecodable, cfg.Width, cfg.Height, MaxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, ErrUndecodable
	}

	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	var out bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&out, dst, &jpeg.Options{Quality: JPEGQuality})
	case "gif":
		err = gif.Encode(&out, dst, nil)
	default:
		err = png.Encode(&out, dst)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}

	return out.Bytes(), nil
}
