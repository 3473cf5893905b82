package encoder

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
)

// gifPalette is the web-safe palette with a fully transparent entry at
// index 0, so transparent source pixels stay transparent.
var gifPalette = func() color.Palette {
	p := make(color.Palette, 0, len(palette.WebSafe)+1)
	p = append(p, color.Transparent)
	return append(p, palette.WebSafe...)
}()

// GIFEncoder writes a single-frame GIF. GIF transparency is binary: pixels
// are either fully transparent or mapped to the nearest opaque palette entry.
type GIFEncoder struct{}

func (e *GIFEncoder) Format() string  { return "gif" }
func (e *GIFEncoder) Available() bool { return true }

func (e *GIFEncoder) Encode(_ context.Context, img image.Image, _ int) ([]byte, error) {
	b := img.Bounds()
	pm := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), gifPalette)
	draw.Draw(pm, pm.Bounds(), img, b.Min, draw.Src)

	var buf bytes.Buffer
	if err := gif.Encode(&buf, pm, &gif.Options{NumColors: len(gifPalette)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
