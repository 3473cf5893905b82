package encoder

import (
	"bytes"
	"context"
	"image"
	"image/png"
)

// PNGEncoder encodes images to PNG, keeping the alpha channel.
type PNGEncoder struct{}

func (e *PNGEncoder) Format() string  { return "png" }
func (e *PNGEncoder) Available() bool { return true }

func (e *PNGEncoder) Encode(_ context.Context, img image.Image, _ int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(512 * 1024)

	enc := &png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
