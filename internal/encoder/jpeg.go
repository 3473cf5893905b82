package encoder

import (
	"bytes"
	"context"
	"image"

	"github.com/disintegration/imaging"
)

// JPEGEncoder encodes images to baseline JPEG. Alpha is dropped, so callers
// flatten transparent surfaces before encoding.
type JPEGEncoder struct{}

func (e *JPEGEncoder) Format() string  { return "jpeg" }
func (e *JPEGEncoder) Available() bool { return true }

func (e *JPEGEncoder) Encode(_ context.Context, img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(256 * 1024) // pre-alloc 256KB, typical photo size

	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(clampQuality(quality))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
