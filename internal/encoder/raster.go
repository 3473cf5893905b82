package encoder

import (
	"bytes"
	"context"
	"image"

	"github.com/disintegration/imaging"
)

// BMPEncoder writes uncompressed BMP. Surfaces with transparency are
// written as 32-bit with alpha.
type BMPEncoder struct{}

func (e *BMPEncoder) Format() string  { return "bmp" }
func (e *BMPEncoder) Available() bool { return true }

func (e *BMPEncoder) Encode(_ context.Context, img image.Image, _ int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.BMP); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TIFFEncoder writes deflate-compressed TIFF with unassociated alpha.
type TIFFEncoder struct{}

func (e *TIFFEncoder) Format() string  { return "tiff" }
func (e *TIFFEncoder) Available() bool { return true }

func (e *TIFFEncoder) Encode(_ context.Context, img image.Image, _ int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.TIFF); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
