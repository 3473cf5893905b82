package encoder

import (
	"bytes"
	"context"
	"fmt"
	"image"

	ico "github.com/biessek/golang-ico"
)

// MaxICODimension is the largest edge an ICO directory entry can describe.
const MaxICODimension = 256

// ICOEncoder writes a single-image ICO with a PNG payload.
type ICOEncoder struct{}

func (e *ICOEncoder) Format() string  { return "ico" }
func (e *ICOEncoder) Available() bool { return true }

func (e *ICOEncoder) Encode(_ context.Context, img image.Image, _ int) ([]byte, error) {
	b := img.Bounds()
	if b.Dx() > MaxICODimension || b.Dy() > MaxICODimension {
		return nil, fmt.Errorf("ico supports at most %dx%d, got %dx%d",
			MaxICODimension, MaxICODimension, b.Dx(), b.Dy())
	}

	var buf bytes.Buffer
	if err := ico.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
