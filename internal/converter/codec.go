package converter

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/biessek/golang-ico"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/AnyUserName/imgconv-cli/internal/encoder"
	"github.com/AnyUserName/imgconv-cli/internal/format"
)

// Codec is the image capability a Converter drives. Swapping it replaces
// the concrete image library without touching conversion semantics.
type Codec interface {
	// Decode reads an image from raw bytes. It also reports the detected
	// source format name ("png", "jpeg", ...).
	Decode(ctx context.Context, data []byte) (image.Image, string, error)

	// Composite renders src at the origin of a new surface of the same
	// size, prepared according to policy.
	Composite(src image.Image, policy format.AlphaPolicy) *image.NRGBA

	// Encode produces the bytes of f from the surface.
	Encode(ctx context.Context, img image.Image, f format.Format, quality int) ([]byte, error)
}

// DefaultMaxPixels caps the decoded surface at roughly 100 megapixels.
const DefaultMaxPixels = 100_000_000

// ImageCodec is the default Codec: stdlib and x/image decoders, imaging for
// orientation and compositing, and the encoder registry for output.
type ImageCodec struct {
	registry *encoder.Registry

	// MaxPixels rejects sources whose header declares a larger surface,
	// before any pixel buffer is allocated. Zero or less means DefaultMaxPixels.
	MaxPixels int64
}

// NewImageCodec returns a codec that encodes through registry.
func NewImageCodec(registry *encoder.Registry) *ImageCodec {
	if registry == nil {
		registry = encoder.NewRegistry()
	}
	return &ImageCodec{registry: registry, MaxPixels: DefaultMaxPixels}
}

func (c *ImageCodec) Decode(ctx context.Context, data []byte) (image.Image, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty input")
	}
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	limit := c.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxPixels
	}
	w, h := int64(cfg.Width), int64(cfg.Height)
	if w <= 0 || h <= 0 || w > limit || h > limit || w*h > limit {
		return nil, name, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, limit)
	}
	// EXIF orientation is applied so the surface matches what viewers show.
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, name, err
	}
	return img, name, nil
}

func (c *ImageCodec) Composite(src image.Image, policy format.AlphaPolicy) *image.NRGBA {
	b := src.Bounds()
	var fill color.Color = color.Transparent
	if policy == format.FlattenToWhite {
		fill = color.White
	}
	dst := imaging.New(b.Dx(), b.Dy(), fill)
	if policy == format.Preserve {
		// Nothing underneath: source-over onto transparent is a plain copy.
		return imaging.Paste(dst, src, image.Point{})
	}
	return imaging.Overlay(dst, src, image.Point{}, 1.0)
}

func (c *ImageCodec) Encode(ctx context.Context, img image.Image, f format.Format, quality int) ([]byte, error) {
	enc, err := c.registry.Get(f)
	if err != nil {
		return nil, err
	}
	return enc.Encode(ctx, img, quality)
}
