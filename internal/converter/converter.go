// Package converter converts one image to one target format: decode, render
// onto a fresh surface under the format's alpha policy, encode. A conversion
// either returns complete output bytes or a *ConversionError; it never
// touches shared state.
package converter

import (
	"context"
	"fmt"

	"github.com/AnyUserName/imgconv-cli/internal/format"
)

// Encoded is the output of a successful conversion.
type Encoded struct {
	Data         []byte
	Format       format.Format
	Width        int
	Height       int
	SourceFormat string
}

// Converter runs single-image conversions through a Codec.
type Converter struct {
	codec Codec
}

// New returns a Converter using codec. A nil codec selects the default
// ImageCodec.
func New(codec Codec) *Converter {
	if codec == nil {
		codec = NewImageCodec(nil)
	}
	return &Converter{codec: codec}
}

// Convert turns data (named source, for error messages) into target.
// Context cancellation is returned unwrapped so callers can tell it apart
// from per-file failures.
func (c *Converter) Convert(ctx context.Context, source string, data []byte, target format.Format) (Encoded, error) {
	spec, ok := format.Lookup(target)
	if !ok {
		return Encoded{}, fmt.Errorf("%w: %q", format.ErrUnsupported, target)
	}

	src, srcFormat, err := c.codec.Decode(ctx, data)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Encoded{}, ctxErr
		}
		return Encoded{}, &ConversionError{Kind: KindDecode, Source: source, Err: err}
	}

	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return Encoded{}, &ConversionError{
			Kind: KindEncode, Source: source,
			Err: fmt.Errorf("empty surface %dx%d", b.Dx(), b.Dy()),
		}
	}

	surface := c.codec.Composite(src, spec.Alpha)

	out, err := c.codec.Encode(ctx, surface, target, target.QualityPercent())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Encoded{}, ctxErr
		}
		return Encoded{}, &ConversionError{Kind: KindEncode, Source: source, Err: err}
	}
	if len(out) == 0 {
		return Encoded{}, &ConversionError{Kind: KindEncode, Source: source, Err: fmt.Errorf("encoder produced no bytes")}
	}

	return Encoded{
		Data:         out,
		Format:       target,
		Width:        b.Dx(),
		Height:       b.Dy(),
		SourceFormat: srcFormat,
	}, nil
}
