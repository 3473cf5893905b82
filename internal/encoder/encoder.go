// Package encoder turns a composited surface into the bytes of one output
// format. Each format has one Encoder; the Registry maps format identifiers
// (including aliases such as jpg/jpeg) to the encoder that produces them.
package encoder

import (
	"context"
	"errors"
	"image"
)

// ErrUnavailable is returned when no usable encoder exists for a format,
// e.g. an external binary is missing from PATH.
var ErrUnavailable = errors.New("encoder unavailable")

// Encoder encodes an image to a specific format.
type Encoder interface {
	// Format returns the encoder name (e.g. "jpeg", "webp", "png").
	Format() string

	// Encode converts the image to bytes at the given quality (1-100).
	// Lossless encoders ignore quality.
	Encode(ctx context.Context, img image.Image, quality int) ([]byte, error)

	// Available returns true if the encoder is ready to use.
	// External encoders (cwebp) may not be installed.
	Available() bool
}

func clampQuality(q int) int {
	if q <= 0 || q > 100 {
		return 90
	}
	return q
}
