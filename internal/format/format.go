// Package format is the static table of output formats and their encoding
// rules. The table is fixed at init and never mutated.
package format

import (
	"errors"
	"fmt"
	"strings"
)

// Format is an output format identifier ("png", "jpg", "webp", ...).
type Format string

const (
	PNG  Format = "png"
	JPG  Format = "jpg"
	JPEG Format = "jpeg"
	WEBP Format = "webp"
	GIF  Format = "gif"
	BMP  Format = "bmp"
	ICO  Format = "ico"
	TIFF Format = "tiff"
)

// AlphaPolicy says what happens to transparency when encoding.
type AlphaPolicy int

const (
	// Preserve leaves the output surface transparent before compositing.
	Preserve AlphaPolicy = iota
	// FlattenToWhite paints the output surface opaque white first.
	FlattenToWhite
)

func (p AlphaPolicy) String() string {
	switch p {
	case Preserve:
		return "preserve"
	case FlattenToWhite:
		return "flatten-to-white"
	default:
		return fmt.Sprintf("AlphaPolicy(%d)", int(p))
	}
}

// DefaultQuality is applied to every lossy format. Lossless encoders ignore it.
const DefaultQuality = 0.9

// ErrUnsupported is returned by Parse for identifiers not in the table.
var ErrUnsupported = errors.New("unsupported format")

// Spec describes how one format is produced.
type Spec struct {
	Format    Format
	MediaType string
	Alpha     AlphaPolicy
	Lossy     bool
}

// Extension is the canonical file extension, without the dot.
func (s Spec) Extension() string { return string(s.Format) }

// Order matters: it is the order presented to users.
var table = []Spec{
	{Format: PNG, MediaType: "image/png", Alpha: Preserve},
	{Format: JPG, MediaType: "image/jpeg", Alpha: FlattenToWhite, Lossy: true},
	{Format: JPEG, MediaType: "image/jpeg", Alpha: FlattenToWhite, Lossy: true},
	{Format: WEBP, MediaType: "image/webp", Alpha: Preserve, Lossy: true},
	{Format: GIF, MediaType: "image/gif", Alpha: Preserve},
	{Format: BMP, MediaType: "image/bmp", Alpha: Preserve},
	{Format: ICO, MediaType: "image/x-icon", Alpha: Preserve},
	{Format: TIFF, MediaType: "image/tiff", Alpha: Preserve},
}

var index = func() map[Format]Spec {
	m := make(map[Format]Spec, len(table))
	for _, s := range table {
		m[s.Format] = s
	}
	return m
}()

// Supported returns the supported formats in presentation order.
func Supported() []Format {
	out := make([]Format, len(table))
	for i, s := range table {
		out[i] = s.Format
	}
	return out
}

// Specs returns a copy of the full table.
func Specs() []Spec {
	out := make([]Spec, len(table))
	copy(out, table)
	return out
}

// Parse normalizes a user-supplied identifier (case, leading dot) and checks
// it against the table.
func Parse(name string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "."))
	if _, ok := index[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, name)
	}
	return f, nil
}

// Lookup returns the table entry for f.
func Lookup(f Format) (Spec, bool) {
	s, ok := index[f]
	return s, ok
}

// AlphaPolicy returns the transparency rule for f. Unknown formats preserve.
func (f Format) AlphaPolicy() AlphaPolicy {
	return index[f].Alpha
}

// Quality returns the encoding quality in [0,1] for f.
func (f Format) Quality() float64 {
	return DefaultQuality
}

// QualityPercent is Quality scaled to the 1-100 range encoders take.
func (f Format) QualityPercent() int {
	return int(f.Quality()*100 + 0.5)
}

func (f Format) String() string { return string(f) }

// IsImageMediaType reports whether a declared media type is an image type.
func IsImageMediaType(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mediaType)), "image/")
}

// OutputName derives the output filename for src: the text after the final
// '.' is replaced by f's extension, or the extension is appended when src
// has none. An extension never contains '/'.
func OutputName(src string, f Format) string {
	ext := string(f)
	dot := strings.LastIndexByte(src, '.')
	if dot < 0 || strings.ContainsRune(src[dot+1:], '/') {
		return src + "." + ext
	}
	if dot == len(src)-1 {
		// "name." has an empty extension; drop the dangling dot.
		return src + ext
	}
	return src[:dot+1] + ext
}
