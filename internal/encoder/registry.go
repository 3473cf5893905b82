package encoder

import (
	"fmt"
	"strings"

	"github.com/AnyUserName/imgconv-cli/internal/format"
)

// Registry holds the encoder for every supported output format.
type Registry struct {
	encoders map[format.Format]Encoder
}

// NewRegistry creates a registry covering every format in the format table.
// Encoders are registered even when unavailable so Get can report why.
func NewRegistry() *Registry {
	jpeg := &JPEGEncoder{}
	return &Registry{
		encoders: map[format.Format]Encoder{
			format.PNG:  &PNGEncoder{},
			format.JPG:  jpeg,
			format.JPEG: jpeg,
			format.WEBP: &WebPEncoder{},
			format.GIF:  &GIFEncoder{},
			format.BMP:  &BMPEncoder{},
			format.ICO:  &ICOEncoder{},
			format.TIFF: &TIFFEncoder{},
		},
	}
}

// Register replaces the encoder for f.
func (r *Registry) Register(f format.Format, enc Encoder) {
	r.encoders[f] = enc
}

// Get returns a ready encoder for f.
func (r *Registry) Get(f format.Format) (Encoder, error) {
	enc, ok := r.encoders[f]
	if !ok {
		return nil, fmt.Errorf("%w: no encoder for %q", ErrUnavailable, f)
	}
	if !enc.Available() {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, enc.Format())
	}
	return enc, nil
}

// Available returns the formats that can currently be produced, in table order.
func (r *Registry) Available() []format.Format {
	var result []format.Format
	for _, f := range format.Supported() {
		if enc, ok := r.encoders[f]; ok && enc.Available() {
			result = append(result, f)
		}
	}
	return result
}

// String returns a summary of available encoders.
func (r *Registry) String() string {
	avail := r.Available()
	if len(avail) == 0 {
		return "no encoders available"
	}
	names := make([]string, len(avail))
	for i, f := range avail {
		names[i] = string(f)
	}
	return fmt.Sprintf("encoders: %s", strings.Join(names, ", "))
}
