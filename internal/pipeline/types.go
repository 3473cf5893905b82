package pipeline

import (
	"github.com/AnyUserName/imgconv-cli/internal/converter"
	"github.com/AnyUserName/imgconv-cli/internal/format"
)

// InputFile is one selected file. Callers must not mutate Data after Submit.
type InputFile struct {
	// Name is the original filename, e.g. "holiday.png".
	Name string
	// MediaType is the declared type, e.g. "image/png".
	MediaType string
	// Data is the raw file payload.
	Data []byte
}

// Size returns the payload length in bytes.
func (f InputFile) Size() int64 { return int64(len(f.Data)) }

// Result is the outcome of converting one input within a run. Exactly one
// of Data (success) or Err (failure) is set.
type Result struct {
	Index      int
	SourceName string
	SourceSize int64
	Format     format.Format

	// Success fields.
	OutputName string
	Data       []byte
	Width      int
	Height     int

	// Err is a *converter.ConversionError on failure.
	Err error
}

// OK reports whether the conversion succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Kind is the failure kind, or 0 for a success.
func (r Result) Kind() converter.Kind { return converter.KindOf(r.Err) }
