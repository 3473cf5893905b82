package converter

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode marks inputs that are not a recognizable image.
	ErrDecode = errors.New("decode failed")
	// ErrEncode marks surfaces the target format could not be produced from.
	ErrEncode = errors.New("encode failed")
	// ErrTooLarge marks sources whose declared dimensions exceed the codec's
	// pixel ceiling. It surfaces wrapped in a KindDecode ConversionError.
	ErrTooLarge = errors.New("image too large")
)

// Kind classifies a per-file conversion failure.
type Kind int

const (
	KindDecode Kind = iota + 1
	KindEncode
)

func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode_error"
	case KindEncode:
		return "encode_error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ConversionError is the typed failure of one conversion.
type ConversionError struct {
	Kind   Kind
	Source string
	Err    error
}

func (e *ConversionError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Source, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrDecode) and errors.Is(err, ErrEncode) match on Kind.
func (e *ConversionError) Is(target error) bool {
	switch target {
	case ErrDecode:
		return e.Kind == KindDecode
	case ErrEncode:
		return e.Kind == KindEncode
	}
	return false
}

// KindOf returns the failure kind of err, or 0 if err is not a ConversionError.
func KindOf(err error) Kind {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}
