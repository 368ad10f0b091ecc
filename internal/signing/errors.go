package signing

import (
	"errors"
	"fmt"
)

// Kind classifies signing failures.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindMissingAsset
	KindDocumentParse
	KindUnsupportedImageFormat
	KindPageIndexOutOfRange
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindMissingAsset:
		return "MissingAssetError"
	case KindDocumentParse:
		return "DocumentParseError"
	case KindUnsupportedImageFormat:
		return "UnsupportedImageFormatError"
	case KindPageIndexOutOfRange:
		return "PageIndexOutOfRangeError"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// IsInput reports whether the kind describes a problem with the caller's
// request rather than with processing it.
func (k Kind) IsInput() bool {
	return k == KindValidation || k == KindMissingAsset || k == KindPageIndexOutOfRange
}

// Sentinels for errors.Is. Every *Error matches the sentinel of its kind.
var (
	ErrValidation             = &Error{Kind: KindValidation}
	ErrMissingAsset           = &Error{Kind: KindMissingAsset}
	ErrDocumentParse          = &Error{Kind: KindDocumentParse}
	ErrUnsupportedImageFormat = &Error{Kind: KindUnsupportedImageFormat}
	ErrPageIndexOutOfRange    = &Error{Kind: KindPageIndexOutOfRange}
)

// Error is returned by every failing engine operation.
type Error struct {
	Kind    Kind
	FieldID string // empty when the failure is not tied to a field
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.FieldID != "" {
		msg += fmt.Sprintf(" (field %q)", e.FieldID)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, fieldID, format string, args ...any) *Error {
	return &Error{Kind: kind, FieldID: fieldID, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or 0 when err is not a signing error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
