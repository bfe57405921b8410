package ops

import (
	"errors"
	"fmt"

	"github.com/wudi/pdftools/pages"
)

// Error kinds. Test with errors.Is.
var (
	ErrMissingInput           = errors.New("missing input")
	ErrInvalidSelector        = pages.ErrInvalidSelector
	ErrNoValidPages           = pages.ErrNoValidPages
	ErrWouldRemoveAllPages    = errors.New("would remove all pages")
	ErrDecodeFailure          = errors.New("decode failure")
	ErrUnsupportedImageFormat = errors.New("unsupported image format")
	ErrUnknownOperation       = errors.New("unknown operation")
	ErrInvalidOption          = errors.New("invalid option")
	ErrEncodeFailure          = errors.New("encode failure")
)

// Error is the single error type returned by Engine methods. Msg is the
// caller-facing message; Err, when set, is the underlying cause.
type Error struct {
	Op   Operation
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

func newError(op Operation, kind error, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(op Operation, kind error, cause error, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// selectorError converts resolver failures into operation errors.
func selectorError(op Operation, err error) *Error {
	var oe *Error
	if errors.As(err, &oe) {
		return oe
	}
	var re *pages.RangeError
	if errors.As(err, &re) {
		return &Error{Op: op, Kind: ErrInvalidSelector, Err: err,
			Msg: fmt.Sprintf("Invalid range: %s. PDF has %d pages.", re.Range, re.PageCount)}
	}
	kind := ErrInvalidSelector
	if errors.Is(err, pages.ErrNoValidPages) {
		kind = ErrNoValidPages
	}
	return &Error{Op: op, Kind: kind, Msg: err.Error(), Err: err}
}

// resolveRequired resolves sel against pageCount and reports an empty
// result as ErrNoValidPages with the operation's own message.
func resolveRequired(op Operation, sel pages.Selector, pageCount int, format string, args ...any) ([]int, error) {
	indices, err := pages.ResolveRequired(sel, pageCount)
	if err == nil {
		return indices, nil
	}
	if errors.Is(err, pages.ErrNoValidPages) {
		return nil, wrapError(op, ErrNoValidPages, err, format, args...)
	}
	return nil, selectorError(op, err)
}
