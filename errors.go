package docpipe

import (
	"errors"
	"fmt"
)

// Kind classifies extraction failures.
type Kind string

const (
	// KindFileNotFound: the path does not exist; no handler was invoked.
	KindFileNotFound Kind = "file_not_found"
	// KindUnsupportedFormat: the extension maps to no handler.
	KindUnsupportedFormat Kind = "unsupported_format"
	// KindEmptyDocument: a handler ran cleanly but found no usable text.
	KindEmptyDocument Kind = "empty_document"
	// KindAllMethodsExhausted: every fallback strategy failed or came back blank.
	KindAllMethodsExhausted Kind = "all_methods_exhausted"
	// KindDecodeFailure: no supported encoding produced non-blank text.
	KindDecodeFailure Kind = "decode_failure"
	// KindHandlerFault: unexpected failure inside a handler, cause wrapped.
	KindHandlerFault Kind = "handler_fault"
)

// Error is the typed extraction error. Message is the wire text serialized
// as {"error": "<message>"}; Err carries the underlying cause, if any.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a docpipe error of the given kind.
func IsKind(err error, kind Kind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}

// ErrorMessage returns the wire message for err: the typed Message when err
// is a docpipe error, err.Error() otherwise.
func ErrorMessage(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func faultf(err error, format string, args ...any) *Error {
	return &Error{Kind: KindHandlerFault, Message: fmt.Sprintf(format, args...), Err: err}
}
