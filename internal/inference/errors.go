package inference

import "errors"

// Error kinds. Every error returned by this package matches exactly one of
// these via errors.Is.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrMalformedInput    = errors.New("malformed input")
	ErrEmptyInput        = errors.New("empty input")
	ErrSchema            = errors.New("schema error")
)

// Error is returned when an upload cannot be inferred.
type Error struct {
	Kind    error
	Message string
	// Statement is the dump statement that failed, if any.
	Statement string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}
