package importer

import "errors"

// ErrInvalidFormat is matched by every rejection Import returns.
var ErrInvalidFormat = errors.New("invalid conversation format")

// FormatError explains why a document was rejected. NotJSON separates
// "the bytes are not JSON" from "JSON but the wrong shape".
type FormatError struct {
	Reason  string
	NotJSON bool
	Err     error
}

func (e *FormatError) Error() string {
	return "invalid conversation format: " + e.Reason
}

func (e *FormatError) Is(target error) bool { return target == ErrInvalidFormat }

func (e *FormatError) Unwrap() error { return e.Err }

func notJSON(err error) *FormatError {
	return &FormatError{Reason: "not valid JSON", NotJSON: true, Err: err}
}

func wrongShape(reason string, err error) *FormatError {
	return &FormatError{Reason: reason, Err: err}
}
