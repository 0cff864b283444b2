package images

import "fmt"

// DecodeError reports image bytes that could not be turned into a pixel grid:
// empty or oversized payloads, malformed data URIs, bad base64, unknown formats.
type DecodeError struct {
	// Reason is a short, client-safe description of the failure.
	Reason string
	// Err is the underlying cause, if any.
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not read image: %s: %v", e.Reason, e.Err)
	}
	return "could not read image: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func newDecodeError(reason string, err error) error {
	return &DecodeError{Reason: reason, Err: err}
}

func newDecodeErrorf(err error, format string, args ...any) error {
	return &DecodeError{Reason: fmt.Sprintf(format, args...), Err: err}
}
