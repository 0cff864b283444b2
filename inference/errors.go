package inference

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-classify/images"
	"github.com/nvr-ai/go-classify/models/postprocess"
)

// InferenceError reports a classifier that failed to evaluate a batch or returned an output
// that cannot be interpreted as a probability vector. It is never retried.
type InferenceError struct {
	// Op names the classifier step that failed.
	Op  string
	Err error
}

func (e *InferenceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("inference failed: %s", e.Op)
	}
	return fmt.Sprintf("inference failed: %s: %v", e.Op, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// NewInferenceError wraps err as an *InferenceError for the named step.
// A nil err still produces an error, for ill-shaped outputs that have no cause.
//
// Arguments:
//   - op: The step that failed, such as "run session".
//   - err: The underlying cause, possibly nil.
//
// Returns:
//   - error: The wrapped error.
func NewInferenceError(op string, err error) error {
	return &InferenceError{Op: op, Err: err}
}

// Kind classifies a pipeline failure for the presentation layer.
type Kind int

const (
	// KindUnknown is any error outside the classification taxonomy.
	KindUnknown Kind = iota
	// KindDecode means the input could not be read as an image.
	KindDecode
	// KindInference means the classifier failed.
	KindInference
	// KindLabelMismatch means the classifier and label set disagree on the class count.
	KindLabelMismatch
)

func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindInference:
		return "inference"
	case KindLabelMismatch:
		return "label_mismatch"
	default:
		return "unknown"
	}
}

// KindOf maps err to its Kind, looking through any wrapping.
func KindOf(err error) Kind {
	var (
		decodeErr   *images.DecodeError
		inferErr    *InferenceError
		mismatchErr *postprocess.LabelMismatchError
	)

	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &decodeErr):
		return KindDecode
	case errors.As(err, &mismatchErr):
		return KindLabelMismatch
	case errors.As(err, &inferErr):
		return KindInference
	default:
		return KindUnknown
	}
}
