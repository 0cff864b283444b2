package inference

import (
	"context"

	"gorgonia.org/tensor"
)

// Classifier evaluates a batch of one image and returns one score per class.
//
// Implementations are loaded once and shared: Infer must be safe for concurrent calls and
// must not retain the batch or the returned slice. Failures are reported as *InferenceError.
type Classifier interface {
	Infer(ctx context.Context, batch *tensor.Dense) ([]float32, error)
}

// ClassCounter is implemented by classifiers that know their output size ahead of time.
// The engine uses it to reject a mismatched label set at startup.
type ClassCounter interface {
	NumClasses() int
}

// Closer is implemented by classifiers holding native resources.
type Closer interface {
	Close() error
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, batch *tensor.Dense) ([]float32, error)

// Infer calls f(ctx, batch).
func (f ClassifierFunc) Infer(ctx context.Context, batch *tensor.Dense) ([]float32, error) {
	return f(ctx, batch)
}
