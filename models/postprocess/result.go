// Package postprocess - Postprocessing of classifier outputs.
package postprocess

import "fmt"

// Prediction represents a single ranked classification result.
type Prediction struct {
	// The index of the class in the label set.
	Index int `json:"index"`
	// The class name.
	Label string `json:"label"`
	// The raw classifier score for the class.
	Confidence float32 `json:"confidence"`
}

func (p Prediction) String() string {
	return fmt.Sprintf("%s (%.2f%%)", p.Label, p.Confidence*100)
}

// LabelMismatchError reports a probability vector whose length does not match the label
// set. It means the model and its labels drifted apart and every request will fail the
// same way until the configuration is fixed.
type LabelMismatchError struct {
	// Scores is the length of the classifier output.
	Scores int
	// Labels is the size of the label set.
	Labels int
}

func (e *LabelMismatchError) Error() string {
	return fmt.Sprintf("label set mismatch: classifier returned %d scores for %d labels", e.Scores, e.Labels)
}
