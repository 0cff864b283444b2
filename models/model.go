// Package models - Label sets and model manifests for image classifiers.
package models

// Backend identifies the runtime that evaluates the classifier.
type Backend string

const (
	// BackendONNX evaluates an ONNX model with onnxruntime.
	BackendONNX Backend = "onnx"
	// BackendLinear evaluates a pure-Go dense head over pooled pixels.
	BackendLinear Backend = "linear"
)

// Backends is a list of all supported backends.
var Backends = []Backend{BackendONNX, BackendLinear}

// Valid reports whether b names a supported backend.
func (b Backend) Valid() bool {
	for _, known := range Backends {
		if b == known {
			return true
		}
	}
	return false
}
