package onnx

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-classify/inference/providers"
)

// Config for the ONNX classifier.
type Config struct {
	// ModelPath is the path to the .onnx file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// InputName is the model input to feed. Empty selects the only float input.
	InputName string `json:"input_name" yaml:"input_name"`
	// OutputName is the model output holding class scores. Empty selects the first float output.
	OutputName string `json:"output_name" yaml:"output_name"`
	// SharedLibrary overrides the onnxruntime shared library location.
	SharedLibrary string `json:"shared_library" yaml:"shared_library"`
	// Session selects the execution provider and threading.
	Session providers.Config `json:"session" yaml:"session"`
}

// Validate checks the configuration without loading the model.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model path is required")
	}
	return errors.Wrap(c.Session.Validate(), "invalid session configuration")
}
