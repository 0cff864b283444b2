// Package providers - ONNX Runtime execution providers and session options.
package providers

import (
	"fmt"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

// Provider represents different ONNX Runtime execution providers.
type Provider string

const (
	// CPUExecutionProvider uses the default CPU kernels.
	CPUExecutionProvider Provider = "cpu"

	// CUDAExecutionProvider uses NVIDIA CUDA for GPU acceleration.
	CUDAExecutionProvider Provider = "cuda"

	// CoreMLExecutionProvider uses Apple CoreML for macOS/iOS acceleration.
	CoreMLExecutionProvider Provider = "coreml"

	// OpenVINOExecutionProvider uses Intel OpenVINO for inference optimization.
	OpenVINOExecutionProvider Provider = "openvino"
)

// Providers is a list of all supported providers.
var Providers = []Provider{
	CPUExecutionProvider,
	CUDAExecutionProvider,
	CoreMLExecutionProvider,
	OpenVINOExecutionProvider,
}

// ParseProvider parses a provider name. The empty string selects the CPU provider.
func ParseProvider(s string) (Provider, error) {
	if s == "" {
		return CPUExecutionProvider, nil
	}
	p := Provider(strings.ToLower(s))
	for _, known := range Providers {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unsupported execution provider %q", s)
}

// GraphOptimization names an ONNX Runtime graph optimization level.
type GraphOptimization string

const (
	// GraphOptimizationDisabled disables all graph rewrites.
	GraphOptimizationDisabled GraphOptimization = "disabled"
	// GraphOptimizationBasic enables redundancy elimination and constant folding.
	GraphOptimizationBasic GraphOptimization = "basic"
	// GraphOptimizationExtended adds node fusions. This is the default.
	GraphOptimizationExtended GraphOptimization = "extended"
	// GraphOptimizationAll adds layout optimizations.
	GraphOptimizationAll GraphOptimization = "all"
)

// Level returns the native optimization level.
func (g GraphOptimization) Level() (ort.GraphOptimizationLevel, error) {
	switch g {
	case GraphOptimizationDisabled:
		return ort.GraphOptimizationLevelDisableAll, nil
	case GraphOptimizationBasic:
		return ort.GraphOptimizationLevelEnableBasic, nil
	case "", GraphOptimizationExtended:
		return ort.GraphOptimizationLevelEnableExtended, nil
	case GraphOptimizationAll:
		return ort.GraphOptimizationLevelEnableAll, nil
	default:
		return ort.GraphOptimizationLevelEnableExtended, fmt.Errorf("unknown graph optimization level %q", g)
	}
}

// Config selects the execution provider and threading of a session.
type Config struct {
	// Provider is the execution provider to append. CPU needs no configuration.
	Provider Provider `json:"provider" yaml:"provider"`

	// IntraOpNumThreads sets threads for parallelizing ops. 0 lets ONNX Runtime decide.
	IntraOpNumThreads int `json:"intra_op_num_threads" yaml:"intra_op_num_threads"`

	// InterOpNumThreads sets threads for parallelizing independent ops. 0 lets ONNX Runtime decide.
	InterOpNumThreads int `json:"inter_op_num_threads" yaml:"inter_op_num_threads"`

	// GraphOptimization controls the level of graph optimization.
	GraphOptimization GraphOptimization `json:"graph_optimization" yaml:"graph_optimization"`

	// CUDA options, used when Provider is cuda.
	CUDA CUDAOptions `json:"cuda" yaml:"cuda"`

	// CoreML options, used when Provider is coreml.
	CoreML CoreMLOptions `json:"coreml" yaml:"coreml"`

	// OpenVINO options, used when Provider is openvino.
	OpenVINO OpenVINOOptions `json:"openvino" yaml:"openvino"`
}

// DefaultConfig returns a CPU configuration with extended graph optimization.
func DefaultConfig() Config {
	return Config{
		Provider:          CPUExecutionProvider,
		GraphOptimization: GraphOptimizationExtended,
	}
}

// Validate checks the configuration without touching the native library.
func (c Config) Validate() error {
	if _, err := ParseProvider(string(c.Provider)); err != nil {
		return err
	}
	if c.IntraOpNumThreads < 0 || c.InterOpNumThreads < 0 {
		return fmt.Errorf("thread counts must not be negative")
	}
	if _, err := c.GraphOptimization.Level(); err != nil {
		return err
	}
	return nil
}
