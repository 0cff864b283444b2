// Package onnx - Image classifier backed by ONNX Runtime.
package onnx

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-classify/inference"
	"github.com/nvr-ai/go-classify/inference/providers"
)

// Classifier evaluates an ONNX classification model.
//
// The session is created once and shared. Every Infer call binds its own input and output
// tensors, so concurrent calls never share buffers.
type Classifier struct {
	session    *ort.DynamicAdvancedSession
	io         modelIO
	modelPath  string
	closeOnce  sync.Once
	closeError error
}

// NewClassifier loads the model and creates the runtime session.
//
// Arguments:
//   - cfg: The model path, tensor names and session options.
//   - logger: Logger for load-time details, may be nil.
//
// Returns:
//   - *Classifier: A classifier safe for concurrent use.
//   - error: An error if the runtime or model cannot be loaded.
func NewClassifier(cfg Config, logger *zap.Logger) (*Classifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := providers.InitializeRuntime(cfg.SharedLibrary); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read model metadata from %s", cfg.ModelPath)
	}
	io, err := resolveIO(inputs, outputs, cfg.InputName, cfg.OutputName)
	if err != nil {
		return nil, errors.Wrapf(err, "unsupported model %s", cfg.ModelPath)
	}

	options, err := providers.NewSessionOptions(cfg.Session)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{io.inputName},
		[]string{io.outputName},
		options,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating session for %s", cfg.ModelPath)
	}

	logger.Info("loaded onnx classifier",
		zap.String("model", cfg.ModelPath),
		zap.String("provider", string(cfg.Session.Provider)),
		zap.String("input", io.inputName),
		zap.Int64s("input_dims", io.inputDims),
		zap.String("output", io.outputName),
		zap.Int("classes", io.numClasses),
	)

	return &Classifier{
		session:   session,
		io:        io,
		modelPath: cfg.ModelPath,
	}, nil
}

// Infer runs the model on a batch of one image.
//
// Arguments:
//   - ctx: Checked before the session runs; a running session is not interrupted.
//   - batch: A float32 batch matching the model input.
//
// Returns:
//   - []float32: The class scores, owned by the caller.
//   - error: An *inference.InferenceError on any failure.
func (c *Classifier) Infer(ctx context.Context, batch *tensor.Dense) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, inference.NewInferenceError("run session", err)
	}

	data, shape, err := inference.BatchData(batch)
	if err != nil {
		return nil, err
	}
	if !shapeMatches(c.io.inputDims, shape) {
		return nil, inference.NewInferenceError("bind input",
			fmt.Errorf("batch shape %v does not fit model input %v", shape, c.io.inputDims))
	}

	input, err := ort.NewTensor(toShape(shape), data)
	if err != nil {
		return nil, inference.NewInferenceError("bind input", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if c.io.numClasses > 0 {
		output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(c.io.numClasses)))
		if err != nil {
			return nil, inference.NewInferenceError("bind output", err)
		}
		outputs[0] = output
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	if err := c.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, inference.NewInferenceError("run session", err)
	}

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, inference.NewInferenceError("read output", fmt.Errorf("output is %T, not a float32 tensor", outputs[0]))
	}

	scores := out.GetData()
	probs := make([]float32, len(scores))
	copy(probs, scores)
	return probs, nil
}

// NumClasses returns the class count declared by the model, or 0 if it is dynamic.
func (c *Classifier) NumClasses() int {
	return c.io.numClasses
}

// InputOrder returns the channel layout of the model input when it can be inferred.
func (c *Classifier) InputOrder() (inference.ChannelOrder, bool) {
	return inputOrder(c.io.inputDims)
}

// InputSize returns the spatial input size declared by the model, or 0 if it is dynamic.
func (c *Classifier) InputSize() (width, height int) {
	order, ok := c.InputOrder()
	if !ok {
		return 0, 0
	}
	dims := c.io.inputDims
	if order == inference.ChannelOrderCHW {
		return int(max(dims[3], 0)), int(max(dims[2], 0))
	}
	return int(max(dims[2], 0)), int(max(dims[1], 0))
}

// Close destroys the session. It is safe to call more than once.
func (c *Classifier) Close() error {
	c.closeOnce.Do(func() {
		if c.session != nil {
			c.closeError = c.session.Destroy()
		}
	})
	return c.closeError
}

// String describes the loaded model.
func (c *Classifier) String() string {
	return fmt.Sprintf("onnx(%s %s%v -> %s[%d])",
		c.modelPath, c.io.inputName, c.io.inputDims, c.io.outputName, c.io.numClasses)
}
