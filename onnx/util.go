package onnx

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/go-classify/inference"
)

// modelIO is the resolved input and output of a classification model.
type modelIO struct {
	inputName  string
	inputDims  []int64
	outputName string
	numClasses int
}

// resolveIO picks the input and output to bind from the model metadata.
//
// Arguments:
//   - inputs: The model inputs as reported by ort.GetInputOutputInfo.
//   - outputs: The model outputs as reported by ort.GetInputOutputInfo.
//   - inputName: A configured input name, may be empty.
//   - outputName: A configured output name, may be empty.
//
// Returns:
//   - modelIO: The selected names, input dimensions and class count (0 if dynamic).
//   - error: An error if a configured name is missing or no float tensor is available.
func resolveIO(inputs, outputs []ort.InputOutputInfo, inputName, outputName string) (modelIO, error) {
	in, err := pickTensor(inputs, inputName, "input")
	if err != nil {
		return modelIO{}, err
	}
	out, err := pickTensor(outputs, outputName, "output")
	if err != nil {
		return modelIO{}, err
	}

	io := modelIO{
		inputName:  in.Name,
		inputDims:  append([]int64(nil), in.Dimensions...),
		outputName: out.Name,
	}
	if n := len(out.Dimensions); n > 0 && out.Dimensions[n-1] > 0 {
		io.numClasses = int(out.Dimensions[n-1])
	}
	return io, nil
}

func pickTensor(infos []ort.InputOutputInfo, name, kind string) (ort.InputOutputInfo, error) {
	if name != "" {
		for _, info := range infos {
			if info.Name == name {
				return info, nil
			}
		}
		return ort.InputOutputInfo{}, fmt.Errorf("model has no %s named %q", kind, name)
	}

	var candidates []ort.InputOutputInfo
	for _, info := range infos {
		if info.OrtValueType == ort.ONNXTypeTensor && info.DataType == ort.TensorElementDataTypeFloat {
			candidates = append(candidates, info)
		}
	}
	switch {
	case len(candidates) == 0:
		return ort.InputOutputInfo{}, fmt.Errorf("model has no float32 %s tensor", kind)
	case kind == "input" && len(candidates) > 1:
		return ort.InputOutputInfo{}, fmt.Errorf("model has %d float32 inputs, configure one by name", len(candidates))
	default:
		return candidates[0], nil
	}
}

// shapeMatches reports whether a concrete batch shape fits the model dimensions.
// Non-positive model dimensions are dynamic and match any size.
func shapeMatches(model []int64, batch []int) bool {
	if len(model) != len(batch) {
		return false
	}
	for i, d := range model {
		if d > 0 && d != int64(batch[i]) {
			return false
		}
	}
	return true
}

// inputOrder infers the channel layout from a rank-4 model input.
func inputOrder(dims []int64) (inference.ChannelOrder, bool) {
	if len(dims) != 4 {
		return inference.ChannelOrderHWC, false
	}
	switch {
	case dims[3] == inference.InputChannels:
		return inference.ChannelOrderHWC, true
	case dims[1] == inference.InputChannels:
		return inference.ChannelOrderCHW, true
	default:
		return inference.ChannelOrderHWC, false
	}
}

func toShape(dims []int) ort.Shape {
	shape := make(ort.Shape, len(dims))
	for i, d := range dims {
		shape[i] = int64(d)
	}
	return shape
}
