package inference

import (
	"fmt"

	"gorgonia.org/tensor"
)

// ChannelOrder defines the ordering of image channels.
type ChannelOrder int

const (
	// ChannelOrderHWC is Height-Width-Channel ordering (Keras style models).
	ChannelOrderHWC ChannelOrder = iota
	// ChannelOrderCHW is Channel-Height-Width ordering (common for ONNX exports from PyTorch).
	ChannelOrderCHW
)

func (o ChannelOrder) String() string {
	if o == ChannelOrderCHW {
		return "chw"
	}
	return "hwc"
}

// ParseChannelOrder parses "hwc" or "chw".
func ParseChannelOrder(s string) (ChannelOrder, error) {
	switch s {
	case "", "hwc", "HWC":
		return ChannelOrderHWC, nil
	case "chw", "CHW":
		return ChannelOrderCHW, nil
	default:
		return ChannelOrderHWC, fmt.Errorf("unknown channel order %q", s)
	}
}

// Tensor is a single normalized image ready for a classifier.
type Tensor struct {
	// Height of the image in pixels.
	Height int
	// Width of the image in pixels.
	Width int
	// Channels per pixel, always 3 for RGB.
	Channels int
	// Order is the memory layout of Data.
	Order ChannelOrder
	// Data holds Height*Width*Channels values in [0, 1] laid out per Order.
	Data []float32
}

// Shape returns the unbatched shape of the tensor in its memory order.
func (t *Tensor) Shape() []int {
	if t.Order == ChannelOrderCHW {
		return []int{t.Channels, t.Height, t.Width}
	}
	return []int{t.Height, t.Width, t.Channels}
}

// Batch wraps the tensor with a leading batch dimension of 1.
//
// The returned dense tensor shares the backing slice, so the caller must not mutate Data
// while a classifier holds the batch.
//
// Returns:
//   - *tensor.Dense: A (1,H,W,C) or (1,C,H,W) float32 tensor.
func (t *Tensor) Batch() *tensor.Dense {
	shape := append([]int{1}, t.Shape()...)
	return tensor.New(
		tensor.WithShape(shape...),
		tensor.WithBacking(t.Data),
	)
}

// BatchData returns the float32 backing slice and shape of a batch.
//
// Arguments:
//   - batch: A batch produced by Tensor.Batch.
//
// Returns:
//   - []float32: The batch values in row-major order.
//   - []int: The batch shape.
//   - error: An *InferenceError if the batch is nil or not float32.
func BatchData(batch *tensor.Dense) ([]float32, []int, error) {
	if batch == nil {
		return nil, nil, NewInferenceError("read batch", fmt.Errorf("batch is nil"))
	}
	data, ok := batch.Data().([]float32)
	if !ok {
		return nil, nil, NewInferenceError("read batch", fmt.Errorf("batch dtype %v is not float32", batch.Dtype()))
	}
	shape := batch.Shape()
	out := make([]int, len(shape))
	copy(out, shape)
	return data, out, nil
}
