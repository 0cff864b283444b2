package inference

import (
	"fmt"
	"image"

	"github.com/nfnt/resize"

	"github.com/nvr-ai/go-classify/images"
)

const (
	// DefaultInputSize is the edge length of the square classifier input.
	DefaultInputSize = 224
	// InputChannels is the number of channels fed to the classifier (RGB).
	InputChannels = 3
)

// Filter names the interpolation used to resize images to the model input.
type Filter string

const (
	// FilterNearest is nearest-neighbor interpolation.
	FilterNearest Filter = "nearest"
	// FilterBilinear is bilinear interpolation, the default.
	FilterBilinear Filter = "bilinear"
	// FilterBicubic is bicubic interpolation.
	FilterBicubic Filter = "bicubic"
	// FilterMitchell is Mitchell-Netravali interpolation.
	FilterMitchell Filter = "mitchell"
	// FilterLanczos2 is Lanczos resampling with a=2.
	FilterLanczos2 Filter = "lanczos2"
	// FilterLanczos3 is Lanczos resampling with a=3.
	FilterLanczos3 Filter = "lanczos3"
)

var filters = map[Filter]resize.InterpolationFunction{
	FilterNearest:  resize.NearestNeighbor,
	FilterBilinear: resize.Bilinear,
	FilterBicubic:  resize.Bicubic,
	FilterMitchell: resize.MitchellNetravali,
	FilterLanczos2: resize.Lanczos2,
	FilterLanczos3: resize.Lanczos3,
}

// Interpolation returns the resize function for the filter. The empty filter is bilinear.
func (f Filter) Interpolation() (resize.InterpolationFunction, error) {
	if f == "" {
		return resize.Bilinear, nil
	}
	fn, ok := filters[f]
	if !ok {
		return resize.Bilinear, fmt.Errorf("unknown resize filter %q", f)
	}
	return fn, nil
}

// PreprocessConfig defines how a decoded image becomes a classifier input.
type PreprocessConfig struct {
	// InputWidth is the expected width of the model input.
	InputWidth int
	// InputHeight is the expected height of the model input.
	InputHeight int
	// Filter is the resize interpolation.
	Filter Filter
	// ChannelOrder is the memory layout of the produced tensor.
	ChannelOrder ChannelOrder
}

// DefaultPreprocessConfig returns the 224x224 HWC bilinear [0, 1] configuration.
func DefaultPreprocessConfig() PreprocessConfig {
	return PreprocessConfig{
		InputWidth:   DefaultInputSize,
		InputHeight:  DefaultInputSize,
		Filter:       FilterBilinear,
		ChannelOrder: ChannelOrderHWC,
	}
}

// Validate checks the configuration for values the preprocessor cannot honor.
func (c PreprocessConfig) Validate() error {
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return fmt.Errorf("invalid input dimensions: %dx%d", c.InputWidth, c.InputHeight)
	}
	if _, err := c.Filter.Interpolation(); err != nil {
		return err
	}
	return nil
}

// Preprocessor turns pixel grids into classifier tensors. It holds no mutable state and is
// safe for concurrent use.
type Preprocessor struct {
	config PreprocessConfig
	interp resize.InterpolationFunction
}

// NewPreprocessor creates a new preprocessor with the given configuration.
//
// Arguments:
//   - config: The model-specific preprocessing configuration.
//
// Returns:
//   - *Preprocessor: A configured preprocessor.
//   - error: An error if the configuration is invalid.
//
// @example
//
//	p, err := NewPreprocessor(DefaultPreprocessConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	t, err := p.Preprocess(grid)
func NewPreprocessor(config PreprocessConfig) (*Preprocessor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	interp, _ := config.Filter.Interpolation()
	return &Preprocessor{config: config, interp: interp}, nil
}

// Config returns the preprocessing configuration.
func (p *Preprocessor) Config() PreprocessConfig {
	return p.config
}

// Preprocess stretches the grid to the model input size and normalizes it.
//
// The aspect ratio is not preserved: there is no crop and no letterbox.
//
// Arguments:
//   - grid: The decoded image.
//
// Returns:
//   - *Tensor: A freshly allocated tensor owned by the caller.
//   - error: An *images.DecodeError if the grid is malformed.
func (p *Preprocessor) Preprocess(grid *images.PixelGrid) (*Tensor, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}

	resized := resize.Resize(uint(p.config.InputWidth), uint(p.config.InputHeight), grid.RGBA(), p.interp)

	data := p.imageToTensor(resized)
	normalize(data)

	return &Tensor{
		Height:   p.config.InputHeight,
		Width:    p.config.InputWidth,
		Channels: InputChannels,
		Order:    p.config.ChannelOrder,
		Data:     data,
	}, nil
}

// imageToTensor converts a resized image to raw 0-255 float32 values in the configured order.
func (p *Preprocessor) imageToTensor(img image.Image) []float32 {
	width, height := p.config.InputWidth, p.config.InputHeight
	plane := width * height
	tensor := make([]float32, plane*InputChannels)

	set := func(x, y int, r, g, b uint8) {
		if p.config.ChannelOrder == ChannelOrderCHW {
			i := y*width + x
			tensor[i] = float32(r)
			tensor[plane+i] = float32(g)
			tensor[2*plane+i] = float32(b)
			return
		}
		i := (y*width + x) * InputChannels
		tensor[i] = float32(r)
		tensor[i+1] = float32(g)
		tensor[i+2] = float32(b)
	}

	bounds := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < height; y++ {
			row := rgba.Pix[(y+bounds.Min.Y-rgba.Rect.Min.Y)*rgba.Stride:]
			for x := 0; x < width; x++ {
				px := row[(x+bounds.Min.X-rgba.Rect.Min.X)*4:]
				set(x, y, px[0], px[1], px[2])
			}
		}
		return tensor
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			set(x, y, uint8(r>>8), uint8(g>>8), uint8(b>>8))
		}
	}
	return tensor
}

// normalize scales 0-255 values into [0, 1] in place.
func normalize(tensor []float32) {
	for i := range tensor {
		tensor[i] /= 255.0
	}
}
