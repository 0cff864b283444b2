package inference

import (
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-classify/images"
)

func solidGrid(w, h int, c color.RGBA) *images.PixelGrid {
	grid := images.NewPixelGrid(w, h)
	for i := 0; i < len(grid.Pix); i += 3 {
		grid.Pix[i] = c.R
		grid.Pix[i+1] = c.G
		grid.Pix[i+2] = c.B
	}
	return grid
}

func randomGrid(rng *rand.Rand, w, h int) *images.PixelGrid {
	grid := images.NewPixelGrid(w, h)
	rng.Read(grid.Pix)
	return grid
}

func TestPreprocessBlackImage(t *testing.T) {
	p, err := NewPreprocessor(DefaultPreprocessConfig())
	require.NoError(t, err)

	out, err := p.Preprocess(solidGrid(100, 50, color.RGBA{A: 255}))
	require.NoError(t, err)

	assert.Equal(t, []int{224, 224, 3}, out.Shape())
	require.Len(t, out.Data, 224*224*3)
	for i, v := range out.Data {
		if v != 0 {
			t.Fatalf("value %d is %v, want 0", i, v)
		}
	}
}

func TestPreprocessShapeAndRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	tests := []struct {
		name  string
		w, h  int
		order ChannelOrder
		shape []int
	}{
		{name: "landscape hwc", w: 640, h: 480, order: ChannelOrderHWC, shape: []int{224, 224, 3}},
		{name: "portrait hwc", w: 30, h: 400, order: ChannelOrderHWC, shape: []int{224, 224, 3}},
		{name: "exact size", w: 224, h: 224, order: ChannelOrderHWC, shape: []int{224, 224, 3}},
		{name: "single pixel chw", w: 1, h: 1, order: ChannelOrderCHW, shape: []int{3, 224, 224}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultPreprocessConfig()
			cfg.ChannelOrder = tt.order
			p, err := NewPreprocessor(cfg)
			require.NoError(t, err)

			out, err := p.Preprocess(randomGrid(rng, tt.w, tt.h))
			require.NoError(t, err)
			assert.Equal(t, tt.shape, out.Shape())
			require.Len(t, out.Data, 224*224*3)

			for _, v := range out.Data {
				require.GreaterOrEqual(t, v, float32(0))
				require.LessOrEqual(t, v, float32(1))
			}

			batch := out.Batch()
			assert.Equal(t, append([]int{1}, tt.shape...), []int(batch.Shape()))
		})
	}
}

func TestPreprocessChannelOrder(t *testing.T) {
	red := solidGrid(8, 8, color.RGBA{R: 255, A: 255})

	hwc, err := NewPreprocessor(DefaultPreprocessConfig())
	require.NoError(t, err)
	out, err := hwc.Preprocess(red)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, out.Data[0], 0.01)
	assert.Equal(t, float32(0), out.Data[1])
	assert.Equal(t, float32(0), out.Data[2])

	cfg := DefaultPreprocessConfig()
	cfg.ChannelOrder = ChannelOrderCHW
	chw, err := NewPreprocessor(cfg)
	require.NoError(t, err)
	out, err = chw.Preprocess(red)
	require.NoError(t, err)
	plane := 224 * 224
	assert.InDelta(t, 1.0, out.Data[0], 0.01)
	assert.Equal(t, float32(0), out.Data[plane])
	assert.Equal(t, float32(0), out.Data[2*plane])
}

func TestPreprocessMalformedGrid(t *testing.T) {
	p, err := NewPreprocessor(DefaultPreprocessConfig())
	require.NoError(t, err)

	tests := []struct {
		name string
		grid *images.PixelGrid
	}{
		{name: "nil", grid: nil},
		{name: "zero width", grid: &images.PixelGrid{Width: 0, Height: 10}},
		{name: "zero height", grid: &images.PixelGrid{Width: 10, Height: 0}},
		{name: "short buffer", grid: &images.PixelGrid{Width: 2, Height: 2, Pix: make([]uint8, 5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Preprocess(tt.grid)
			require.Error(t, err)
			var decodeErr *images.DecodeError
			assert.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, KindDecode, KindOf(err))
		})
	}
}

func TestPreprocessConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*PreprocessConfig)
		wantErr bool
	}{
		{name: "default", mutate: func(*PreprocessConfig) {}},
		{name: "empty filter means bilinear", mutate: func(c *PreprocessConfig) { c.Filter = "" }},
		{name: "lanczos", mutate: func(c *PreprocessConfig) { c.Filter = FilterLanczos3 }},
		{name: "unknown filter", mutate: func(c *PreprocessConfig) { c.Filter = "sinc" }, wantErr: true},
		{name: "zero width", mutate: func(c *PreprocessConfig) { c.InputWidth = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultPreprocessConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPreprocessStaysInUnitRange(t *testing.T) {
	for _, order := range []ChannelOrder{ChannelOrderHWC, ChannelOrderCHW} {
		cfg := DefaultPreprocessConfig()
		cfg.ChannelOrder = order
		cfg.Filter = FilterNearest
		p, err := NewPreprocessor(cfg)
		require.NoError(t, err)

		black, err := p.Preprocess(solidGrid(10, 10, color.RGBA{A: 255}))
		require.NoError(t, err)
		white, err := p.Preprocess(solidGrid(10, 10, color.RGBA{R: 255, G: 255, B: 255, A: 255}))
		require.NoError(t, err)

		for i := range black.Data {
			require.Equal(t, float32(0), black.Data[i])
			require.Equal(t, float32(1), white.Data[i])
		}
	}
}

func TestParseChannelOrder(t *testing.T) {
	order, err := ParseChannelOrder("chw")
	require.NoError(t, err)
	assert.Equal(t, ChannelOrderCHW, order)

	order, err = ParseChannelOrder("")
	require.NoError(t, err)
	assert.Equal(t, ChannelOrderHWC, order)

	_, err = ParseChannelOrder("nchw")
	assert.Error(t, err)
}
