package linear

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-classify/inference"
)

// colorWeights scores red, green and blue from a single pooled cell.
func colorWeights() Weights {
	return Weights{
		Pool:   1,
		Labels: []string{"red", "green", "blue"},
		Matrix: [][]float32{
			{10, 0, 0},
			{0, 10, 0},
			{0, 0, 10},
		},
		Bias: []float32{0, 0, 0},
	}
}

func solidBatch(h, w int, rgb [3]float32, order inference.ChannelOrder) *tensor.Dense {
	t := &inference.Tensor{Height: h, Width: w, Channels: 3, Order: order, Data: make([]float32, h*w*3)}
	for i := 0; i < h*w; i++ {
		for ch := 0; ch < 3; ch++ {
			if order == inference.ChannelOrderCHW {
				t.Data[ch*h*w+i] = rgb[ch]
			} else {
				t.Data[i*3+ch] = rgb[ch]
			}
		}
	}
	return t.Batch()
}

func argmax(v []float32) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func TestInferPicksDominantChannel(t *testing.T) {
	c, err := New(colorWeights())
	require.NoError(t, err)
	assert.Equal(t, 3, c.NumClasses())

	tests := []struct {
		name  string
		rgb   [3]float32
		order inference.ChannelOrder
		want  int
	}{
		{name: "red hwc", rgb: [3]float32{1, 0, 0}, order: inference.ChannelOrderHWC, want: 0},
		{name: "green chw", rgb: [3]float32{0.1, 0.9, 0.2}, order: inference.ChannelOrderCHW, want: 1},
		{name: "blue hwc", rgb: [3]float32{0.3, 0.2, 0.8}, order: inference.ChannelOrderHWC, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probs, err := c.Infer(context.Background(), solidBatch(8, 8, tt.rgb, tt.order))
			require.NoError(t, err)
			require.Len(t, probs, 3)

			var sum float32
			for _, p := range probs {
				sum += p
			}
			assert.InDelta(t, 1.0, sum, 1e-5)
			assert.Equal(t, tt.want, argmax(probs))
		})
	}
}

func TestInferUniformLogits(t *testing.T) {
	c, err := New(colorWeights())
	require.NoError(t, err)

	probs, err := c.Infer(context.Background(), solidBatch(4, 4, [3]float32{0, 0, 0}, inference.ChannelOrderHWC))
	require.NoError(t, err)
	for _, p := range probs {
		assert.InDelta(t, 1.0/3, p, 1e-6)
	}
}

func TestInferErrors(t *testing.T) {
	c, err := New(Weights{
		Pool:   2,
		Matrix: make([][]float32, 12),
		Bias:   []float32{0},
	})
	require.Error(t, err, "rows without values must be rejected")
	assert.Nil(t, c)

	matrix := make([][]float32, 12)
	for i := range matrix {
		matrix[i] = []float32{1}
	}
	c, err = New(Weights{Pool: 2, Matrix: matrix, Bias: []float32{0}})
	require.NoError(t, err)

	_, err = c.Infer(context.Background(), solidBatch(1, 1, [3]float32{}, inference.ChannelOrderHWC))
	require.Error(t, err)
	assert.Equal(t, inference.KindInference, inference.KindOf(err))

	_, err = c.Infer(context.Background(), nil)
	assert.Equal(t, inference.KindInference, inference.KindOf(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Infer(ctx, solidBatch(4, 4, [3]float32{}, inference.ChannelOrderHWC))
	assert.Equal(t, inference.KindInference, inference.KindOf(err))
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		w    Weights
	}{
		{name: "empty bias", w: Weights{Pool: 1, Matrix: [][]float32{{}, {}, {}}}},
		{name: "row count", w: Weights{Pool: 1, Matrix: [][]float32{{1}}, Bias: []float32{0}}},
		{name: "negative pool", w: Weights{Pool: -1, Bias: []float32{0}}},
		{
			name: "label count",
			w: Weights{
				Pool:   1,
				Labels: []string{"a", "b"},
				Matrix: [][]float32{{1}, {1}, {1}},
				Bias:   []float32{0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.w)
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "head.yaml")
	content := `pool: 1
labels: [red, green, blue]
weights:
  - [10, 0, 0]
  - [0, 10, 0]
  - [0, 0, 10]
bias: [0, 0, 0]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "green", "blue"}, c.Labels())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestInferConcurrent(t *testing.T) {
	c, err := New(colorWeights())
	require.NoError(t, err)

	colors := [][3]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	var wg sync.WaitGroup
	got := make([]int, 30)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			probs, err := c.Infer(context.Background(), solidBatch(6, 6, colors[i%3], inference.ChannelOrderHWC))
			if err == nil {
				got[i] = argmax(probs)
			} else {
				got[i] = -1
			}
		}(i)
	}
	wg.Wait()

	for i, idx := range got {
		assert.Equal(t, i%3, idx)
	}
}

func TestSoftmax(t *testing.T) {
	probs := softmax([]float32{1000, 1000})
	assert.InDelta(t, 0.5, probs[0], 1e-6)
	assert.InDelta(t, 0.5, probs[1], 1e-6)
	assert.Nil(t, softmax(nil))
}
