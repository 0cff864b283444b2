// Package linear - Pure Go dense classification head evaluated with gorgonia.
//
// The head average-pools the normalized image into a Pool x Pool grid of RGB means and
// applies a single fully connected layer followed by softmax. It needs no native runtime,
// which makes it suitable for CPU-only smoke deployments and tests.
package linear

import (
	"context"
	"fmt"
	"os"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-classify/inference"
)

// DefaultPool is the pooling grid edge used when the weights file does not set one.
const DefaultPool = 4

// Weights is the on-disk description of a dense head.
type Weights struct {
	// Pool is the edge of the pooling grid. The head has Pool*Pool*3 input features.
	Pool int `yaml:"pool"`
	// Labels optionally names the classes in output order.
	Labels []string `yaml:"labels,omitempty"`
	// Matrix holds one row of class weights per feature.
	Matrix [][]float32 `yaml:"weights"`
	// Bias holds one value per class.
	Bias []float32 `yaml:"bias"`
}

// Classifier is a dense head over pooled pixels.
type Classifier struct {
	pool     int
	features int
	classes  int
	weights  []float32
	bias     []float32
	labels   []string
}

// Load reads weights from a YAML file and builds the classifier.
//
// Arguments:
//   - path: Path to the weights file.
//
// Returns:
//   - *Classifier: The classifier.
//   - error: An error if the file cannot be read or the weights are inconsistent.
func Load(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read weights file")
	}

	var w Weights
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, errors.Wrapf(err, "failed to parse weights file %s", path)
	}

	c, err := New(w)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid weights file %s", path)
	}
	return c, nil
}

// New validates the weights and builds the classifier.
//
// Arguments:
//   - w: The head weights.
//
// Returns:
//   - *Classifier: The classifier.
//   - error: An error if the matrix does not match the pooling grid or the bias.
func New(w Weights) (*Classifier, error) {
	pool := w.Pool
	if pool == 0 {
		pool = DefaultPool
	}
	if pool < 0 {
		return nil, fmt.Errorf("pool must be positive, got %d", pool)
	}

	features := pool * pool * inference.InputChannels
	if len(w.Matrix) != features {
		return nil, fmt.Errorf("weights have %d rows, pool %d needs %d", len(w.Matrix), pool, features)
	}
	classes := len(w.Bias)
	if classes == 0 {
		return nil, errors.New("bias is empty")
	}
	if len(w.Labels) > 0 && len(w.Labels) != classes {
		return nil, fmt.Errorf("%d labels for %d classes", len(w.Labels), classes)
	}

	flat := make([]float32, 0, features*classes)
	for i, row := range w.Matrix {
		if len(row) != classes {
			return nil, fmt.Errorf("weights row %d has %d values, want %d", i, len(row), classes)
		}
		flat = append(flat, row...)
	}

	return &Classifier{
		pool:     pool,
		features: features,
		classes:  classes,
		weights:  flat,
		bias:     append([]float32(nil), w.Bias...),
		labels:   append([]string(nil), w.Labels...),
	}, nil
}

// NumClasses returns the number of outputs.
func (c *Classifier) NumClasses() int {
	return c.classes
}

// Labels returns the class names stored with the weights, if any.
func (c *Classifier) Labels() []string {
	return append([]string(nil), c.labels...)
}

// Infer pools the batch, evaluates the dense layer and returns softmax probabilities.
//
// Each call builds its own graph over copies of the weights, so calls never share state.
//
// Arguments:
//   - ctx: Checked before the graph runs.
//   - batch: A (1,H,W,3) or (1,3,H,W) float32 batch.
//
// Returns:
//   - []float32: One probability per class.
//   - error: An *inference.InferenceError on any failure.
func (c *Classifier) Infer(ctx context.Context, batch *tensor.Dense) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, inference.NewInferenceError("linear head", err)
	}

	data, shape, err := inference.BatchData(batch)
	if err != nil {
		return nil, err
	}
	feats, err := poolFeatures(data, shape, c.pool)
	if err != nil {
		return nil, inference.NewInferenceError("pool features", err)
	}

	logits, err := c.logits(feats)
	if err != nil {
		return nil, inference.NewInferenceError("linear head", err)
	}
	return softmax(logits), nil
}

// logits computes feats x W + b on a fresh gorgonia graph.
func (c *Classifier) logits(feats []float32) ([]float32, error) {
	g := G.NewGraph()

	x := G.NewMatrix(g, tensor.Float32,
		G.WithShape(1, c.features),
		G.WithName("x"),
		G.WithValue(tensor.New(tensor.WithShape(1, c.features), tensor.WithBacking(feats))),
	)
	w := G.NewMatrix(g, tensor.Float32,
		G.WithShape(c.features, c.classes),
		G.WithName("w"),
		G.WithValue(tensor.New(tensor.WithShape(c.features, c.classes), tensor.WithBacking(clone(c.weights)))),
	)
	b := G.NewMatrix(g, tensor.Float32,
		G.WithShape(1, c.classes),
		G.WithName("b"),
		G.WithValue(tensor.New(tensor.WithShape(1, c.classes), tensor.WithBacking(clone(c.bias)))),
	)

	xw, err := G.Mul(x, w)
	if err != nil {
		return nil, errors.Wrap(err, "can't multiply features by weights")
	}
	out, err := G.Add(xw, b)
	if err != nil {
		return nil, errors.Wrap(err, "can't add bias")
	}

	var result G.Value
	G.Read(out, &result)

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		return nil, errors.Wrap(err, "can't run tape machine")
	}

	values, ok := result.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", result.Data())
	}
	return clone(values), nil
}

// poolFeatures averages each channel over a pool x pool grid of cells.
// The features are laid out cell by cell in row-major order, RGB within a cell.
func poolFeatures(data []float32, shape []int, pool int) ([]float32, error) {
	if len(shape) != 4 || shape[0] != 1 {
		return nil, fmt.Errorf("expected a batch of one image, got shape %v", shape)
	}

	var height, width int
	var at func(y, x, ch int) float32
	switch {
	case shape[3] == inference.InputChannels:
		height, width = shape[1], shape[2]
		at = func(y, x, ch int) float32 { return data[(y*width+x)*inference.InputChannels+ch] }
	case shape[1] == inference.InputChannels:
		height, width = shape[2], shape[3]
		at = func(y, x, ch int) float32 { return data[ch*height*width+y*width+x] }
	default:
		return nil, fmt.Errorf("no RGB channel axis in shape %v", shape)
	}
	if height < pool || width < pool {
		return nil, fmt.Errorf("image %dx%d is smaller than the %dx%d pooling grid", width, height, pool, pool)
	}

	feats := make([]float32, pool*pool*inference.InputChannels)
	for cy := 0; cy < pool; cy++ {
		y0, y1 := cy*height/pool, (cy+1)*height/pool
		for cx := 0; cx < pool; cx++ {
			x0, x1 := cx*width/pool, (cx+1)*width/pool
			n := float32((y1 - y0) * (x1 - x0))
			base := (cy*pool + cx) * inference.InputChannels
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					for ch := 0; ch < inference.InputChannels; ch++ {
						feats[base+ch] += at(y, x, ch)
					}
				}
			}
			for ch := 0; ch < inference.InputChannels; ch++ {
				feats[base+ch] /= n
			}
		}
	}
	return feats, nil
}

// softmax returns exp(v - max) normalized to sum to one.
func softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	hi := logits[0]
	for _, v := range logits[1:] {
		hi = math32.Max(hi, v)
	}

	probs := make([]float32, len(logits))
	var sum float32
	for i, v := range logits {
		probs[i] = math32.Exp(v - hi)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

func clone(v []float32) []float32 {
	return append([]float32(nil), v...)
}
