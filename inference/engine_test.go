package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-classify/images"
	"github.com/nvr-ai/go-classify/models"
	"github.com/nvr-ai/go-classify/models/postprocess"
)

// grayClassifier scores the class whose index matches the image brightness in steps of 5.
type grayClassifier struct {
	classes int
}

func (c grayClassifier) Infer(_ context.Context, batch *tensor.Dense) ([]float32, error) {
	data, _, err := BatchData(batch)
	if err != nil {
		return nil, err
	}
	var sum float64
	for _, v := range data {
		sum += float64(v)
	}
	level := int(math.Round(sum / float64(len(data)) * 255 / 5))

	probs := make([]float32, c.classes)
	for i := range probs {
		probs[i] = 0.001
	}
	if level >= 0 && level < c.classes {
		probs[level] = 0.9
	}
	return probs, nil
}

func (c grayClassifier) NumClasses() int {
	return c.classes
}

func encodePNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func gray(level int) color.Color {
	v := uint8(level * 5)
	return color.RGBA{R: v, G: v, B: v, A: 255}
}

func TestEngineClassify(t *testing.T) {
	engine, err := NewEngineBuilder().
		WithClassifier(grayClassifier{classes: 45}).
		WithLabels(models.Mammals()).
		Build()
	require.NoError(t, err)
	defer engine.Close()

	result, err := engine.Classify(context.Background(), Request{
		Input:     images.FileBytes{Data: encodePNG(t, 64, 48, gray(18)), Filename: "koala.png"},
		Reference: "/static/abc.jpg",
	})
	require.NoError(t, err)
	require.Len(t, result.Predictions, 3)
	assert.Equal(t, "koala", result.Predictions[0].Label)
	assert.Equal(t, "/static/abc.jpg", result.Reference)

	// The remaining two are the lowest indexes among the tied scores.
	assert.Equal(t, "african_elephant", result.Predictions[1].Label)
	assert.Equal(t, "alpaca", result.Predictions[2].Label)
}

func TestEngineClassifyDataURI(t *testing.T) {
	engine := NewEngineBuilder().WithClassifier(grayClassifier{classes: 45}).MustBuild()

	payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString(encodePNG(t, 20, 20, gray(44)))
	result, err := engine.Classify(context.Background(), Request{Input: images.NewInlineDataURI(payload)})
	require.NoError(t, err)

	top, ok := result.Top()
	require.True(t, ok)
	assert.Equal(t, "zebra", top.Label)
}

func TestEngineDecodeThenClassifyGrid(t *testing.T) {
	engine := NewEngineBuilder().WithClassifier(grayClassifier{classes: 45}).MustBuild()

	grid, format, err := engine.Decode(images.FileBytes{Data: encodePNG(t, 30, 10, gray(7))})
	require.NoError(t, err)
	assert.Equal(t, images.FormatPNG, format)

	result, err := engine.ClassifyGrid(context.Background(), grid, "/static/cat.jpg")
	require.NoError(t, err)
	top, _ := result.Top()
	assert.Equal(t, models.Mammals().Names()[7], top.Label)
	assert.Equal(t, "/static/cat.jpg", result.Reference)

	_, err = engine.ClassifyGrid(context.Background(), &images.PixelGrid{Width: 4, Height: 4}, "")
	assert.Equal(t, KindDecode, KindOf(err))
}

func TestEngineErrors(t *testing.T) {
	failing := ClassifierFunc(func(context.Context, *tensor.Dense) ([]float32, error) {
		return nil, errors.New("session exploded")
	})
	empty := ClassifierFunc(func(context.Context, *tensor.Dense) ([]float32, error) {
		return []float32{}, nil
	})
	short := ClassifierFunc(func(context.Context, *tensor.Dense) ([]float32, error) {
		return make([]float32, 44), nil
	})
	pngData := encodePNG(t, 4, 4, gray(1))

	tests := []struct {
		name       string
		classifier Classifier
		input      images.RawInput
		kind       Kind
	}{
		{
			name:       "malformed base64",
			classifier: grayClassifier{classes: 45},
			input:      images.NewInlineDataURI("data:image/png;base64,not-base64!!"),
			kind:       KindDecode,
		},
		{
			name:       "nil input",
			classifier: grayClassifier{classes: 45},
			input:      nil,
			kind:       KindDecode,
		},
		{
			name:       "not an image",
			classifier: grayClassifier{classes: 45},
			input:      images.FileBytes{Data: []byte("hello world")},
			kind:       KindDecode,
		},
		{name: "classifier failure", classifier: failing, input: images.FileBytes{Data: pngData}, kind: KindInference},
		{name: "empty output", classifier: empty, input: images.FileBytes{Data: pngData}, kind: KindInference},
		{name: "label drift", classifier: short, input: images.FileBytes{Data: pngData}, kind: KindLabelMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewEngineBuilder().WithClassifier(tt.classifier).Build()
			require.NoError(t, err)

			result, err := engine.Classify(context.Background(), Request{Input: tt.input})
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestEngineLabelMismatchLoggedAsError(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	short := ClassifierFunc(func(context.Context, *tensor.Dense) ([]float32, error) {
		return make([]float32, 44), nil
	})

	engine, err := NewEngineBuilder().WithClassifier(short).WithLogger(zap.New(core)).Build()
	require.NoError(t, err)

	_, err = engine.Classify(context.Background(), Request{
		Input:     images.FileBytes{Data: encodePNG(t, 4, 4, gray(1))},
		Reference: "ref",
	})
	var mismatch *postprocess.LabelMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 44, mismatch.Scores)
	assert.Equal(t, 45, mismatch.Labels)

	errorLogs := logs.FilterLevelExact(zap.ErrorLevel).All()
	require.Len(t, errorLogs, 1)
	assert.Equal(t, "ref", errorLogs[0].ContextMap()["reference"])
}

func TestEngineBuildRejectsDrift(t *testing.T) {
	_, err := NewEngineBuilder().
		WithClassifier(grayClassifier{classes: 44}).
		WithLabels(models.Mammals()).
		Build()
	require.Error(t, err)

	var mismatch *postprocess.LabelMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestEngineBuilderErrors(t *testing.T) {
	_, err := NewEngineBuilder().Build()
	assert.Error(t, err)

	_, err = NewEngineBuilder().WithClassifier(nil).Build()
	assert.Error(t, err)

	_, err = NewEngineBuilder().WithClassifier(grayClassifier{classes: 45}).WithTopK(0).Build()
	assert.Error(t, err)

	cfg := DefaultPreprocessConfig()
	cfg.Filter = "sinc"
	_, err = NewEngineBuilder().WithClassifier(grayClassifier{classes: 45}).WithPreprocessing(cfg).Build()
	assert.Error(t, err)

	assert.Panics(t, func() { NewEngineBuilder().MustBuild() })
}

func TestEngineConcurrentClassify(t *testing.T) {
	profiled := NewProfiledClassifier(grayClassifier{classes: 45})
	engine, err := NewEngineBuilder().WithClassifier(profiled).Build()
	require.NoError(t, err)

	labels := models.Mammals()
	const workers = 45

	inputs := make([][]byte, workers)
	for i := range inputs {
		inputs[i] = encodePNG(t, 16+i, 32, gray(i))
	}

	var wg sync.WaitGroup
	errs := make([]error, workers)
	results := make([]*Result, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = engine.Classify(context.Background(), Request{
				Input:     images.FileBytes{Data: inputs[i]},
				Reference: fmt.Sprintf("req-%d", i),
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		want, _ := labels.Name(i)
		assert.Equal(t, want, results[i].Predictions[0].Label, "request %d", i)
		assert.Equal(t, fmt.Sprintf("req-%d", i), results[i].Reference)
	}

	metrics := profiled.Metrics()
	assert.Equal(t, int64(workers), metrics.InferenceCount)
	assert.Zero(t, metrics.FailureCount)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindInference, KindOf(errors.Wrap(NewInferenceError("run", nil), "ctx")))
	assert.Equal(t, KindLabelMismatch, KindOf(errors.WithStack(&postprocess.LabelMismatchError{Scores: 1, Labels: 2})))
	assert.Equal(t, "label_mismatch", KindLabelMismatch.String())
}

func TestProfiledClassifierMetrics(t *testing.T) {
	calls := 0
	inner := ClassifierFunc(func(context.Context, *tensor.Dense) ([]float32, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("fail")
		}
		return []float32{1}, nil
	})
	pc := NewProfiledClassifier(inner)

	for i := 0; i < 3; i++ {
		_, _ = pc.Infer(context.Background(), nil)
	}

	metrics := pc.Metrics()
	assert.Equal(t, int64(3), metrics.InferenceCount)
	assert.Equal(t, int64(1), metrics.FailureCount)
	assert.Zero(t, pc.NumClasses())
	assert.NoError(t, pc.Close())

	pc.ResetMetrics()
	assert.Zero(t, pc.Metrics().InferenceCount)
}
