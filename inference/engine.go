// Package inference - Classification engine and the classifier contract.
package inference

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-classify/images"
	"github.com/nvr-ai/go-classify/models"
	"github.com/nvr-ai/go-classify/models/postprocess"
)

const tracerName = "github.com/nvr-ai/go-classify/inference"

// Request is a single image to classify.
type Request struct {
	// Input is the raw image as received by the presentation layer.
	Input images.RawInput
	// Reference is an opaque token, such as the URL of a stored copy, echoed in the result.
	Reference string
}

// Result is the ranked outcome of a successful request.
type Result struct {
	// Predictions holds at most k entries in descending confidence order.
	Predictions []postprocess.Prediction `json:"predictions"`
	// Reference is the token supplied with the request.
	Reference string `json:"reference,omitempty"`
}

// Top returns the best prediction. Results always carry at least one prediction when k > 0.
func (r *Result) Top() (postprocess.Prediction, bool) {
	if r == nil || len(r.Predictions) == 0 {
		return postprocess.Prediction{}, false
	}
	return r.Predictions[0], true
}

// Engine defines the interface for image classification engines.
type Engine interface {
	// Classify runs decode, preprocess, inference and ranking for one request. Any failure
	// short-circuits and no partial result is returned.
	Classify(ctx context.Context, req Request) (*Result, error)
	// Decode runs only the decode stage, for callers that need the pixels before ranking,
	// such as to store an accepted image.
	Decode(in images.RawInput) (*images.PixelGrid, images.ImageFormat, error)
	// ClassifyGrid runs preprocess, inference and ranking on an already decoded image.
	ClassifyGrid(ctx context.Context, grid *images.PixelGrid, reference string) (*Result, error)
	// Labels returns the label set the engine ranks against.
	Labels() models.LabelSet
	// Close releases the classifier.
	Close() error
}

// EngineBuilder assembles an Engine with a fluent API.
type EngineBuilder struct {
	classifier Classifier
	labels     models.LabelSet
	decoder    *images.Decoder
	preprocess PreprocessConfig
	topK       int
	logger     *zap.Logger
	tracer     trace.Tracer
	err        error
}

// NewEngineBuilder creates a new engine builder with the default decoder, the 224x224
// preprocessing configuration, the mammal label set and top-3 ranking.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func NewEngineBuilder() *EngineBuilder {
	return &EngineBuilder{
		labels:     models.Mammals(),
		decoder:    images.NewDecoder(images.DefaultMaxBytes),
		preprocess: DefaultPreprocessConfig(),
		topK:       postprocess.DefaultTopK,
		logger:     zap.NewNop(),
	}
}

// WithClassifier sets the classifier for the engine.
//
// Arguments:
//   - classifier: A loaded classifier shared by every request.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithClassifier(classifier Classifier) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if classifier == nil {
		b.err = errors.New("classifier is nil")
		return b
	}
	b.classifier = classifier
	return b
}

// WithLabels sets the label set. Index i of the set names classifier output i.
//
// Arguments:
//   - labels: The label set.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithLabels(labels models.LabelSet) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if labels.Len() == 0 {
		b.err = errors.New("label set is empty")
		return b
	}
	b.labels = labels
	return b
}

// WithDecoder sets the image decoder.
func (b *EngineBuilder) WithDecoder(decoder *images.Decoder) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if decoder != nil {
		b.decoder = decoder
	}
	return b
}

// WithPreprocessing sets the preprocessing configuration.
//
// Arguments:
//   - cfg: The preprocessing configuration.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithPreprocessing(cfg PreprocessConfig) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if err := cfg.Validate(); err != nil {
		b.err = errors.Wrap(err, "invalid preprocessing configuration")
		return b
	}
	b.preprocess = cfg
	return b
}

// WithTopK sets the number of predictions per result.
func (b *EngineBuilder) WithTopK(k int) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if k <= 0 {
		b.err = errors.Errorf("top k must be positive, got %d", k)
		return b
	}
	b.topK = k
	return b
}

// WithLogger sets the logger. Request details are logged at debug, failures at warn and
// label drift at error.
func (b *EngineBuilder) WithLogger(logger *zap.Logger) *EngineBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithTracer sets the tracer used for per-request spans. The global provider is used otherwise.
func (b *EngineBuilder) WithTracer(tracer trace.Tracer) *EngineBuilder {
	if tracer != nil {
		b.tracer = tracer
	}
	return b
}

// HasError checks if the engine builder has errors.
//
// Returns:
//   - bool: True if there are errors, false otherwise.
func (b *EngineBuilder) HasError() bool {
	return b.err != nil
}

// MustBuild builds the engine and panics if there is an error.
//
// Returns:
//   - Engine: The engine.
func (b *EngineBuilder) MustBuild() Engine {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}

// Build builds the engine.
//
// A classifier that reports its class count is checked against the label set here, so a
// drifted configuration fails at startup instead of on every request.
//
// Returns:
//   - Engine: The engine.
//   - error: The error if any.
func (b *EngineBuilder) Build() (Engine, error) {
	if b.HasError() {
		return nil, b.err
	}
	if b.classifier == nil {
		return nil, errors.New("classifier not configured")
	}

	if counter, ok := b.classifier.(ClassCounter); ok {
		if n := counter.NumClasses(); n > 0 && n != b.labels.Len() {
			return nil, errors.WithStack(&postprocess.LabelMismatchError{Scores: n, Labels: b.labels.Len()})
		}
	}

	preprocessor, err := NewPreprocessor(b.preprocess)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create preprocessor")
	}

	tracer := b.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &engine{
		classifier:   b.classifier,
		labels:       b.labels,
		decoder:      b.decoder,
		preprocessor: preprocessor,
		topK:         b.topK,
		logger:       b.logger,
		tracer:       tracer,
	}, nil
}

// engine implements the Engine interface. Every field is read-only after Build.
type engine struct {
	classifier   Classifier
	labels       models.LabelSet
	decoder      *images.Decoder
	preprocessor *Preprocessor
	topK         int
	logger       *zap.Logger
	tracer       trace.Tracer
}

// Classify classifies one image.
//
// Arguments:
//   - ctx: The context for the request, passed to the classifier.
//   - req: The image and its reference.
//
// Returns:
//   - *Result: The ranked predictions.
//   - error: An *images.DecodeError, *InferenceError or *postprocess.LabelMismatchError.
func (e *engine) Classify(ctx context.Context, req Request) (*Result, error) {
	return e.traced(ctx, "inference.Classify", req.Reference, func(ctx context.Context, log *zap.Logger) (*Result, error) {
		grid, format, err := e.decoder.Decode(req.Input)
		if err != nil {
			return nil, err
		}
		log.Debug("decoded image",
			zap.String("format", string(format)),
			zap.Int("width", grid.Width),
			zap.Int("height", grid.Height),
		)
		return e.rank(ctx, grid, req.Reference, log)
	})
}

// Decode decodes the input with the engine's decoder.
func (e *engine) Decode(in images.RawInput) (*images.PixelGrid, images.ImageFormat, error) {
	return e.decoder.Decode(in)
}

// ClassifyGrid classifies an image decoded by Decode.
//
// Arguments:
//   - ctx: The context for the request, passed to the classifier.
//   - grid: The decoded image.
//   - reference: An opaque token echoed in the result.
//
// Returns:
//   - *Result: The ranked predictions.
//   - error: An *images.DecodeError for a malformed grid, otherwise as Classify.
func (e *engine) ClassifyGrid(ctx context.Context, grid *images.PixelGrid, reference string) (*Result, error) {
	return e.traced(ctx, "inference.ClassifyGrid", reference, func(ctx context.Context, log *zap.Logger) (*Result, error) {
		return e.rank(ctx, grid, reference, log)
	})
}

// traced runs fn inside a span and logs its failure by kind.
func (e *engine) traced(
	ctx context.Context,
	name, reference string,
	fn func(ctx context.Context, log *zap.Logger) (*Result, error),
) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, name)
	defer span.End()
	span.SetAttributes(attribute.String("classify.reference", reference))

	log := e.logger.With(zap.String("reference", reference))

	result, err := fn(ctx, log)
	if err != nil {
		kind := KindOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind.String())

		if kind == KindLabelMismatch {
			log.Error("classifier output does not match the label set", zap.Error(err))
		} else {
			log.Warn("classification failed", zap.Stringer("kind", kind), zap.Error(err))
		}
		return nil, err
	}

	if top, ok := result.Top(); ok {
		span.SetAttributes(
			attribute.String("classify.label", top.Label),
			attribute.Float64("classify.confidence", float64(top.Confidence)),
		)
	}
	return result, nil
}

func (e *engine) rank(ctx context.Context, grid *images.PixelGrid, reference string, log *zap.Logger) (*Result, error) {
	t, err := e.preprocessor.Preprocess(grid)
	if err != nil {
		return nil, err
	}

	probs, err := e.classifier.Infer(ctx, t.Batch())
	if err != nil {
		var inferErr *InferenceError
		if errors.As(err, &inferErr) {
			return nil, err
		}
		return nil, NewInferenceError("infer", err)
	}
	if len(probs) == 0 {
		return nil, NewInferenceError("infer", errors.New("classifier returned no scores"))
	}

	predictions, err := postprocess.TopK(probs, e.labels, e.topK)
	if err != nil {
		return nil, err
	}

	if len(predictions) > 0 {
		log.Debug("classified image",
			zap.String("label", predictions[0].Label),
			zap.Float32("confidence", predictions[0].Confidence),
		)
	}

	return &Result{Predictions: predictions, Reference: reference}, nil
}

// Labels returns the label set.
func (e *engine) Labels() models.LabelSet {
	return e.labels
}

// Close releases the classifier if it holds resources.
func (e *engine) Close() error {
	if closer, ok := e.classifier.(Closer); ok {
		return closer.Close()
	}
	return nil
}
