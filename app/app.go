// Package app - Assembles the engine and storage from the application configuration.
package app

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-classify/config"
	"github.com/nvr-ai/go-classify/images"
	"github.com/nvr-ai/go-classify/inference"
	"github.com/nvr-ai/go-classify/models"
	"github.com/nvr-ai/go-classify/models/linear"
	"github.com/nvr-ai/go-classify/onnx"
	"github.com/nvr-ai/go-classify/server"
	"github.com/nvr-ai/go-classify/storage"
)

// Components is a fully loaded classification stack.
type Components struct {
	Engine     inference.Engine
	Classifier *inference.ProfiledClassifier
}

// Close releases the classifier.
func (c *Components) Close() error {
	if c == nil || c.Engine == nil {
		return nil
	}
	return c.Engine.Close()
}

// loadedClassifier is a classifier plus what it reports about its own input.
type loadedClassifier struct {
	classifier inference.Classifier
	labels     []string
	order      inference.ChannelOrder
	width      int
	height     int
}

// NewEngine loads the label set and the configured backend and builds the engine.
//
// Arguments:
//   - cfg: The application configuration.
//   - logger: The logger.
//
// Returns:
//   - *Components: The engine and its profiled classifier.
//   - error: An error if the labels, the model or the engine cannot be loaded.
func NewEngine(cfg *config.AppConfig, logger *zap.Logger) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loaded, err := loadClassifier(cfg.Model, logger)
	if err != nil {
		return nil, err
	}

	labels, err := loadLabels(cfg.Labels, loaded.labels)
	if err != nil {
		closeClassifier(loaded.classifier)
		return nil, err
	}

	pre := cfg.Model.PreprocessConfig(loaded.order)
	if loaded.width > 0 && loaded.height > 0 && (loaded.width != pre.InputWidth || loaded.height != pre.InputHeight) {
		logger.Warn("model declares a fixed input size, overriding configuration",
			zap.Int("configured", cfg.Model.InputSize),
			zap.Int("width", loaded.width),
			zap.Int("height", loaded.height),
		)
		pre.InputWidth, pre.InputHeight = loaded.width, loaded.height
	}

	profiled := inference.NewProfiledClassifier(loaded.classifier)
	engine, err := inference.NewEngineBuilder().
		WithClassifier(profiled).
		WithLabels(labels).
		WithDecoder(images.NewDecoder(cfg.Server.MaxUploadBytes).WithMaxPixels(cfg.Server.MaxPixels)).
		WithPreprocessing(pre).
		WithTopK(cfg.Model.TopK).
		WithLogger(logger).
		Build()
	if err != nil {
		closeClassifier(loaded.classifier)
		return nil, errors.Wrap(err, "failed to build engine")
	}

	logger.Info("engine ready",
		zap.String("backend", cfg.Model.Backend),
		zap.Int("labels", labels.Len()),
		zap.Stringer("channel_order", pre.ChannelOrder),
		zap.Int("input_width", pre.InputWidth),
		zap.Int("input_height", pre.InputHeight),
		zap.Int("top_k", cfg.Model.TopK),
	)
	return &Components{Engine: engine, Classifier: profiled}, nil
}

func loadClassifier(m config.ModelConfig, logger *zap.Logger) (*loadedClassifier, error) {
	switch models.Backend(m.Backend) {
	case models.BackendONNX:
		c, err := onnx.NewClassifier(onnx.Config{
			ModelPath:     m.Path,
			InputName:     m.InputName,
			OutputName:    m.OutputName,
			SharedLibrary: m.SharedLibrary,
			Session:       m.SessionConfig(),
		}, logger)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load onnx classifier")
		}
		order, ok := c.InputOrder()
		if !ok {
			order = inference.ChannelOrderHWC
		}
		w, h := c.InputSize()
		return &loadedClassifier{classifier: c, order: order, width: w, height: h}, nil

	case models.BackendLinear:
		c, err := linear.Load(m.Path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load linear classifier")
		}
		return &loadedClassifier{classifier: c, labels: c.Labels(), order: inference.ChannelOrderHWC}, nil

	default:
		return nil, errors.Errorf("unknown backend %q", m.Backend)
	}
}

// loadLabels prefers the configured file, then labels shipped with the weights, then the
// built-in mammal set.
func loadLabels(cfg config.LabelsConfig, bundled []string) (models.LabelSet, error) {
	if cfg.File != "" {
		return models.LoadLabelSet(cfg.File)
	}
	if len(bundled) > 0 {
		set, err := models.NewLabelSet(bundled...)
		return set, errors.Wrap(err, "invalid labels in weights file")
	}
	return models.Mammals(), nil
}

func closeClassifier(c inference.Classifier) {
	if closer, ok := c.(inference.Closer); ok {
		_ = closer.Close()
	}
}

// NewStore creates the configured image store.
func NewStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Store, error) {
	switch cfg.Backend {
	case config.StorageLocal:
		return storage.NewLocal(cfg.Dir, server.StaticPrefix, logger)
	case config.StorageMinio:
		return storage.NewMinioClientAndInitBucket(ctx, cfg.Minio, logger)
	default:
		return nil, errors.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
