package config

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-classify/inference"
	"github.com/nvr-ai/go-classify/inference/providers"
	"github.com/nvr-ai/go-classify/models"
)

// Storage backends.
const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// ChannelOrderAuto reads the channel order from the model input.
const ChannelOrderAuto = "auto"

// Validate is for custom validation rules for the configuration.
func Validate(cfg *AppConfig) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", cfg.Server.Port)
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.maxuploadbytes must be positive, got %d", cfg.Server.MaxUploadBytes)
	}
	if cfg.Server.MaxPixels <= 0 {
		return fmt.Errorf("server.maxpixels must be positive, got %d", cfg.Server.MaxPixels)
	}

	if err := validateModel(cfg.Model); err != nil {
		return errors.Wrap(err, "invalid model config")
	}

	switch cfg.Storage.Backend {
	case StorageLocal:
		if cfg.Storage.Dir == "" {
			return errors.New("storage.dir is required for the local backend")
		}
	case StorageMinio:
		if cfg.Storage.Minio.Endpoint == "" || cfg.Storage.Minio.Bucket == "" {
			return errors.New("storage.minio.endpoint and storage.minio.bucket are required for the minio backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", cfg.Storage.Backend)
	}

	return nil
}

func validateModel(m ModelConfig) error {
	if !models.Backend(m.Backend).Valid() {
		return fmt.Errorf("unknown backend %q", m.Backend)
	}
	if m.Path == "" {
		return errors.New("path is required")
	}
	if m.InputSize <= 0 {
		return fmt.Errorf("inputsize must be positive, got %d", m.InputSize)
	}
	if m.TopK <= 0 {
		return fmt.Errorf("topk must be positive, got %d", m.TopK)
	}
	if m.Threads < 0 || m.InterOpThreads < 0 {
		return fmt.Errorf("thread counts must not be negative, got %d and %d", m.Threads, m.InterOpThreads)
	}
	if _, err := providers.ParseProvider(m.Provider); err != nil {
		return err
	}
	if _, err := providers.GraphOptimization(m.GraphOptimization).Level(); err != nil {
		return err
	}
	if _, err := inference.Filter(m.Filter).Interpolation(); err != nil {
		return err
	}
	if m.ChannelOrder != ChannelOrderAuto {
		if _, err := inference.ParseChannelOrder(m.ChannelOrder); err != nil {
			return err
		}
	}
	return nil
}

// SessionConfig returns the onnxruntime session configuration for the model.
func (m ModelConfig) SessionConfig() providers.Config {
	provider, _ := providers.ParseProvider(m.Provider)
	return providers.Config{
		Provider:          provider,
		IntraOpNumThreads: m.Threads,
		InterOpNumThreads: m.InterOpThreads,
		GraphOptimization: providers.GraphOptimization(m.GraphOptimization),
		CUDA:              m.CUDA,
		CoreML:            m.CoreML,
		OpenVINO:          m.OpenVINO,
	}
}

// PreprocessConfig returns the preprocessing configuration for the model. A channel order of
// auto falls back to fallback, usually the order read from the model.
func (m ModelConfig) PreprocessConfig(fallback inference.ChannelOrder) inference.PreprocessConfig {
	cfg := inference.DefaultPreprocessConfig()
	cfg.InputWidth = m.InputSize
	cfg.InputHeight = m.InputSize
	cfg.Filter = inference.Filter(m.Filter)
	cfg.ChannelOrder = fallback
	if m.ChannelOrder != ChannelOrderAuto {
		if order, err := inference.ParseChannelOrder(m.ChannelOrder); err == nil {
			cfg.ChannelOrder = order
		}
	}
	return cfg
}
