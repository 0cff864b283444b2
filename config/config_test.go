package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-classify/inference"
	"github.com/nvr-ai/go-classify/inference/providers"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10<<20, cfg.Server.MaxUploadBytes)
	assert.Equal(t, 25_000_000, cfg.Server.MaxPixels)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "onnx", cfg.Model.Backend)
	assert.Equal(t, 224, cfg.Model.InputSize)
	assert.Equal(t, 3, cfg.Model.TopK)
	assert.Equal(t, "bilinear", cfg.Model.Filter)
	assert.Equal(t, StorageLocal, cfg.Storage.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Storage.Minio.URLExpiry)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  port: 9000
  debug: true
model:
  backend: linear
  path: weights/head.yaml
  filter: lanczos3
  provider: cuda
  interopthreads: 2
  cuda:
    deviceid: 1
    gpumemlimit: 2147483648
    usetf32: true
  openvino:
    devicetype: GPU
storage:
  backend: minio
  minio:
    endpoint: localhost:9000
    bucket: uploads
`)
	t.Setenv("CLASSIFY_SERVER_PORT", "9100")
	t.Setenv("CLASSIFY_MODEL_TOPK", "5")
	t.Setenv("CLASSIFY_STORAGE_MINIO_ACCESSKEY", "minioadmin")
	t.Setenv("CLASSIFY_SERVER_MAXPIXELS", "1000000")
	t.Setenv("CLASSIFY_MODEL_OPENVINO_NUMSTREAMS", "4")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "environment wins over the file")
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "linear", cfg.Model.Backend)
	assert.Equal(t, "lanczos3", cfg.Model.Filter)
	assert.Equal(t, 5, cfg.Model.TopK)
	assert.Equal(t, StorageMinio, cfg.Storage.Backend)
	assert.Equal(t, "localhost:9000", cfg.Storage.Minio.Endpoint)
	assert.Equal(t, "minioadmin", cfg.Storage.Minio.AccessKey)
	assert.Equal(t, 1_000_000, cfg.Server.MaxPixels)

	session := cfg.Model.SessionConfig()
	assert.Equal(t, providers.CUDAExecutionProvider, session.Provider)
	assert.Equal(t, 2, session.InterOpNumThreads)
	assert.Equal(t, 1, session.CUDA.DeviceID)
	assert.Equal(t, int64(2<<30), session.CUDA.GPUMemLimit)
	assert.True(t, session.CUDA.UseTF32)
	assert.Equal(t, "GPU", session.OpenVINO.DeviceType)
	assert.Equal(t, 4, session.OpenVINO.NumStreams)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{name: "port", mutate: func(c *AppConfig) { c.Server.Port = 0 }},
		{name: "upload limit", mutate: func(c *AppConfig) { c.Server.MaxUploadBytes = -1 }},
		{name: "pixel limit", mutate: func(c *AppConfig) { c.Server.MaxPixels = 0 }},
		{name: "inter-op threads", mutate: func(c *AppConfig) { c.Model.InterOpThreads = -1 }},
		{name: "backend", mutate: func(c *AppConfig) { c.Model.Backend = "tflite" }},
		{name: "model path", mutate: func(c *AppConfig) { c.Model.Path = "" }},
		{name: "input size", mutate: func(c *AppConfig) { c.Model.InputSize = 0 }},
		{name: "topk", mutate: func(c *AppConfig) { c.Model.TopK = 0 }},
		{name: "provider", mutate: func(c *AppConfig) { c.Model.Provider = "tpu" }},
		{name: "filter", mutate: func(c *AppConfig) { c.Model.Filter = "sinc" }},
		{name: "channel order", mutate: func(c *AppConfig) { c.Model.ChannelOrder = "nhwc" }},
		{name: "storage backend", mutate: func(c *AppConfig) { c.Storage.Backend = "s3" }},
		{name: "local dir", mutate: func(c *AppConfig) { c.Storage.Dir = "" }},
		{
			name: "minio endpoint",
			mutate: func(c *AppConfig) {
				c.Storage.Backend = StorageMinio
				c.Storage.Minio.Endpoint = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}

	assert.Error(t, Validate(nil))
}

func TestModelConfigConversions(t *testing.T) {
	m := ModelConfig{
		Provider:          "coreml",
		Threads:           2,
		InterOpThreads:    1,
		GraphOptimization: "all",
		InputSize:         160,
		ChannelOrder:      ChannelOrderAuto,
		Filter:            "nearest",
		CoreML:            providers.CoreMLOptions{CPUOnly: true},
	}

	session := m.SessionConfig()
	assert.Equal(t, providers.CoreMLExecutionProvider, session.Provider)
	assert.Equal(t, 2, session.IntraOpNumThreads)
	assert.Equal(t, 1, session.InterOpNumThreads)
	assert.True(t, session.CoreML.CPUOnly)
	assert.Equal(t, providers.GraphOptimizationAll, session.GraphOptimization)

	pre := m.PreprocessConfig(inference.ChannelOrderCHW)
	assert.Equal(t, 160, pre.InputWidth)
	assert.Equal(t, 160, pre.InputHeight)
	assert.Equal(t, inference.FilterNearest, pre.Filter)
	assert.Equal(t, inference.ChannelOrderCHW, pre.ChannelOrder)

	m.ChannelOrder = "hwc"
	assert.Equal(t, inference.ChannelOrderHWC, m.PreprocessConfig(inference.ChannelOrderCHW).ChannelOrder)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "CLASSIFY_TEST_DOTENV=from-file\n")
	t.Setenv("CLASSIFY_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("CLASSIFY_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("CLASSIFY_TEST_DOTENV"))

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestParseConfigFlag(t *testing.T) {
	path, err := ParseConfigFlag([]string{"-file", "custom.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "custom.yaml", path)

	assert.Equal(t, "", ResolvePath(DefaultConfigPath))

	_, err = ParseConfigFlag([]string{"-unknown"})
	assert.Error(t, err)
}
