package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    Provider
		wantErr bool
	}{
		{in: "", want: CPUExecutionProvider},
		{in: "cpu", want: CPUExecutionProvider},
		{in: "CUDA", want: CUDAExecutionProvider},
		{in: "coreml", want: CoreMLExecutionProvider},
		{in: "openvino", want: OpenVINOExecutionProvider},
		{in: "tensorrt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProvider(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.IntraOpNumThreads = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.GraphOptimization = "aggressive"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Provider = "tpu"
	assert.Error(t, cfg.Validate())
}

func TestCoreMLFlags(t *testing.T) {
	assert.Zero(t, CoreMLOptions{}.Flags())
	assert.Equal(t, uint32(0x001), CoreMLOptions{CPUOnly: true}.Flags())
	assert.Equal(t, uint32(0x00e), CoreMLOptions{
		EnableOnSubgraph:         true,
		RequireANE:               true,
		RequireStaticInputShapes: true,
	}.Flags())
}

func TestOpenVINOProviderOptions(t *testing.T) {
	assert.Empty(t, OpenVINOOptions{}.ProviderOptions())

	opts := OpenVINOOptions{DeviceType: "GPU", Precision: "FP16", NumOfThreads: 4}.ProviderOptions()
	assert.Equal(t, map[string]string{
		"device_type":    "GPU",
		"precision":      "FP16",
		"num_of_threads": "4",
	}, opts)
}

func TestCUDAProviderOptions(t *testing.T) {
	opts := CUDAOptions{DeviceID: 1, GPUMemLimit: 1 << 30, UseTF32: true}.ProviderOptions()
	assert.Equal(t, "1", opts["device_id"])
	assert.Equal(t, "1073741824", opts["gpu_mem_limit"])
	assert.Equal(t, "1", opts["use_tf32"])
	assert.Equal(t, "0", opts["do_copy_in_default_stream"])
	assert.NotContains(t, opts, "arena_extend_strategy")
}

func TestSharedLibPath(t *testing.T) {
	assert.Equal(t, "/opt/ort.so", SharedLibPath("/opt/ort.so"))

	t.Setenv(SharedLibEnv, "/env/ort.so")
	assert.Equal(t, "/env/ort.so", SharedLibPath(""))

	assert.Equal(t, "./third_party/onnxruntime_arm64.so", defaultSharedLibPath("linux", "arm64"))
	assert.Equal(t, "./third_party/onnxruntime.so", defaultSharedLibPath("linux", "amd64"))
	assert.Equal(t, "./third_party/libonnxruntime.dylib", defaultSharedLibPath("darwin", "arm64"))
	assert.Equal(t, "./third_party/onnxruntime.dll", defaultSharedLibPath("windows", "amd64"))
}
