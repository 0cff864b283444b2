package providers

import "strconv"

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	// Overrides the accelerator hardware type (CPU, GPU, NPU) at runtime.
	DeviceType string `json:"device_type"            yaml:"device_type" koanf:"devicetype"`
	// Inference precision: FP32, FP16 or ACCURACY.
	Precision string `json:"precision"              yaml:"precision" koanf:"precision"`
	// Overrides the accelerator default number of threads. 0 keeps the default.
	NumOfThreads int `json:"num_of_threads"         yaml:"num_of_threads" koanf:"numofthreads"`
	// Overrides the accelerator default streams. 0 keeps the default.
	NumStreams int `json:"num_streams"            yaml:"num_streams" koanf:"numstreams"`
	// Rewrite dynamic shaped models to static shape at runtime.
	DisableDynamicShapes bool `json:"disable_dynamic_shapes" yaml:"disable_dynamic_shapes" koanf:"disabledynamicshapes"`
	// Directory for compiled model blobs.
	CacheDir string `json:"cache_dir"              yaml:"cache_dir" koanf:"cachedir"`
}

// ProviderOptions returns the options as the key/value pairs ONNX Runtime expects.
func (o OpenVINOOptions) ProviderOptions() map[string]string {
	opts := map[string]string{}
	if o.DeviceType != "" {
		opts["device_type"] = o.DeviceType
	}
	if o.Precision != "" {
		opts["precision"] = o.Precision
	}
	if o.NumOfThreads > 0 {
		opts["num_of_threads"] = strconv.Itoa(o.NumOfThreads)
	}
	if o.NumStreams > 0 {
		opts["num_streams"] = strconv.Itoa(o.NumStreams)
	}
	if o.DisableDynamicShapes {
		opts["disable_dynamic_shapes"] = "true"
	}
	if o.CacheDir != "" {
		opts["cache_dir"] = o.CacheDir
	}
	return opts
}
