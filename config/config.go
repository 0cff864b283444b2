// Package config - Layered application configuration.
//
// Values are resolved in order: built-in defaults, an optional YAML file, then environment
// variables prefixed with CLASSIFY_ (CLASSIFY_SERVER_PORT sets server.port).
package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-classify/inference/providers"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "CLASSIFY_"

// ServerConfig defines HTTP server configurations.
type ServerConfig struct {
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	MaxUploadBytes int    `koanf:"maxuploadbytes"`
	// MaxPixels caps width*height of an accepted image, checked before pixels are decoded.
	MaxPixels   int           `koanf:"maxpixels"`
	ReadTimeout time.Duration `koanf:"readtimeout"`
	Debug       bool          `koanf:"debug"`
}

// ModelConfig selects and tunes the classifier.
type ModelConfig struct {
	// Backend is onnx or linear.
	Backend string `koanf:"backend"`
	// Path is the .onnx model or the linear head weights file.
	Path       string `koanf:"path"`
	InputName  string `koanf:"inputname"`
	OutputName string `koanf:"outputname"`
	// SharedLibrary overrides the onnxruntime library location.
	SharedLibrary     string `koanf:"sharedlibrary"`
	Provider          string `koanf:"provider"`
	Threads           int    `koanf:"threads"`
	InterOpThreads    int    `koanf:"interopthreads"`
	GraphOptimization string `koanf:"graphoptimization"`
	InputSize         int    `koanf:"inputsize"`
	// ChannelOrder is hwc, chw or auto (read from the model input).
	ChannelOrder string `koanf:"channelorder"`
	Filter       string `koanf:"filter"`
	TopK         int    `koanf:"topk"`

	// Execution provider options, applied only when Provider selects them.
	CUDA     providers.CUDAOptions     `koanf:"cuda"`
	CoreML   providers.CoreMLOptions   `koanf:"coreml"`
	OpenVINO providers.OpenVINOOptions `koanf:"openvino"`
}

// LabelsConfig locates the label set. An empty file selects the built-in mammal labels.
type LabelsConfig struct {
	File string `koanf:"file"`
}

// MinioConfig defines the object storage connection.
type MinioConfig struct {
	Endpoint  string        `koanf:"endpoint"`
	AccessKey string        `koanf:"accesskey"`
	SecretKey string        `koanf:"secretkey"`
	Bucket    string        `koanf:"bucket"`
	Secure    bool          `koanf:"secure"`
	URLExpiry time.Duration `koanf:"urlexpiry"`
}

// StorageConfig defines where accepted images are kept.
type StorageConfig struct {
	// Backend is local or minio.
	Backend string      `koanf:"backend"`
	Dir     string      `koanf:"dir"`
	Minio   MinioConfig `koanf:"minio"`
}

// LogConfig defines the optional rotating log file.
type LogConfig struct {
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"maxsizemb"`
	MaxBackups int    `koanf:"maxbackups"`
	MaxAgeDays int    `koanf:"maxagedays"`
	Compress   bool   `koanf:"compress"`
}

// AppConfig is the complete application configuration.
type AppConfig struct {
	Server  ServerConfig  `koanf:"server"`
	Model   ModelConfig   `koanf:"model"`
	Labels  LabelsConfig  `koanf:"labels"`
	Storage StorageConfig `koanf:"storage"`
	Log     LogConfig     `koanf:"log"`
}

// Defaults returns the built-in configuration values keyed by path.
func Defaults() map[string]any {
	return map[string]any{
		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.maxuploadbytes":   10 << 20,
		"server.maxpixels":        25_000_000,
		"server.readtimeout":      "30s",
		"server.debug":            false,
		"model.backend":           "onnx",
		"model.path":              "models/mammals.onnx",
		"model.provider":          "cpu",
		"model.graphoptimization": "extended",
		"model.inputsize":         224,
		"model.channelorder":      "auto",
		"model.filter":            "bilinear",
		"model.topk":              3,
		"storage.backend":         "local",
		"storage.dir":             "static",
		"storage.minio.bucket":    "classify",
		"storage.minio.urlexpiry": "24h",
		"log.maxsizemb":           100,
		"log.maxbackups":          3,
		"log.maxagedays":          28,
	}
}

// Load resolves the configuration from defaults, the YAML file at filePath and the
// environment, then validates it.
//
// Arguments:
//   - filePath: Path to a YAML file. Empty skips the file layer.
//
// Returns:
//   - *AppConfig: The resolved configuration.
//   - error: An error if a layer fails to load or validation fails.
func Load(filePath string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	if filePath != "" {
		if err := k.Load(file.Provider(filePath), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", filePath)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
		return key, v
	}), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load environment")
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return errors.Wrap(godotenv.Load(existing...), "error loading .env file")
}

// DefaultConfigPath is the configuration file read when no -file flag is given.
const DefaultConfigPath = "config/config.yaml"

// ParseConfigFlag allows clients to specify the path to the file from which the
// configuration will be loaded.
func ParseConfigFlag(args []string) (string, error) {
	fs := flag.NewFlagSet("classify", flag.ContinueOnError)
	configPath := fs.String("file", DefaultConfigPath, "configuration file")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	return ResolvePath(*configPath), nil
}

// ResolvePath maps a missing default configuration file to no file, so the service starts
// from defaults and environment alone. Explicit paths are returned unchanged.
func ResolvePath(path string) string {
	if path == DefaultConfigPath {
		if _, err := os.Stat(path); err != nil {
			return ""
		}
	}
	return path
}
