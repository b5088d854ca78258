package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

const (
	BackendONNX   = "onnx"
	BackendClaude = "claude"
)

var (
	ErrMissingToken   = errors.New("DISCORD_TOKEN is required")
	ErrMissingModel   = errors.New("model file not found")
	ErrMissingAPIKey  = errors.New("CLAUDE_API_KEY is required for the claude backend")
	ErrUnknownBackend = errors.New("unknown detector backend")
	ErrInvalidValue   = errors.New("invalid configuration value")
)

type Config struct {
	DiscordToken        string
	BragChannel         string
	CommandPrefix       string
	DetectorBackend     string
	ModelPath           string
	LabelsPath          string
	ONNXRuntimeLib      string
	ModelInputSize      int
	ConfidenceThreshold float32
	IoUThreshold        float32
	DetectorWorkers     int
	ClaudeAPIKey        string
	ClaudeModel         string
	VocabularyPath      string
	ScratchDir          string
	MetricsAddr         string
	LogLevel            string
	LogFile             string
}

// Load reads the configuration from the environment. It fails only when a
// numeric variable does not parse; use Validate for everything else.
func Load() (*Config, error) {
	cfg := &Config{
		DiscordToken:    getEnv("DISCORD_TOKEN", ""),
		BragChannel:     getEnv("BRAG_CHANNEL", "loot-brags"),
		CommandPrefix:   getEnv("COMMAND_PREFIX", "!"),
		DetectorBackend: getEnv("DETECTOR_BACKEND", BackendONNX),
		ModelPath:       getEnv("MODEL_PATH", "best.onnx"),
		LabelsPath:      getEnv("LABELS_PATH", "labels.yaml"),
		ONNXRuntimeLib:  getEnv("ONNXRUNTIME_LIB", ""),
		ClaudeAPIKey:    getEnv("CLAUDE_API_KEY", ""),
		ClaudeModel:     getEnv("CLAUDE_MODEL", "claude-sonnet-4-5"),
		VocabularyPath:  getEnv("VOCABULARY_PATH", ""),
		ScratchDir:      getEnv("SCRATCH_DIR", "temp"),
		MetricsAddr:     getEnv("METRICS_ADDR", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFile:         getEnv("LOG_FILE", ""),
	}

	var err error
	if cfg.ModelInputSize, err = getEnvInt("MODEL_INPUT_SIZE", 640); err != nil {
		return nil, err
	}
	if cfg.DetectorWorkers, err = getEnvInt("DETECTOR_WORKERS", 0); err != nil {
		return nil, err
	}
	if cfg.ConfidenceThreshold, err = getEnvFloat("CONFIDENCE_THRESHOLD", 0.25); err != nil {
		return nil, err
	}
	if cfg.IoUThreshold, err = getEnvFloat("IOU_THRESHOLD", 0.7); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration can start the bot.
func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return ErrMissingToken
	}
	if c.CommandPrefix == "" {
		return fmt.Errorf("%w: COMMAND_PREFIX must not be empty", ErrInvalidValue)
	}
	if c.DetectorWorkers < 0 {
		return fmt.Errorf("%w: DETECTOR_WORKERS must not be negative", ErrInvalidValue)
	}

	switch c.DetectorBackend {
	case BackendONNX:
		if _, err := os.Stat(c.ModelPath); err != nil {
			return fmt.Errorf("%w: %s", ErrMissingModel, c.ModelPath)
		}
		if c.ModelInputSize <= 0 || c.ModelInputSize%32 != 0 {
			return fmt.Errorf("%w: MODEL_INPUT_SIZE must be a positive multiple of 32", ErrInvalidValue)
		}
		if !inUnitRange(c.ConfidenceThreshold) || !inUnitRange(c.IoUThreshold) {
			return fmt.Errorf("%w: thresholds must be in (0, 1]", ErrInvalidValue)
		}
	case BackendClaude:
		if c.ClaudeAPIKey == "" {
			return ErrMissingAPIKey
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.DetectorBackend)
	}
	return nil
}

// Workers is the detector pool size. A local model is memory hungry, a
// remote API is mostly waiting.
func (c *Config) Workers() int {
	if c.DetectorWorkers > 0 {
		return c.DetectorWorkers
	}
	if c.DetectorBackend == BackendClaude {
		return 4
	}
	return 1
}

func inUnitRange(v float32) bool {
	return v > 0 && v <= 1
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val, exists := os.LookupEnv(key)
	if !exists || val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, val)
	}
	return n, nil
}

func getEnvFloat(key string, defaultVal float32) (float32, error) {
	val, exists := os.LookupEnv(key)
	if !exists || val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, val)
	}
	return float32(f), nil
}
