// Package cfg loads service configuration for training and serving.
// Configuration comes from an optional YAML file overlaid onto built-in
// defaults, with environment variables taking precedence over both.
// Loading never fails: a missing or unparsable file simply yields the
// default configuration.
package cfg

import (
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// FeatureCount is the number of input columns the model is trained on.
// The dataset provider, trainer and predictor must all agree on it.
const FeatureCount = 10

type ModelConfig struct {
	NEstimators int   `yaml:"n_estimators"`
	MaxDepth    int   `yaml:"max_depth"`
	RandomState int64 `yaml:"random_state"`
}

type TrainingConfig struct {
	TestSize    float64 `yaml:"test_size"`
	RandomState int64   `yaml:"random_state"`
}

type ServerConfig struct {
	Port        int `yaml:"port"`
	MetricsPort int `yaml:"metrics_port"`
}

type SystemConfig struct {
	ModelPath string `yaml:"model_path"`
	DataPath  string `yaml:"data_path"`
}

type Config struct {
	Model        ModelConfig        `yaml:"model"`
	Training     TrainingConfig     `yaml:"training"`
	QualityGates map[string]float64 `yaml:"quality_gates"`
	Server       ServerConfig       `yaml:"server"`
	System       SystemConfig       `yaml:"system"`
}

// Default returns the built-in fallback configuration used whenever the
// config file is absent or unreadable.
func Default() Config {
	return Config{
		Model: ModelConfig{
			NEstimators: 100,
			MaxDepth:    10,
			RandomState: 42,
		},
		Training: TrainingConfig{
			TestSize:    0.2,
			RandomState: 42,
		},
		QualityGates: map[string]float64{
			"min_accuracy":  0.85,
			"min_precision": 0.80,
			"min_recall":    0.80,
			"min_f1":        0.80,
		},
		Server: ServerConfig{
			Port:        5000,
			MetricsPort: 9090,
		},
		System: SystemConfig{
			ModelPath: "models/model.json",
			DataPath:  "",
		},
	}
}

// Load reads configuration from path, overlays it onto the defaults and
// applies environment overrides. An empty path falls back to the
// CONFIG_FILE environment variable.
func Load(path string) Config {
	c := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("config_path", path).Msg("config file not readable, using defaults")
		} else {
			var file Config
			if err := yaml.Unmarshal(data, &file); err != nil {
				log.Warn().Err(err).Str("config_path", path).Msg("config file not parsable, using defaults")
			} else {
				overlay(&c, file)
			}
		}
	}

	applyEnv(&c)
	normalize(&c)
	return c
}

// overlay copies file values onto the defaults field by field, keeping the
// default wherever the file left a field unset.
func overlay(c *Config, file Config) {
	if file.Model.NEstimators > 0 {
		c.Model.NEstimators = file.Model.NEstimators
	}
	if file.Model.MaxDepth > 0 {
		c.Model.MaxDepth = file.Model.MaxDepth
	}
	if file.Model.RandomState != 0 {
		c.Model.RandomState = file.Model.RandomState
	}
	if file.Training.TestSize > 0 {
		c.Training.TestSize = file.Training.TestSize
	}
	if file.Training.RandomState != 0 {
		c.Training.RandomState = file.Training.RandomState
	}
	if len(file.QualityGates) > 0 {
		c.QualityGates = file.QualityGates
	}
	if file.Server.Port > 0 {
		c.Server.Port = file.Server.Port
	}
	if file.Server.MetricsPort > 0 {
		c.Server.MetricsPort = file.Server.MetricsPort
	}
	if file.System.ModelPath != "" {
		c.System.ModelPath = file.System.ModelPath
	}
	if file.System.DataPath != "" {
		c.System.DataPath = file.System.DataPath
	}
}

func applyEnv(c *Config) {
	c.System.ModelPath = getEnvOrDefault("MODEL_PATH", c.System.ModelPath)
	c.System.DataPath = getEnvOrDefault("DATA_PATH", c.System.DataPath)
	c.Server.Port = getIntOrDefault("SERVER_PORT", c.Server.Port)
	c.Server.MetricsPort = getIntOrDefault("METRICS_PORT", c.Server.MetricsPort)
}

// normalize pushes out-of-range values back to defaults. Config loading
// itself must not be able to fail the pipeline.
func normalize(c *Config) {
	def := Default()

	if c.Model.NEstimators <= 0 || c.Model.NEstimators > 10000 {
		log.Warn().Int("n_estimators", c.Model.NEstimators).Msg("invalid estimator count, using default")
		c.Model.NEstimators = def.Model.NEstimators
	}
	if c.Model.MaxDepth <= 0 || c.Model.MaxDepth > 100 {
		log.Warn().Int("max_depth", c.Model.MaxDepth).Msg("invalid max depth, using default")
		c.Model.MaxDepth = def.Model.MaxDepth
	}
	if c.Training.TestSize <= 0 || c.Training.TestSize >= 1 {
		log.Warn().Float64("test_size", c.Training.TestSize).Msg("invalid test size, using default")
		c.Training.TestSize = def.Training.TestSize
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		log.Warn().Int("port", c.Server.Port).Msg("invalid server port, using default")
		c.Server.Port = def.Server.Port
	}
	if c.Server.MetricsPort < 1 || c.Server.MetricsPort > 65535 {
		log.Warn().Int("metrics_port", c.Server.MetricsPort).Msg("invalid metrics port, using default")
		c.Server.MetricsPort = def.Server.MetricsPort
	}
	for gate, threshold := range c.QualityGates {
		if threshold < 0 || threshold > 1 {
			log.Warn().Str("gate", gate).Float64("threshold", threshold).Msg("gate threshold outside [0,1], dropping gate")
			delete(c.QualityGates, gate)
		}
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}
