package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"exoplanet-classifier/internal/common"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	DatasetPath     string
	ArtifactPath    string
	DataPath        string
	ServerPort      int
	MetricsPort     int
	LogLevel        string
	TrainWorkers    int
	ServerURL       string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	LogPredictions  bool
	MaxRequestBody  int64
}

type ConfigFile struct {
	Training struct {
		DatasetPath  string `yaml:"datasetPath"`
		ArtifactPath string `yaml:"artifactPath"`
		Workers      int    `yaml:"workers"`
	} `yaml:"training"`

	Server struct {
		Port            int    `yaml:"port"`
		URL             string `yaml:"url"`
		RequestTimeout  string `yaml:"requestTimeout"`
		ShutdownTimeout string `yaml:"shutdownTimeout"`
		LogPredictions  bool   `yaml:"logPredictions"`
		MaxRequestKB    int    `yaml:"maxRequestKB"`
	} `yaml:"server"`

	System struct {
		DataPath    string `yaml:"dataPath"`
		MetricsPort int    `yaml:"metricsPort"`
		LogLevel    string `yaml:"logLevel"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	// Variables already set in the environment take precedence over .env.
	if err := LoadDotEnv(os.Getenv(common.EnvDotEnvFile)); err != nil {
		return Settings{}, err
	}

	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

// LoadDotEnv loads KEY=VALUE pairs from path, or ./.env when path is empty.
// A missing default file is not an error.
func LoadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	requestTimeout, err := time.ParseDuration(config.Server.RequestTimeout)
	if err != nil {
		requestTimeout = 5 * time.Second
	}

	shutdownTimeout, err := time.ParseDuration(config.Server.ShutdownTimeout)
	if err != nil {
		shutdownTimeout = 10 * time.Second
	}

	settings := Settings{
		DatasetPath:     getEnvOrDefault(common.EnvDatasetPath, orDefault(config.Training.DatasetPath, common.DefaultDatasetPath)),
		ArtifactPath:    getEnvOrDefault(common.EnvArtifactPath, orDefault(config.Training.ArtifactPath, common.DefaultArtifactPath)),
		DataPath:        getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		ServerPort:      getIntFromEnvOrConfig(common.EnvServerPort, config.Server.Port, common.DefaultServerPort),
		MetricsPort:     getIntFromEnvOrConfig(common.EnvMetricsPort, config.System.MetricsPort, common.DefaultMetricsPort),
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, orDefault(config.System.LogLevel, common.DefaultLogLevel)),
		TrainWorkers:    getIntFromEnvOrConfig(common.EnvTrainWorkers, config.Training.Workers, common.DefaultTrainWorkers),
		ServerURL:       getEnvOrDefault(common.EnvServerURL, orDefault(config.Server.URL, common.DefaultServerURL)),
		RequestTimeout:  getDurationOrDefault(common.EnvRequestTimeout, requestTimeout),
		ShutdownTimeout: getDurationOrDefault(common.EnvShutdownTimeout, shutdownTimeout),
		LogPredictions:  getBoolOrDefault(common.EnvLogPredictions, config.Server.LogPredictions),
		MaxRequestBody:  int64(getIntFromEnvOrConfig(common.EnvMaxRequestBodyKB, config.Server.MaxRequestKB, common.DefaultMaxRequestBodyKB)) * 1024,
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		DatasetPath:     getEnvOrDefault(common.EnvDatasetPath, common.DefaultDatasetPath),
		ArtifactPath:    getEnvOrDefault(common.EnvArtifactPath, common.DefaultArtifactPath),
		DataPath:        os.Getenv(common.EnvDataPath), // optional
		ServerPort:      getIntOrDefault(common.EnvServerPort, common.DefaultServerPort),
		MetricsPort:     getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		TrainWorkers:    getIntOrDefault(common.EnvTrainWorkers, common.DefaultTrainWorkers),
		ServerURL:       getEnvOrDefault(common.EnvServerURL, common.DefaultServerURL),
		RequestTimeout:  getDurationOrDefault(common.EnvRequestTimeout, 5*time.Second),
		ShutdownTimeout: getDurationOrDefault(common.EnvShutdownTimeout, 10*time.Second),
		LogPredictions:  getBoolOrDefault(common.EnvLogPredictions, false),
		MaxRequestBody:  int64(getIntOrDefault(common.EnvMaxRequestBodyKB, common.DefaultMaxRequestBodyKB)) * 1024,
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
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

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// validateSettings performs validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.DatasetPath == "" {
		return fmt.Errorf("dataset path cannot be empty")
	}
	if settings.ArtifactPath == "" {
		return fmt.Errorf("artifact path cannot be empty")
	}
	if settings.ServerURL == "" {
		return fmt.Errorf("server URL cannot be empty")
	}

	if settings.ServerPort < common.MinPort || settings.ServerPort > common.MaxPort {
		return fmt.Errorf("server port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.ServerPort)
	}
	if settings.MetricsPort < common.MinPort || settings.MetricsPort > common.MaxPort {
		return fmt.Errorf("metrics port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.MetricsPort)
	}
	if settings.ServerPort == settings.MetricsPort {
		return fmt.Errorf("server port and metrics port must differ, both are %d", settings.ServerPort)
	}

	if settings.TrainWorkers < 1 || settings.TrainWorkers > common.MaxTrainWorkers {
		return fmt.Errorf("train workers must be between 1 and %d, got %d", common.MaxTrainWorkers, settings.TrainWorkers)
	}

	if settings.RequestTimeout < 100*time.Millisecond || settings.RequestTimeout > time.Minute {
		return fmt.Errorf("request timeout must be between 100ms and 1m, got %v", settings.RequestTimeout)
	}
	if settings.ShutdownTimeout < time.Second || settings.ShutdownTimeout > 5*time.Minute {
		return fmt.Errorf("shutdown timeout must be between 1s and 5m, got %v", settings.ShutdownTimeout)
	}

	if settings.MaxRequestBody <= 0 {
		return fmt.Errorf("max request body must be positive, got %d", settings.MaxRequestBody)
	}

	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", settings.LogLevel, err)
	}

	return nil
}
