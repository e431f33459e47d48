package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port           int           `yaml:"port"`
	StorePort      int           `yaml:"store_port"`
	OracleURL      string        `yaml:"oracle_url"`      // endpoint POSTed with one encoded frame
	StoreURL       string        `yaml:"store_url"`       // base URL of the review store
	SaveDirectory  string        `yaml:"save_directory"`  // where captured frames are written
	DatabasePath   string        `yaml:"database_path"`   // review store service only
	CameraDevice   int           `yaml:"camera_device"`   // OpenCV device index
	FrameInterval  time.Duration `yaml:"frame_interval"`  // pause between camera/video iterations
	RequestTimeout time.Duration `yaml:"request_timeout"` // per oracle/store request
	LogDirectory   string        `yaml:"log_directory"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Port:           8080,
		StorePort:      5000,
		OracleURL:      "http://127.0.0.1:5000/detect/image/",
		StoreURL:       "http://127.0.0.1:5000",
		SaveDirectory:  filepath.Join(".", "static_img"),
		DatabasePath:   filepath.Join(".", "data", "images.db"),
		CameraDevice:   0,
		FrameInterval:  30 * time.Millisecond,
		RequestTimeout: 10 * time.Second,
		LogDirectory:   filepath.Join(".", "logs"),
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_FILE, a .env file in the working directory and finally the process
// environment, each layer overriding the previous one.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to read .env")
	}

	cfg.Port = getEnvAsInt("PORT", cfg.Port)
	cfg.StorePort = getEnvAsInt("STORE_PORT", cfg.StorePort)
	cfg.OracleURL = getEnv("ORACLE_URL", cfg.OracleURL)
	cfg.StoreURL = getEnv("STORE_URL", cfg.StoreURL)
	cfg.SaveDirectory = getEnv("SAVE_DIR", cfg.SaveDirectory)
	cfg.DatabasePath = getEnv("DB_PATH", cfg.DatabasePath)
	cfg.CameraDevice = getEnvAsInt("CAMERA_DEVICE", cfg.CameraDevice)
	cfg.FrameInterval = getEnvAsDuration("FRAME_INTERVAL", cfg.FrameInterval)
	cfg.RequestTimeout = getEnvAsDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.LogDirectory = getEnv("LOG_DIR", cfg.LogDirectory)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "failed to parse config file %s", path)
	}
	return nil
}

// Validate rejects configurations the services cannot start with.
func (c *Config) Validate() error {
	switch {
	case c.Port <= 0:
		return errors.Errorf("port must be positive, got %d", c.Port)
	case c.StorePort <= 0:
		return errors.Errorf("store port must be positive, got %d", c.StorePort)
	case c.OracleURL == "":
		return errors.New("oracle URL is required")
	case c.StoreURL == "":
		return errors.New("store URL is required")
	case c.SaveDirectory == "":
		return errors.New("save directory is required")
	case c.FrameInterval < 0:
		return errors.Errorf("frame interval must not be negative, got %s", c.FrameInterval)
	case c.RequestTimeout <= 0:
		return errors.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("250ms") or bare milliseconds ("250").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
