package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when RISKSCAN_CONFIG is not set.
const DefaultPath = "configs/config.yml"

// Config holds application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Model struct {
		Dir string `yaml:"dir"`
	} `yaml:"model"`

	Training Training `yaml:"training"`

	Database struct {
		Path string `yaml:"path"` // SQLite training ledger
	} `yaml:"database"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // "console" or "json"
	} `yaml:"logging"`
}

// Training holds the offline training parameters.
type Training struct {
	DataPath      string  `yaml:"data_path"`
	TextColumn    string  `yaml:"text_column"`
	ClassColumn   string  `yaml:"class_column"`
	PositiveClass string  `yaml:"positive_class"`
	NegativeClass string  `yaml:"negative_class"`
	TestSize      float64 `yaml:"test_size"`
	Seed          uint64  `yaml:"seed"`
	MaxFeatures   int     `yaml:"max_features"`
	NGramMin      int     `yaml:"ngram_min"`
	NGramMax      int     `yaml:"ngram_max"`
	C             float64 `yaml:"c"`
	MaxIterations int     `yaml:"max_iterations"`
}

// Path returns the config file location, honouring RISKSCAN_CONFIG.
func Path() string {
	if p := os.Getenv("RISKSCAN_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// LoadConfig loads configuration from YAML file. A missing file yields the defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	switch {
	case err == nil:
		defer file.Close()
		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	config.applyDefaults()

	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}

	config.Model.Dir = os.ExpandEnv(config.Model.Dir)
	config.Database.Path = os.ExpandEnv(config.Database.Path)
	config.Training.DataPath = os.ExpandEnv(config.Training.DataPath)

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8000"
	}

	if c.Model.Dir == "" {
		c.Model.Dir = "model"
	}

	if c.Database.Path == "" {
		c.Database.Path = "./data/training.db"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}

	t := &c.Training
	if t.DataPath == "" {
		t.DataPath = "data/suicide_detection.csv"
	}
	if t.TextColumn == "" {
		t.TextColumn = "text"
	}
	if t.ClassColumn == "" {
		t.ClassColumn = "class"
	}
	if t.PositiveClass == "" {
		t.PositiveClass = "suicide"
	}
	if t.TestSize == 0 {
		t.TestSize = 0.2
	}
	if t.Seed == 0 {
		t.Seed = 42
	}
	if t.MaxFeatures == 0 {
		t.MaxFeatures = 5000
	}
	if t.NGramMin == 0 {
		t.NGramMin = 1
	}
	if t.NGramMax == 0 {
		t.NGramMax = 2
	}
	if t.C == 0 {
		t.C = 1.0
	}
	if t.MaxIterations == 0 {
		t.MaxIterations = 1000
	}
}
