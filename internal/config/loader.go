package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"llamactx/internal/engine"
	"llamactx/internal/registry"
)

// Config holds runtime parameters for the CLI and the manager.
type Config struct {
	LogLevel    string                  `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat   string                  `json:"log_format" yaml:"log_format" toml:"log_format"`
	Capacity    int                     `json:"capacity" yaml:"capacity" toml:"capacity"`
	Workers     int                     `json:"workers" yaml:"workers" toml:"workers"`
	ModelsDir   string                  `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	JournalPath string                  `json:"journal_path" yaml:"journal_path" toml:"journal_path"`
	Admin       AdminConfig             `json:"admin" yaml:"admin" toml:"admin"`
	Context     engine.ContextParams    `json:"context" yaml:"context" toml:"context"`
	Completion  engine.CompletionParams `json:"completion" yaml:"completion" toml:"completion"`
}

// AdminConfig controls the optional local health/metrics endpoint. An empty
// Addr disables it.
type AdminConfig struct {
	Addr        string   `json:"addr" yaml:"addr" toml:"addr"`
	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	CORSMethods []string `json:"cors_methods" yaml:"cors_methods" toml:"cors_methods"`
	CORSHeaders []string `json:"cors_headers" yaml:"cors_headers" toml:"cors_headers"`
}

// Defaults for fields that have no natural zero value.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
	DefaultWorkers   = 2
	DefaultModelsDir = "~/models/llm"
)

// Default returns a configuration with every documented default applied.
func Default() Config {
	return Config{
		LogLevel:   DefaultLogLevel,
		LogFormat:  DefaultLogFormat,
		Capacity:   registry.DefaultCapacity,
		Workers:    DefaultWorkers,
		ModelsDir:  DefaultModelsDir,
		Context:    engine.DefaultContextParams(""),
		Completion: engine.DefaultCompletionParams(""),
	}
}

// Load reads a configuration file based on its extension, on top of
// Default(). Keys absent from the file keep their defaults.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
