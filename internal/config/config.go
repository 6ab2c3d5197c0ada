// Package config loads telgen's settings from defaults, an optional config
// file and TELGEN_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds agent configuration.
type Config struct {
	LogFile     string `yaml:"log_file" toml:"log_file"`
	ProcessName string `yaml:"process_name" toml:"process_name"`
	Prompt      string `yaml:"prompt" toml:"prompt"`
	Listen      string `yaml:"listen" toml:"listen"`
	HistorySize int    `yaml:"history_size" toml:"history_size"`
	LogChildPID bool   `yaml:"log_child_pid" toml:"log_child_pid"`
	LogLevel    string `yaml:"log_level" toml:"log_level"`
}

const (
	DefaultLogFile     = "telemetry.log"
	DefaultProcessName = "TELGEN"
	DefaultPrompt      = "telgen> "
	DefaultHistorySize = 1000
	DefaultLogLevel    = "info"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogFile:     DefaultLogFile,
		ProcessName: DefaultProcessName,
		Prompt:      DefaultPrompt,
		HistorySize: DefaultHistorySize,
		LogLevel:    DefaultLogLevel,
	}
}

// Load builds the configuration: defaults, then the file at path (if
// non-empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// mergeFile decodes the file over cfg. Keys missing from the file keep
// their current values.
func (c *Config) mergeFile(path string) error {
	path = os.ExpandEnv(path)
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, c); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(content), c); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	return nil
}

// applyEnv overrides fields from TELGEN_* variables. Unparsable numeric or
// boolean values are errors rather than being silently dropped.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("TELGEN_LOG_FILE"); ok && v != "" {
		c.LogFile = v
	}
	if v, ok := lookup("TELGEN_PROCESS_NAME"); ok && v != "" {
		c.ProcessName = v
	}
	if v, ok := lookup("TELGEN_PROMPT"); ok && v != "" {
		c.Prompt = v
	}
	if v, ok := lookup("TELGEN_LISTEN"); ok {
		c.Listen = v
	}
	if v, ok := lookup("TELGEN_HISTORY_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TELGEN_HISTORY_SIZE: %w", err)
		}
		c.HistorySize = n
	}
	if v, ok := lookup("TELGEN_LOG_CHILD_PID"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TELGEN_LOG_CHILD_PID: %w", err)
		}
		c.LogChildPID = b
	}
	if v, ok := lookup("TELGEN_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	return nil
}

var validLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.LogFile) == "" {
		return fmt.Errorf("log file must not be empty")
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("history size must be positive, got %d", c.HistorySize)
	}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}
