// Package config loads profprune settings from a YAML file, .env files and
// PROFPRUNE_* environment variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// FileName is the config file looked up in the data directory.
	FileName = "profprune.yaml"

	// SourceWMI reads and deletes profiles through Win32_UserProfile.
	SourceWMI = "wmi"
	// SourceSnapshot works on a YAML inventory snapshot.
	SourceSnapshot = "snapshot"

	envPrefix           = "PROFPRUNE_"
	defaultHistoryLimit = 20
	defaultNamespace    = `root\cimv2`
)

// Config represents the application configuration.
type Config struct {
	LogDir       string   `yaml:"log_dir"`
	DataDir      string   `yaml:"data_dir"`
	DefaultKeep  []string `yaml:"default_keep"`
	Source       string   `yaml:"source"`
	SnapshotPath string   `yaml:"snapshot_path"`
	WMINamespace string   `yaml:"wmi_namespace"`
	HistoryLimit int      `yaml:"history_limit"`
}

// Defaults returns the built-in configuration for the given directories.
func Defaults(dataDir, logDir string) *Config {
	return &Config{
		LogDir:       logDir,
		DataDir:      dataDir,
		Source:       SourceWMI,
		WMINamespace: defaultNamespace,
		HistoryLimit: defaultHistoryLimit,
	}
}

// Loader reads configuration layers on top of defaults.
type Loader struct {
	// Path is an explicit config file; when empty <DataDir>/profprune.yaml is used if present.
	Path string
	// EnvFiles are optional dotenv files; missing ones are ignored.
	EnvFiles []string
}

// Load applies the config file, dotenv files and environment to defaults.
func (l Loader) Load(defaults *Config) (*Config, error) {
	cfg := *defaults
	cfg.DefaultKeep = append([]string(nil), defaults.DefaultKeep...)

	if err := loadEnvFiles(l.EnvFiles); err != nil {
		return nil, err
	}

	// The data directory may itself come from the environment.
	if dir := getEnv(envPrefix+"DATA_DIR", ""); dir != "" {
		cfg.DataDir = dir
	}

	if err := cfg.loadFile(l.Path); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadFile(explicit string) error {
	path := explicit
	if path == "" {
		if c.DataDir == "" {
			return nil
		}
		path = filepath.Join(c.DataDir, FileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if explicit == "" && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LogDir = getEnv(envPrefix+"LOG_DIR", c.LogDir)
	c.DataDir = getEnv(envPrefix+"DATA_DIR", c.DataDir)
	c.Source = getEnv(envPrefix+"SOURCE", c.Source)
	c.SnapshotPath = getEnv(envPrefix+"SNAPSHOT", c.SnapshotPath)
	c.WMINamespace = getEnv(envPrefix+"WMI_NAMESPACE", c.WMINamespace)
	c.HistoryLimit = getEnvAsInt(envPrefix+"HISTORY_LIMIT", c.HistoryLimit)
	if keep := getEnv(envPrefix+"DEFAULT_KEEP", ""); keep != "" {
		c.DefaultKeep = splitList(keep)
	}
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	c.Source = strings.ToLower(strings.TrimSpace(c.Source))
	switch c.Source {
	case SourceWMI, SourceSnapshot:
	default:
		return fmt.Errorf("unknown inventory source %q (want %s or %s)", c.Source, SourceWMI, SourceSnapshot)
	}

	if c.DataDir == "" {
		return errors.New("data directory is required")
	}

	if c.LogDir == "" {
		return errors.New("log directory is required")
	}

	if c.HistoryLimit < 0 {
		return errors.New("history limit cannot be negative")
	}

	if c.WMINamespace == "" {
		c.WMINamespace = defaultNamespace
	}
	return nil
}

func loadEnvFiles(files []string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	// godotenv.Load never overrides variables already set in the environment.
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
