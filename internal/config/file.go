package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the YAML configuration file.
const FileName = "esbuild-service.yaml"

// File is the on-disk configuration read by the esbuild-service command.
type File struct {
	// Version is the esbuild version to run in service mode.
	Version string `yaml:"version"`
	// WorkDir is the process working directory and provisioning root.
	WorkDir string `yaml:"work_dir"`
	// Executable is an explicit esbuild path.
	Executable string `yaml:"executable"`
	// Env holds extra environment variables for the esbuild process.
	Env map[string]string `yaml:"env"`
	// SkipVersionCheck disables the `esbuild --version` check.
	SkipVersionCheck bool `yaml:"skip_version_check"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Server ServerConfig `yaml:"server"`
}

// ServerConfig configures the development HTTP server.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`
	// Root is the front end directory holding src/, lib/ and tsconfig.json.
	Root string `yaml:"root"`
	// ContextPath is prefixed to every served URL.
	ContextPath string `yaml:"context_path"`
	// TSConfig overrides the tsconfig.json passed to esbuild.
	TSConfig string `yaml:"tsconfig"`
	// LibraryPrefix replaces ${LIBRARY_PREFIX} in the import map.
	LibraryPrefix string `yaml:"library_prefix"`
	// Revision replaces ${APP_REVISION} in the import map.
	Revision string `yaml:"revision"`
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg File
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads the config from the first existing default location.
// Checks: ./esbuild-service.yaml, ~/.config/esbuild-service/esbuild-service.yaml,
// /etc/esbuild-service/esbuild-service.yaml. No file found is not an error.
func LoadWithDefaults() (*File, error) {
	locations := []string{"./" + FileName}

	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".config", "esbuild-service", FileName))
	}

	locations = append(locations, filepath.Join("/etc/esbuild-service", FileName))

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return Load(loc)
		}
	}

	return &File{}, nil
}

// Validate checks config correctness.
func (f *File) Validate() error {
	switch strings.ToLower(f.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", f.LogLevel)
	}

	if f.Server.ContextPath != "" && !strings.HasPrefix(f.Server.ContextPath, "/") {
		return fmt.Errorf("server.context_path %q must start with /", f.Server.ContextPath)
	}

	for key := range f.Env {
		if key == "" || strings.ContainsRune(key, '=') {
			return fmt.Errorf("invalid env name %q", key)
		}
	}

	return nil
}

// Options converts the file into client options. Fields left empty keep
// their defaults.
func (f *File) Options() *Options {
	return &Options{
		Version:          f.Version,
		WorkDir:          f.WorkDir,
		ExecutablePath:   f.Executable,
		Env:              f.Env,
		SkipVersionCheck: f.SkipVersionCheck,
	}
}
