// Package config holds the kernel's configuration. A Config can be decoded
// from YAML or JSON; fields left out of the file keep their defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the serialisable kernel configuration.
type Config struct {
	Machine    MachineConfig    `json:"machine" yaml:"machine"`
	Process    ProcessConfig    `json:"process" yaml:"process"`
	Log        LogConfig        `json:"log" yaml:"log"`
	FileSystem FileSystemConfig `json:"fileSystem" yaml:"fileSystem"`
	Tracing    TracingConfig    `json:"tracing" yaml:"tracing"`
}

// MachineConfig describes the simulated hardware.
type MachineConfig struct {
	NumPhysPages int `json:"numPhysPages" yaml:"numPhysPages"`
	PageSize     int `json:"pageSize" yaml:"pageSize"`
}

// ProcessConfig bounds user processes.
type ProcessConfig struct {
	// MaxProcesses is the size of the process table.
	MaxProcesses int `json:"maxProcesses" yaml:"maxProcesses"`
	// UserStackSize is reserved above each program's segments.
	UserStackSize int `json:"userStackSize" yaml:"userStackSize"`
	// MaxStringLength bounds strings copied from user memory, including
	// the terminating NUL.
	MaxStringLength int `json:"maxStringLength" yaml:"maxStringLength"`
}

// LogConfig selects the log level and an optional log file.
type LogConfig struct {
	Level string `json:"level" yaml:"level"`
	Path  string `json:"path" yaml:"path"`
}

// FileSystemConfig selects where executables are read from. An empty Root
// keeps files in memory.
type FileSystemConfig struct {
	Root string `json:"root" yaml:"root"`
}

// TracingConfig controls OpenTelemetry spans for system calls.
type TracingConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Output is a file path for the stdout exporter; empty writes to
	// standard output.
	Output string `json:"output" yaml:"output"`
}

// Default returns a Config populated with the stock values.
func Default() *Config {
	return &Config{
		Machine: MachineConfig{
			NumPhysPages: 32,
			PageSize:     128,
		},
		Process: ProcessConfig{
			MaxProcesses:    32,
			UserStackSize:   1024,
			MaxStringLength: 256,
		},
		Log: LogConfig{
			Level: "INFO",
		},
	}
}

var validLevels = map[string]bool{"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true}

// Validate returns an aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Machine.NumPhysPages <= 0 {
		errs = append(errs, fmt.Errorf("machine.numPhysPages must be > 0"))
	}
	if c.Machine.PageSize <= 0 || c.Machine.PageSize%4 != 0 {
		errs = append(errs, fmt.Errorf("machine.pageSize must be a positive multiple of 4"))
	}
	if c.Process.MaxProcesses <= 0 {
		errs = append(errs, fmt.Errorf("process.maxProcesses must be > 0"))
	}
	if c.Process.UserStackSize < 16 {
		errs = append(errs, fmt.Errorf("process.userStackSize must be >= 16"))
	}
	if c.Process.MaxStringLength < 2 {
		errs = append(errs, fmt.Errorf("process.maxStringLength must be >= 2"))
	}
	if !validLevels[strings.ToUpper(c.Log.Level)] {
		errs = append(errs, fmt.Errorf("log.level %q is not one of DEBUG, INFO, WARN, ERROR", c.Log.Level))
	}
	return errors.Join(errs...)
}

// Load reads the file at path on top of Default. Files ending in .json are
// decoded as JSON, anything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
