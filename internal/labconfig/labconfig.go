// Package labconfig reads the lab-wide configuration file.
//
// The lab configuration is owned by the wider lab software installation,
// not by this module; only the handful of entries the analysis client
// consumes are modeled here. Unknown sections are ignored so that the
// same file can carry configuration for other tools.
//
// Expected shape:
//
//	ports:
//	  lyse: 42519
//	lyse:
//	  host: bec-control
//	  integer_indexing: true
package labconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/labscript-suite/lyse-go/config"
)

// Config holds the lab configuration entries consumed by this module.
type Config struct {
	// Ports maps service names to TCP ports. The "lyse" entry is the
	// port the GUI's dataframe server listens on.
	Ports map[string]int `yaml:"ports"`

	Lyse LyseSection `yaml:"lyse"`
}

// LyseSection holds lyse-specific client settings.
type LyseSection struct {
	// Host is the address of the machine running the lyse GUI.
	Host string `yaml:"host"`

	// IntegerIndexing selects the (sequence_index, run number,
	// run repeat) dataframe index instead of the default
	// (sequence, run time) index.
	IntegerIndexing bool `yaml:"integer_indexing"`
}

// DefaultConfig returns a Config populated with the built-in fallbacks.
func DefaultConfig() *Config {
	return &Config{
		Ports: map[string]int{"lyse": config.DefaultLysePort},
		Lyse: LyseSection{
			Host: config.DefaultLyseHost,
		},
	}
}

// Load loads the lab configuration from a YAML file. Environment
// variables in the file are expanded before parsing. Values absent from
// the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labconfig: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse labconfig: %w", err)
	}
	if cfg.Ports == nil {
		cfg.Ports = map[string]int{}
	}
	if cfg.Lyse.Host == "" {
		cfg.Lyse.Host = config.DefaultLyseHost
	}
	return cfg, nil
}

// LoadDefault loads the configuration from the path named by the
// LABCONFIG environment variable, falling back to labconfig.yaml in the
// working directory. A missing or unreadable file is not an error: the
// built-in defaults are returned, matching the behavior expected of
// analysis scripts run on machines without a lab installation.
func LoadDefault() *Config {
	path := os.Getenv(config.DefaultLabConfigEnv)
	if path == "" {
		path = config.DefaultLabConfigPath
	}
	cfg, err := Load(path)
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}

// LysePort returns the configured lyse GUI port, or the built-in
// fallback when the ports section has no lyse entry.
func (c *Config) LysePort() int {
	if p, ok := c.Ports["lyse"]; ok && p > 0 {
		return p
	}
	return config.DefaultLysePort
}
