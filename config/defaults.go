// Package config provides configuration defaults and utilities
// for the lyse analysis client.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via the lab configuration file.
package config

import "time"

// =============================================================================
// Remote Dataframe Defaults
// =============================================================================

const (
	// DefaultLysePort is the port the lyse GUI listens on for dataframe
	// requests. Used when the lab configuration has no ports.lyse entry.
	// Override via labconfig: ports.lyse
	DefaultLysePort = 42519

	// DefaultLyseHost is the address of the machine running the lyse GUI.
	DefaultLyseHost = "localhost"

	// DefaultFetchTimeout is the blocking timeout for a single dataframe
	// request/reply round trip. There are no retries; on timeout the
	// failure is propagated to the caller.
	DefaultFetchTimeout = 5 * time.Second

	// DefaultMaxReplySize limits the framed dataframe reply size to
	// prevent OOM on a corrupt length prefix. 256 MiB covers any
	// realistic aggregate table.
	DefaultMaxReplySize = 256 * 1024 * 1024
)

// =============================================================================
// Shot File Defaults
// =============================================================================

// ShotFileExtensions maps file extensions to the registered shot-file
// driver that handles them. Extensions not listed here are rejected at
// open time rather than guessed.
var ShotFileExtensions = map[string]string{
	".h5":     "hdf5",
	".hdf5":   "hdf5",
	".shot":   "sqlite",
	".sqlite": "sqlite",
}

// =============================================================================
// Lab Config Defaults
// =============================================================================

const (
	// DefaultLabConfigEnv names the environment variable that points at
	// the lab-wide configuration file.
	DefaultLabConfigEnv = "LABCONFIG"

	// DefaultLabConfigPath is used when DefaultLabConfigEnv is unset.
	DefaultLabConfigPath = "labconfig.yaml"
)
