// Package config loads Runtime tuning knobs from a TOML file, and
// exposes the same knobs as functional options for callers that would
// rather build a worker.Config in code.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/lattice-run/minirts/worker"
)

// File mirrors the on-disk TOML shape:
//
//	workers = 8
//	pin_affinity = true
//	event_log_size = 512
type File struct {
	Workers      int  `toml:"workers"`
	PinAffinity  bool `toml:"pin_affinity"`
	EventLogSize int  `toml:"event_log_size"`
}

// Load reads path as TOML and returns the worker.Config it describes.
// Fields left at their zero value in the file fall back to
// worker.Config's own defaults when the pool is built.
func Load(path string) (worker.Config, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return worker.Config{}, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return worker.Config{
		Workers:      f.Workers,
		PinAffinity:  f.PinAffinity,
		EventLogSize: f.EventLogSize,
	}, nil
}

// Option mutates a worker.Config being built up programmatically.
type Option func(*worker.Config)

// WithWorkers sets the worker count.
func WithWorkers(n int) Option {
	return func(c *worker.Config) { c.Workers = n }
}

// WithAffinity enables or disables core-pinning.
func WithAffinity(pin bool) Option {
	return func(c *worker.Config) { c.PinAffinity = pin }
}

// WithEventLog sets the diagnostic event log's retained capacity; 0
// disables it.
func WithEventLog(capacity int) Option {
	return func(c *worker.Config) { c.EventLogSize = capacity }
}

// Build applies opts over worker.Config's zero value and returns the
// result, ready to pass to worker.New.
func Build(opts ...Option) worker.Config {
	var c worker.Config
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// MustLoad is Load but exits the process with a message on error,
// convenient at CLI startup where there is no good recovery.
func MustLoad(path string) worker.Config {
	cfg, err := Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return cfg
}
