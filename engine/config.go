package engine

import (
	"time"

	h2gis "github.com/h2gis/h2gis-go"
)

// DefaultInitTimeout bounds the initialization handshake: library load,
// symbol binding and isolate creation together must reach Ready within
// this window.
const DefaultInitTimeout = 10 * time.Second

// DefaultStackReserve is the address-space reservation requested for the
// isolate, sized for the embedded runtime's worst-case call depth.
const DefaultStackReserve = 64 << 20

// Loader produces a bound runtime. It is invoked on the worker thread,
// so the isolate it creates belongs to that thread.
type Loader func(spec LoadSpec) (h2gis.Runtime, error)

// LoadSpec carries the loader inputs resolved from configuration.
type LoadSpec struct {
	// LibraryPath is an explicit shared-library path. When empty the
	// loader probes FallbackPaths in order.
	LibraryPath string

	// FallbackPaths are platform-specific candidate locations, tried
	// only when LibraryPath is empty.
	FallbackPaths []string

	// StackReserve is passed to isolate creation.
	StackReserve uint64
}

// Config configures an Engine. The zero value is usable: defaults apply
// and the loader falls back to the native library loader installed by
// the session package.
type Config struct {
	LibraryPath   string
	FallbackPaths []string
	InitTimeout   time.Duration
	StackReserve  uint64
	Loader        Loader
}

func (c Config) withDefaults() Config {
	if c.InitTimeout <= 0 {
		c.InitTimeout = DefaultInitTimeout
	}
	if c.StackReserve == 0 {
		c.StackReserve = DefaultStackReserve
	}
	if c.Loader == nil {
		c.Loader = defaultLoader
	}
	return c
}

// defaultLoader is installed by the native package at init time. Keeping
// the indirection here avoids importing native (and purego) into pure
// in-memory test setups.
var defaultLoader Loader

// RegisterDefaultLoader installs the loader used when Config.Loader is
// nil. Called once from the native package.
func RegisterDefaultLoader(l Loader) {
	defaultLoader = l
}
