package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/h2gis/h2gis-go/engine"
)

type options struct {
	cfg    engine.Config
	logger *zap.Logger
}

// Option configures Open. Engine-level settings (library path, init
// timeout, stack reserve, loader) only take effect for the session that
// starts a fresh engine lifecycle; later sessions join the running
// engine as-is.
type Option func(*options)

// WithLibraryPath sets an explicit shared-library path, overriding the
// environment and the platform fallback list.
func WithLibraryPath(path string) Option {
	return func(o *options) { o.cfg.LibraryPath = path }
}

// WithFallbackPaths replaces the platform fallback candidates probed
// when no explicit path is configured.
func WithFallbackPaths(paths ...string) Option {
	return func(o *options) { o.cfg.FallbackPaths = paths }
}

// WithInitTimeout bounds library load plus isolate creation.
func WithInitTimeout(d time.Duration) Option {
	return func(o *options) { o.cfg.InitTimeout = d }
}

// WithStackReserve sets the address-space reservation requested for the
// isolate.
func WithStackReserve(bytes uint64) Option {
	return func(o *options) { o.cfg.StackReserve = bytes }
}

// WithLoader replaces the native library loader. Used by tests to run
// against an in-memory runtime.
func WithLoader(l engine.Loader) Option {
	return func(o *options) { o.cfg.Loader = l }
}

// WithLogger installs the process logger used by the engine and
// sessions. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}
