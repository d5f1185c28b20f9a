package extension

import (
	"log/slog"
	"time"

	"github.com/xraph/tenure"
	"github.com/xraph/tenure/directory"
	"github.com/xraph/tenure/plugin"
	"github.com/xraph/tenure/store"
)

// ExtOption configures the Tenure Forge extension.
type ExtOption func(*Extension)

// WithStore sets the persistence backend.
func WithStore(s store.Store) ExtOption {
	return func(e *Extension) {
		e.tenureOpts = append(e.tenureOpts, tenure.WithStore(s))
	}
}

// WithDirectory sets the identity directory.
func WithDirectory(d directory.Directory) ExtOption {
	return func(e *Extension) {
		e.tenureOpts = append(e.tenureOpts, tenure.WithDirectory(d))
	}
}

// WithConfig sets the extension configuration.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithEngineOptions adds engine-level options.
func WithEngineOptions(opts ...tenure.Option) ExtOption {
	return func(e *Extension) {
		e.tenureOpts = append(e.tenureOpts, opts...)
	}
}

// WithPlugin registers a lifecycle hook plugin.
func WithPlugin(x plugin.Plugin) ExtOption {
	return func(e *Extension) {
		e.plugins = append(e.plugins, x)
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ExtOption {
	return func(e *Extension) {
		e.logger = l
	}
}

// WithBasePath sets the URL prefix for tenure routes.
func WithBasePath(path string) ExtOption {
	return func(e *Extension) {
		e.config.BasePath = path
	}
}

// WithCacheTTL sets the effective-tier cache TTL. Zero disables caching.
func WithCacheTTL(ttl time.Duration) ExtOption {
	return func(e *Extension) {
		e.config.CacheTTL = ttl
	}
}

// WithGroveDriver builds the store from the container's grove.DB using
// the named driver ("postgres", "sqlite" or "mongo").
func WithGroveDriver(driver string) ExtOption {
	return func(e *Extension) {
		e.config.GroveDriver = driver
	}
}

// WithDisableRoutes disables the registration of HTTP routes.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) {
		e.config.DisableRoutes = true
	}
}

// WithDisableMigrate disables auto-migration on start.
func WithDisableMigrate() ExtOption {
	return func(e *Extension) {
		e.config.DisableMigrate = true
	}
}
