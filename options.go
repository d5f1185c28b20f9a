package tenure

import (
	"log/slog"
	"time"

	"github.com/xraph/tenure/directory"
	"github.com/xraph/tenure/plugin"
	"github.com/xraph/tenure/store"
)

// Option is a functional option for the Engine.
type Option func(*Engine)

// WithStore sets the composite store.
func WithStore(s store.Store) Option { return func(e *Engine) { e.store = s } }

// WithDirectory sets the identity directory.
func WithDirectory(d directory.Directory) Option { return func(e *Engine) { e.directory = d } }

// WithCache sets the effective-tier cache.
func WithCache(c Cache) Option { return func(e *Engine) { e.cache = c } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithConfig sets the engine configuration.
func WithConfig(c Config) Option { return func(e *Engine) { e.config = c } }

// WithClock overrides the time source. Tests use it to move "now" past
// grant expiries.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithPlugin registers a plugin with the engine.
func WithPlugin(x plugin.Plugin) Option {
	return func(e *Engine) { e.pending = append(e.pending, x) }
}
