// Package extension provides a Forge extension entry point for Tenure.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/tenure"
	"github.com/xraph/tenure/api"
	"github.com/xraph/tenure/cache"
	"github.com/xraph/tenure/directory"
	"github.com/xraph/tenure/plugin"
	"github.com/xraph/tenure/store"
	mongostore "github.com/xraph/tenure/store/mongo"
	pgstore "github.com/xraph/tenure/store/postgres"
	sqlitestore "github.com/xraph/tenure/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "tenure"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Time-bounded administrative grants with a tamper-evident activity trail"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Tenure as a Forge extension.
type Extension struct {
	config     Config
	eng        *tenure.Engine
	apiHandler *api.API
	logger     *slog.Logger
	tenureOpts []tenure.Option
	plugins    []plugin.Plugin
}

// New creates a Tenure Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the extension version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Engine returns the underlying Tenure engine.
func (e *Extension) Engine() *tenure.Engine { return e.eng }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Register implements [forge.Extension]. It initializes the engine,
// registers it in the DI container, and optionally registers HTTP routes.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.init(fapp); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*tenure.Engine, error) {
		return e.eng, nil
	}); err != nil {
		return fmt.Errorf("tenure: register engine in container: %w", err)
	}

	return nil
}

func (e *Extension) init(fapp forge.App) error {
	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := tenure.DefaultConfig()
	cfg.CacheTTL = e.config.CacheTTL

	opts := make([]tenure.Option, 0, len(e.tenureOpts)+len(e.plugins)+5)
	opts = append(opts, tenure.WithLogger(logger), tenure.WithConfig(cfg))

	if e.config.CacheTTL > 0 {
		opts = append(opts, tenure.WithCache(cache.NewMemory(
			cache.WithTTL(e.config.CacheTTL),
			cache.WithMaxSize(e.config.CacheSize),
		)))
	}

	// Container-provided store and directory come first so explicit
	// options can override them.
	s, err := e.resolveStore(fapp)
	if err != nil {
		return err
	}
	if s != nil {
		opts = append(opts, tenure.WithStore(s))
	}
	if d, err := forge.Inject[directory.Directory](fapp.Container()); err == nil {
		opts = append(opts, tenure.WithDirectory(d))
	}

	opts = append(opts, e.tenureOpts...)

	for _, x := range e.plugins {
		opts = append(opts, tenure.WithPlugin(x))
	}

	eng, err := tenure.NewEngine(opts...)
	if err != nil {
		return fmt.Errorf("tenure: create engine: %w", err)
	}
	e.eng = eng

	e.apiHandler = api.New(eng, fapp.Router())

	if !e.config.DisableRoutes {
		if err := e.RegisterRoutes(fapp.Router()); err != nil {
			return fmt.Errorf("tenure: register routes: %w", err)
		}
	}

	return nil
}

// resolveStore builds a store from the container's grove.DB when a driver
// is configured, otherwise injects a store.Store if one is registered.
func (e *Extension) resolveStore(fapp forge.App) (store.Store, error) {
	if e.config.GroveDriver == "" {
		if s, err := forge.Inject[store.Store](fapp.Container()); err == nil {
			return s, nil
		}
		return nil, nil
	}
	db, err := forge.Inject[*grove.DB](fapp.Container())
	if err != nil {
		return nil, fmt.Errorf("tenure: resolve grove database: %w", err)
	}
	return newGroveStore(e.config.GroveDriver, db)
}

func newGroveStore(driver string, db *grove.DB) (store.Store, error) {
	switch driver {
	case "postgres", "pg":
		return pgstore.New(db), nil
	case "sqlite":
		return sqlitestore.New(db), nil
	case "mongo", "mongodb":
		return mongostore.New(db), nil
	}
	return nil, fmt.Errorf("tenure: unknown grove driver %q", driver)
}

// Start begins the tenure engine and runs migrations if enabled.
func (e *Extension) Start(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("tenure: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.eng.Store().Migrate(ctx); err != nil {
			return fmt.Errorf("tenure: migration failed: %w", err)
		}
	}

	return e.eng.Start(ctx)
}

// Stop gracefully shuts down the tenure engine.
func (e *Extension) Stop(ctx context.Context) error {
	if e.eng == nil {
		return nil
	}
	return e.eng.Stop(ctx)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("tenure: extension not initialized")
	}
	return e.eng.Store().Ping(ctx)
}

// Handler returns the HTTP handler for all API routes.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

// RegisterRoutes registers all tenure API routes under BasePath.
func (e *Extension) RegisterRoutes(router forge.Router) error {
	if e.apiHandler == nil {
		return nil
	}
	if e.config.BasePath != "" {
		router = router.Group(e.config.BasePath)
	}
	return e.apiHandler.RegisterRoutes(router)
}
