package extension

import "time"

// Config holds the Tenure extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.tenure" or "tenure" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for tenure routes (default: "/tenure").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// CacheTTL bounds how long an effective-tier decision is served from
	// the in-process cache. Zero disables the cache.
	CacheTTL time.Duration `json:"cache_ttl" mapstructure:"cache_ttl" yaml:"cache_ttl"`

	// CacheSize caps the number of cached subjects.
	CacheSize int `json:"cache_size" mapstructure:"cache_size" yaml:"cache_size"`

	// GroveDriver selects the store built from the grove.DB registered in
	// the DI container: "postgres", "sqlite" or "mongo". When empty the
	// extension injects a store.Store or uses WithStore.
	GroveDriver string `json:"grove_driver" mapstructure:"grove_driver" yaml:"grove_driver"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:  "/tenure",
		CacheTTL:  5 * time.Second,
		CacheSize: 10000,
	}
}
