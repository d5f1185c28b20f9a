package tenure

import "time"

// Config holds configuration for the Tenure engine.
type Config struct {
	// CacheTTL bounds how long an effective tier may be served from the
	// cache. Entries also never outlive the earliest expiry that produced
	// them. Zero disables caching even when a Cache is configured.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`

	// DefaultActivityLimit is used by RecentActivity when limit <= 0.
	DefaultActivityLimit int `json:"default_activity_limit,omitempty"`

	// MaxActivityLimit caps RecentActivity.
	MaxActivityLimit int `json:"max_activity_limit,omitempty"`

	// AuditAppendRetries bounds retries after losing an audit sequence race.
	AuditAppendRetries int `json:"audit_append_retries,omitempty"`

	// AuditKey is the 32-byte key for the audit hash chain. Nil uses the
	// built-in domain key.
	AuditKey []byte `json:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL:             5 * time.Second,
		DefaultActivityLimit: 50,
		MaxActivityLimit:     1000,
		AuditAppendRetries:   5,
	}
}

func (c Config) activityLimit(limit int) int {
	switch {
	case limit <= 0:
		return c.DefaultActivityLimit
	case c.MaxActivityLimit > 0 && limit > c.MaxActivityLimit:
		return c.MaxActivityLimit
	default:
		return limit
	}
}
