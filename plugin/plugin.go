// Package plugin defines the plugin system for Tenure.
// Plugins are notified of lifecycle events (grant created, grant revoked,
// authorization decided, etc.) and can react with logging, metrics or
// notifications.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/tenure/activity"
	"github.com/xraph/tenure/grant"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// AuthorizeEvent describes one authorization decision.
type AuthorizeEvent struct {
	SubjectID string
	Required  grant.Tier
	Effective grant.Tier
	Allowed   bool
	At        time.Time
	Cached    bool
}

// ──────────────────────────────────────────────────
// Authorization hooks
// ──────────────────────────────────────────────────

// AfterAuthorize is called after every authorization decision.
type AfterAuthorize interface {
	OnAfterAuthorize(ctx context.Context, ev *AuthorizeEvent) error
}

// ──────────────────────────────────────────────────
// Grant lifecycle hooks
// ──────────────────────────────────────────────────

// GrantCreated is called after a grant is persisted.
type GrantCreated interface {
	OnGrantCreated(ctx context.Context, g *grant.Grant) error
}

// GrantRevoked is called after a grant is revoked.
type GrantRevoked interface {
	OnGrantRevoked(ctx context.Context, g *grant.Grant) error
}

// ──────────────────────────────────────────────────
// Audit hooks
// ──────────────────────────────────────────────────

// ActivityRecorded is called after an entry is appended to the audit trail.
type ActivityRecorded interface {
	OnActivityRecorded(ctx context.Context, e *activity.Entry) error
}

// AuditWriteFailed is called when a state change committed but its audit
// entry could not be written.
type AuditWriteFailed interface {
	OnAuditWriteFailed(ctx context.Context, action, resourceID string, err error) error
}

// ──────────────────────────────────────────────────
// Shutdown hook
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
