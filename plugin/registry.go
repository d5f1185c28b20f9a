package plugin

import (
	"context"
	"log/slog"

	"github.com/xraph/tenure/activity"
	"github.com/xraph/tenure/grant"
)

// Named entry types pair a hook with the plugin name for logging.

type afterAuthorizeEntry struct {
	name string
	hook AfterAuthorize
}
type grantCreatedEntry struct {
	name string
	hook GrantCreated
}
type grantRevokedEntry struct {
	name string
	hook GrantRevoked
}
type activityRecordedEntry struct {
	name string
	hook ActivityRecorded
}
type auditWriteFailedEntry struct {
	name string
	hook AuditWriteFailed
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	afterAuthorize   []afterAuthorizeEntry
	grantCreated     []grantCreatedEntry
	grantRevoked     []grantRevokedEntry
	activityRecorded []activityRecordedEntry
	auditWriteFailed []auditWriteFailedEntry
	shutdown         []shutdownEntry
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(AfterAuthorize); ok {
		r.afterAuthorize = append(r.afterAuthorize, afterAuthorizeEntry{name, h})
	}
	if h, ok := p.(GrantCreated); ok {
		r.grantCreated = append(r.grantCreated, grantCreatedEntry{name, h})
	}
	if h, ok := p.(GrantRevoked); ok {
		r.grantRevoked = append(r.grantRevoked, grantRevokedEntry{name, h})
	}
	if h, ok := p.(ActivityRecorded); ok {
		r.activityRecorded = append(r.activityRecorded, activityRecordedEntry{name, h})
	}
	if h, ok := p.(AuditWriteFailed); ok {
		r.auditWriteFailed = append(r.auditWriteFailed, auditWriteFailedEntry{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// EmitAfterAuthorize notifies all plugins that implement AfterAuthorize.
func (r *Registry) EmitAfterAuthorize(ctx context.Context, ev *AuthorizeEvent) {
	for _, e := range r.afterAuthorize {
		if err := e.hook.OnAfterAuthorize(ctx, ev); err != nil {
			r.logHookError("OnAfterAuthorize", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Grant event emitters
// ──────────────────────────────────────────────────

// EmitGrantCreated notifies all plugins that implement GrantCreated.
func (r *Registry) EmitGrantCreated(ctx context.Context, g *grant.Grant) {
	for _, e := range r.grantCreated {
		if err := e.hook.OnGrantCreated(ctx, g); err != nil {
			r.logHookError("OnGrantCreated", e.name, err)
		}
	}
}

// EmitGrantRevoked notifies all plugins that implement GrantRevoked.
func (r *Registry) EmitGrantRevoked(ctx context.Context, g *grant.Grant) {
	for _, e := range r.grantRevoked {
		if err := e.hook.OnGrantRevoked(ctx, g); err != nil {
			r.logHookError("OnGrantRevoked", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Audit event emitters
// ──────────────────────────────────────────────────

// EmitActivityRecorded notifies all plugins that implement ActivityRecorded.
func (r *Registry) EmitActivityRecorded(ctx context.Context, entry *activity.Entry) {
	for _, e := range r.activityRecorded {
		if err := e.hook.OnActivityRecorded(ctx, entry); err != nil {
			r.logHookError("OnActivityRecorded", e.name, err)
		}
	}
}

// EmitAuditWriteFailed notifies all plugins that implement AuditWriteFailed.
func (r *Registry) EmitAuditWriteFailed(ctx context.Context, action, resourceID string, cause error) {
	for _, e := range r.auditWriteFailed {
		if err := e.hook.OnAuditWriteFailed(ctx, action, resourceID, cause); err != nil {
			r.logHookError("OnAuditWriteFailed", e.name, err)
		}
	}
}

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Hook errors never propagate to the caller.
func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}
