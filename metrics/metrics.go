// Package metrics exposes Prometheus counters for grants, revocations,
// audit writes and authorization decisions. It is a plugin: register it
// with tenure.WithPlugin.
package metrics

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xraph/tenure/activity"
	"github.com/xraph/tenure/grant"
	"github.com/xraph/tenure/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin           = (*Plugin)(nil)
	_ plugin.GrantCreated     = (*Plugin)(nil)
	_ plugin.GrantRevoked     = (*Plugin)(nil)
	_ plugin.ActivityRecorded = (*Plugin)(nil)
	_ plugin.AuditWriteFailed = (*Plugin)(nil)
	_ plugin.AfterAuthorize   = (*Plugin)(nil)
)

// Plugin counts lifecycle events.
type Plugin struct {
	grants        *prometheus.CounterVec
	revocations   *prometheus.CounterVec
	activity      *prometheus.CounterVec
	auditFailures *prometheus.CounterVec
	decisions     *prometheus.CounterVec
}

// New registers the tenure_* collectors with reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Plugin {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Plugin{
		grants: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tenure_grants_total",
			Help: "Role grants created, by tier.",
		}, []string{"tier"}),
		revocations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tenure_revocations_total",
			Help: "Role grants revoked, by tier.",
		}, []string{"tier"}),
		activity: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tenure_activity_entries_total",
			Help: "Audit entries appended, by action.",
		}, []string{"action"}),
		auditFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tenure_audit_write_failures_total",
			Help: "Privileged actions that committed without an audit entry.",
		}, []string{"action"}),
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tenure_authorize_decisions_total",
			Help: "Authorization decisions, by required tier and outcome.",
		}, []string{"required", "allowed"}),
	}
}

func (p *Plugin) Name() string { return "metrics" }

func (p *Plugin) OnGrantCreated(_ context.Context, g *grant.Grant) error {
	p.grants.WithLabelValues(g.Tier.String()).Inc()
	return nil
}

func (p *Plugin) OnGrantRevoked(_ context.Context, g *grant.Grant) error {
	p.revocations.WithLabelValues(g.Tier.String()).Inc()
	return nil
}

func (p *Plugin) OnActivityRecorded(_ context.Context, e *activity.Entry) error {
	p.activity.WithLabelValues(e.Action).Inc()
	return nil
}

func (p *Plugin) OnAuditWriteFailed(_ context.Context, action, _ string, _ error) error {
	p.auditFailures.WithLabelValues(action).Inc()
	return nil
}

func (p *Plugin) OnAfterAuthorize(_ context.Context, ev *plugin.AuthorizeEvent) error {
	p.decisions.WithLabelValues(ev.Required.String(), strconv.FormatBool(ev.Allowed)).Inc()
	return nil
}
