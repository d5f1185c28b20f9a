// Package tenure provides tier-based administrative authorization with
// time-bounded grants and a tamper-evident activity trail.
//
// A subject holds zero or more grants, each conferring one of three ordered
// tiers until it expires or is revoked. The Engine derives the effective
// tier on every read, runs the grant and revoke workflows, and appends every
// privileged action to a hash-chained audit log.
//
//	eng, err := tenure.NewEngine(
//	    tenure.WithStore(memory.New()),
//	    tenure.WithDirectory(dir),
//	)
//	g, err := eng.Grant(ctx, &tenure.GrantRequest{
//	    ActorID:   "root",
//	    SubjectID: "u1",
//	    Tier:      tenure.TierAdmin,
//	})
//	ok, err := eng.Authorize(ctx, "u1", tenure.TierModerator)
package tenure

import (
	"time"

	"github.com/xraph/tenure/activity"
	"github.com/xraph/tenure/directory"
	"github.com/xraph/tenure/grant"
	"github.com/xraph/tenure/id"
)

// Tier is an ordered privilege level. Lower values carry more privilege.
type Tier = grant.Tier

const (
	TierNone       = grant.TierNone
	TierSuperAdmin = grant.TierSuperAdmin
	TierAdmin      = grant.TierAdmin
	TierModerator  = grant.TierModerator
)

// ParseTier parses a tier name ("admin") or number ("2").
func ParseTier(s string) (Tier, error) { return grant.ParseTier(s) }

// GrantRequest asks for a new grant.
type GrantRequest struct {
	// ActorID is the identity performing the grant. Its effective tier is
	// checked against the grant policy.
	ActorID string `json:"actor_id"`

	SubjectID   string         `json:"subject_id"`
	Tier        Tier           `json:"tier"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
	Permissions map[string]any `json:"permissions,omitempty"`
}

// RevokeRequest asks for a grant to be revoked.
type RevokeRequest struct {
	ActorID string     `json:"actor_id"`
	GrantID id.GrantID `json:"grant_id"`
}

// RecordRequest describes a privileged action performed outside the grant
// workflows.
type RecordRequest struct {
	ActorID      string         `json:"actor_id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

// GrantView is a grant joined with the subject's identity.
type GrantView struct {
	Grant   *grant.Grant       `json:"grant"`
	Subject directory.Identity `json:"subject"`
	State   grant.State        `json:"state"`
}

// ActivityView is an audit entry joined with the actor's identity.
type ActivityView struct {
	Entry *activity.Entry    `json:"entry"`
	Actor directory.Identity `json:"actor"`
}
