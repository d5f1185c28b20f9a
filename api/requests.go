package api

import (
	"time"

	"github.com/xraph/tenure"
)

// ──────────────────────────────────────────────────
// Authorization requests
// ──────────────────────────────────────────────────

// AuthorizeRequest asks whether a subject meets a required tier.
type AuthorizeRequest struct {
	SubjectID    string      `json:"subject_id" description:"Subject identifier"`
	RequiredTier tenure.Tier `json:"required_tier" description:"Required tier: a name (super_admin, admin, moderator) or a number 1..3"`
}

// GetTierRequest addresses a subject's effective tier.
type GetTierRequest struct {
	SubjectID string `path:"subjectId" description:"Subject identifier"`
}

// ──────────────────────────────────────────────────
// Grant requests
// ──────────────────────────────────────────────────

// CreateGrantRequest is the body for granting a tier.
type CreateGrantRequest struct {
	SubjectID   string         `json:"subject_id" description:"Subject receiving the tier"`
	Tier        tenure.Tier    `json:"tier" description:"Tier to grant: a name (super_admin, admin, moderator) or a number 1..3"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty" description:"Optional expiry (RFC 3339)"`
	Permissions map[string]any `json:"permissions,omitempty" description:"Optional fine-grained permissions"`
}

// RevokeGrantRequest addresses a grant to revoke.
type RevokeGrantRequest struct {
	GrantID string `path:"grantId" description:"Grant ID"`
}

// ListGrantsRequest has no parameters.
type ListGrantsRequest struct{}

// SubjectGrantsRequest addresses a subject's grant history.
type SubjectGrantsRequest struct {
	SubjectID string `path:"subjectId" description:"Subject identifier"`
}

// ──────────────────────────────────────────────────
// Activity requests
// ──────────────────────────────────────────────────

// ListActivityRequest pages the activity log, newest first.
type ListActivityRequest struct {
	Limit int `query:"limit" description:"Maximum results (default: 50, max: 1000)"`
}

// VerifyActivityRequest has no parameters.
type VerifyActivityRequest struct{}
