// Package grant defines the role grant ledger: the Grant entity, tiers and
// the persistence contract that enforces one active grant per subject and
// tier.
package grant

import (
	"errors"
	"time"

	"github.com/xraph/tenure/id"
)

var (
	// ErrNotFound is returned when a grant ID does not exist.
	ErrNotFound = errors.New("grant: not found")

	// ErrDuplicateActive is returned when the subject already holds an
	// active grant for the tier.
	ErrDuplicateActive = errors.New("grant: active grant already exists for subject and tier")

	// ErrAlreadyRevoked is returned when revoking a grant that is no
	// longer active.
	ErrAlreadyRevoked = errors.New("grant: already revoked")

	// ErrInvalidTier is returned for tiers outside 1..3.
	ErrInvalidTier = errors.New("grant: invalid tier")

	// ErrInvalidExpiry is returned when ExpiresAt is set to the zero time.
	ErrInvalidExpiry = errors.New("grant: expiry is the zero time")
)

// Grant asserts that a subject holds a tier, optionally until ExpiresAt.
// A revoked grant keeps its row with Active=false.
type Grant struct {
	ID          id.GrantID     `json:"id" db:"id"`
	SubjectID   string         `json:"subject_id" db:"subject_id"`
	Tier        Tier           `json:"tier" db:"tier"`
	GrantedBy   string         `json:"granted_by,omitempty" db:"granted_by"`
	GrantedAt   time.Time      `json:"granted_at" db:"granted_at"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty" db:"expires_at"`
	Active      bool           `json:"active" db:"active"`
	Permissions map[string]any `json:"permissions,omitempty" db:"permissions"`
	RevokedAt   *time.Time     `json:"revoked_at,omitempty" db:"revoked_at"`
	RevokedBy   string         `json:"revoked_by,omitempty" db:"revoked_by"`
}

// Expired reports whether the grant's expiry is at or before at.
func (g *Grant) Expired(at time.Time) bool {
	return g.ExpiresAt != nil && !g.ExpiresAt.After(at)
}

// InForce reports whether the grant confers its tier at the given instant.
func (g *Grant) InForce(at time.Time) bool {
	return g.Active && !g.Expired(at)
}

// State names the lifecycle state of the grant at the given instant.
func (g *Grant) State(at time.Time) State {
	switch {
	case !g.Active:
		return StateRevoked
	case g.Expired(at):
		return StateExpired
	default:
		return StateActive
	}
}

// Validate checks the fields a new grant must satisfy before insertion.
// An expiry at or before GrantedAt is accepted: the grant is recorded
// active and is simply never in force.
func (g *Grant) Validate() error {
	if !g.Tier.Valid() {
		return ErrInvalidTier
	}
	if g.SubjectID == "" {
		return errors.New("grant: subject is required")
	}
	if g.ExpiresAt != nil && g.ExpiresAt.IsZero() {
		return ErrInvalidExpiry
	}
	return nil
}

// State is the derived lifecycle state of a grant.
type State string

const (
	// StateActive means active and not expired.
	StateActive State = "active"

	// StateExpired means still flagged active but past its expiry.
	StateExpired State = "expired"

	// StateRevoked is terminal.
	StateRevoked State = "revoked"
)

// ListFilter narrows ListGrants results. Zero fields match everything.
type ListFilter struct {
	SubjectID  string `json:"subject_id,omitempty"`
	Tier       Tier   `json:"tier,omitempty"`
	ActiveOnly bool   `json:"active_only,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// EffectiveTier returns the highest-privilege tier among grants in force
// at the given instant, and the earliest expiry among them (nil if none of
// the contributing grants expire). It returns TierNone when nothing
// qualifies.
func EffectiveTier(grants []*Grant, at time.Time) (Tier, *time.Time) {
	best := TierNone
	var until *time.Time
	for _, g := range grants {
		if !g.InForce(at) {
			continue
		}
		if g.Tier.Higher(best) {
			best = g.Tier
		}
		if g.ExpiresAt != nil && (until == nil || g.ExpiresAt.Before(*until)) {
			t := *g.ExpiresAt
			until = &t
		}
	}
	return best, until
}
