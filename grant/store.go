package grant

import (
	"context"
	"time"

	"github.com/xraph/tenure/id"
)

// Store is the grant ledger.
//
// Implementations must make CreateGrant's uniqueness check atomic with the
// insert (unique index or equivalent) and RevokeGrant a compare-and-swap on
// the active flag. Check-then-insert in application code is not acceptable.
type Store interface {
	// CreateGrant inserts g. Returns ErrDuplicateActive when an active
	// grant already exists for (g.SubjectID, g.Tier).
	CreateGrant(ctx context.Context, g *Grant) error

	// GetGrant retrieves a grant by ID. Returns ErrNotFound.
	GetGrant(ctx context.Context, grantID id.GrantID) (*Grant, error)

	// RevokeGrant flips active from true to false in a single conditional
	// write. A nil error means the flip committed. Returns ErrNotFound or
	// ErrAlreadyRevoked; the row is read only to tell those two apart.
	RevokeGrant(ctx context.Context, grantID id.GrantID, revokedBy string, at time.Time) error

	// ListActiveGrants returns every grant with Active=true, including
	// those whose expiry has passed.
	ListActiveGrants(ctx context.Context) ([]*Grant, error)

	// ListGrantsForSubject returns the active grants of one subject,
	// including expired ones.
	ListGrantsForSubject(ctx context.Context, subjectID string) ([]*Grant, error)

	// ListGrants returns grants matching the filter ordered by GrantedAt.
	ListGrants(ctx context.Context, filter *ListFilter) ([]*Grant, error)
}
