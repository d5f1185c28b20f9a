package tenure

import (
	"errors"

	"github.com/xraph/tenure/audit"
	"github.com/xraph/tenure/grant"
)

var (
	// ErrNotFound matches every not-found condition below.
	ErrNotFound = errors.New("tenure: not found")

	// ErrIdentityNotFound is returned when a subject is unknown to the directory.
	ErrIdentityNotFound error = &notFoundError{what: "identity"}

	// ErrGrantNotFound is returned when a grant ID does not exist.
	ErrGrantNotFound error = &notFoundError{what: "grant"}

	// ErrDuplicateActiveGrant is returned when the subject already holds an
	// active grant for the requested tier.
	ErrDuplicateActiveGrant = errors.New("tenure: active grant already exists for subject and tier")

	// ErrAlreadyRevoked is returned when revoking a grant that is no longer active.
	ErrAlreadyRevoked = errors.New("tenure: grant already revoked")

	// ErrForbidden is returned when the actor's tier is insufficient.
	ErrForbidden = errors.New("tenure: forbidden")

	// ErrPersistence is returned when the store is unreachable or rejects a write.
	ErrPersistence = errors.New("tenure: persistence failure")

	// ErrAuditWrite is returned when a ledger change committed but its
	// audit entry could not be written.
	ErrAuditWrite = errors.New("tenure: audit write failed")

	// ErrInvalidTier is returned for tiers outside SuperAdmin..Moderator.
	ErrInvalidTier = grant.ErrInvalidTier

	// ErrInvalidExpiry is returned when ExpiresAt is set but zero.
	ErrInvalidExpiry = grant.ErrInvalidExpiry

	// ErrAuditChainBroken is returned when audit verification fails.
	ErrAuditChainBroken = audit.ErrChainBroken

	// ErrInvalidRequest is returned for requests missing required fields.
	ErrInvalidRequest = errors.New("tenure: invalid request")
)

type notFoundError struct{ what string }

func (e *notFoundError) Error() string { return "tenure: " + e.what + " not found" }

func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }
