package tenure

import (
	"context"
	"time"
)

// TierDecision is a cached effective tier. It must not be served at or
// after ValidUntil.
type TierDecision struct {
	Tier       Tier
	ValidUntil time.Time
}

// Cache stores effective tiers per subject.
type Cache interface {
	// Get returns a cached decision, if available.
	Get(ctx context.Context, subjectID string) (TierDecision, bool)

	// Set stores a decision.
	Set(ctx context.Context, subjectID string, d TierDecision)

	// InvalidateSubject drops the cached decision for a subject.
	InvalidateSubject(ctx context.Context, subjectID string)

	// InvalidateAll drops every cached decision.
	InvalidateAll(ctx context.Context)
}
