package tenure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/tenure/activity"
	"github.com/xraph/tenure/audit"
	"github.com/xraph/tenure/grant"
	"github.com/xraph/tenure/id"
)

// SystemActor is the actor recorded for seeded grants.
const SystemActor = "system"

// Grant runs the grant workflow: validate, authorize the actor, create the
// grant, then record it. On ErrAuditWrite the returned grant is non-nil
// because the ledger change already committed.
func (e *Engine) Grant(ctx context.Context, req *GrantRequest) (*grant.Grant, error) {
	if req.ActorID == "" {
		return nil, fmt.Errorf("%w: actor is required", ErrInvalidRequest)
	}
	now := e.now()
	g := &grant.Grant{
		ID:          id.NewGrantID(),
		SubjectID:   req.SubjectID,
		Tier:        req.Tier,
		GrantedBy:   req.ActorID,
		GrantedAt:   now,
		ExpiresAt:   req.ExpiresAt,
		Active:      true,
		Permissions: req.Permissions,
	}
	if err := e.validateGrant(g); err != nil {
		return nil, err
	}
	if err := e.requireIdentity(ctx, req.SubjectID); err != nil {
		return nil, err
	}

	actorTier, err := e.EffectiveTierAt(ctx, req.ActorID, now)
	if err != nil {
		return nil, err
	}
	if need := requiredToGrant(req.Tier); !actorTier.Satisfies(need) {
		return nil, fmt.Errorf("%w: granting %s requires %s, %q holds %s",
			ErrForbidden, req.Tier, need, req.ActorID, actorTier)
	}

	return e.createGrant(ctx, g, req.ActorID)
}

// Seed creates a grant on behalf of the system, bypassing the grant
// policy. It bootstraps the first SuperAdmin. GrantedBy stays empty.
func (e *Engine) Seed(ctx context.Context, subjectID string, tier Tier) (*grant.Grant, error) {
	g := &grant.Grant{
		ID:        id.NewGrantID(),
		SubjectID: subjectID,
		Tier:      tier,
		GrantedAt: e.now(),
		Active:    true,
	}
	if err := e.validateGrant(g); err != nil {
		return nil, err
	}
	return e.createGrant(ctx, g, SystemActor)
}

func (e *Engine) createGrant(ctx context.Context, g *grant.Grant, actorID string) (*grant.Grant, error) {
	if err := e.store.CreateGrant(ctx, g); err != nil {
		return nil, e.storeError(err)
	}
	e.invalidate(ctx, g.SubjectID)

	e.logger.Info("role granted",
		slog.String("grant_id", g.ID.String()),
		slog.String("subject_id", g.SubjectID),
		slog.String("tier", g.Tier.String()),
		slog.String("actor_id", actorID),
	)
	e.plugins.EmitGrantCreated(ctx, g)

	details := map[string]any{
		"subject": g.SubjectID,
		"tier":    int(g.Tier),
	}
	if g.ExpiresAt != nil {
		details["expires_at"] = *g.ExpiresAt
	} else {
		details["expires_at"] = nil
	}
	if err := e.audit(ctx, actorID, activity.ActionGrantRole, g.ID.String(), details); err != nil {
		return g, err
	}
	return g, nil
}

// Revoke runs the revoke workflow. Revoking twice returns ErrAlreadyRevoked
// and writes no second audit entry.
func (e *Engine) Revoke(ctx context.Context, req *RevokeRequest) (*grant.Grant, error) {
	if req.ActorID == "" {
		return nil, fmt.Errorf("%w: actor is required", ErrInvalidRequest)
	}
	now := e.now()

	existing, err := e.store.GetGrant(ctx, req.GrantID)
	if err != nil {
		return nil, e.storeError(err)
	}

	actorTier, err := e.EffectiveTierAt(ctx, req.ActorID, now)
	if err != nil {
		return nil, err
	}
	if need := requiredToRevoke(existing.Tier); !actorTier.Satisfies(need) {
		return nil, fmt.Errorf("%w: revoking %s requires %s, %q holds %s",
			ErrForbidden, existing.Tier, need, req.ActorID, actorTier)
	}

	if err := e.store.RevokeGrant(ctx, req.GrantID, req.ActorID, now); err != nil {
		return nil, e.storeError(err)
	}
	g := revokedCopy(existing, req.ActorID, now)
	e.invalidate(ctx, g.SubjectID)

	e.logger.Info("role revoked",
		slog.String("grant_id", g.ID.String()),
		slog.String("subject_id", g.SubjectID),
		slog.String("tier", g.Tier.String()),
		slog.String("actor_id", req.ActorID),
	)
	e.plugins.EmitGrantRevoked(ctx, g)

	details := map[string]any{
		"subject": g.SubjectID,
		"tier":    int(g.Tier),
	}
	if err := e.audit(ctx, req.ActorID, activity.ActionRevokeRole, g.ID.String(), details); err != nil {
		return g, err
	}
	return g, nil
}

// revokedCopy is the post-revoke state of g. The conditional write only
// succeeds from active=true, so the committed row is g with the revoke
// fields set; no second read is needed.
func revokedCopy(g *grant.Grant, revokedBy string, at time.Time) *grant.Grant {
	out := *g
	out.Active = false
	revokedAt := at
	out.RevokedAt = &revokedAt
	out.RevokedBy = revokedBy
	return &out
}

// Record appends a privileged action performed elsewhere in the host
// application to the audit trail.
func (e *Engine) Record(ctx context.Context, req *RecordRequest) (*activity.Entry, error) {
	if req.ActorID == "" || req.Action == "" {
		return nil, fmt.Errorf("%w: actor and action are required", ErrInvalidRequest)
	}
	entry, err := e.recorder.Record(ctx, audit.Event{
		ActorID:      req.ActorID,
		Action:       req.Action,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Details:      req.Details,
		RequestID:    RequestIDFromContext(ctx),
	})
	if err != nil {
		e.auditFailed(ctx, req.Action, req.ResourceID, err)
		return nil, fmt.Errorf("%w: %w", ErrAuditWrite, err)
	}
	e.plugins.EmitActivityRecorded(ctx, entry)
	return entry, nil
}

func (e *Engine) audit(ctx context.Context, actorID, action, grantID string, details map[string]any) error {
	entry, err := e.recorder.Record(ctx, audit.Event{
		ActorID:      actorID,
		Action:       action,
		ResourceType: activity.ResourceRoleGrant,
		ResourceID:   grantID,
		Details:      details,
		RequestID:    RequestIDFromContext(ctx),
	})
	if err != nil {
		e.auditFailed(ctx, action, grantID, err)
		return fmt.Errorf("%w: %s %s committed without audit entry: %w", ErrAuditWrite, action, grantID, err)
	}
	e.plugins.EmitActivityRecorded(ctx, entry)
	return nil
}

func (e *Engine) auditFailed(ctx context.Context, action, resourceID string, err error) {
	e.logger.Error("audit write failed, reconcile manually",
		slog.String("action", action),
		slog.String("resource_id", resourceID),
		slog.String("request_id", RequestIDFromContext(ctx)),
		slog.String("error", err.Error()),
	)
	e.plugins.EmitAuditWriteFailed(ctx, action, resourceID, err)
}

func (e *Engine) validateGrant(g *grant.Grant) error {
	if err := g.Validate(); err != nil {
		if errors.Is(err, grant.ErrInvalidTier) || errors.Is(err, grant.ErrInvalidExpiry) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

func (e *Engine) requireIdentity(ctx context.Context, identityID string) error {
	if _, err := e.directory.Get(ctx, identityID); err != nil {
		return e.directoryError(identityID, err)
	}
	return nil
}
