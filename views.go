package tenure

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/tenure/activity"
	"github.com/xraph/tenure/audit"
	"github.com/xraph/tenure/directory"
	"github.com/xraph/tenure/grant"
	"github.com/xraph/tenure/id"
)

// CurrentGrants returns active, unexpired grants joined with the subject's
// identity, oldest first.
func (e *Engine) CurrentGrants(ctx context.Context) ([]*GrantView, error) {
	now := e.now()
	grants, err := e.store.ListActiveGrants(ctx)
	if err != nil {
		return nil, e.storeError(err)
	}
	inForce := grants[:0]
	for _, g := range grants {
		if g.InForce(now) {
			inForce = append(inForce, g)
		}
	}
	return e.joinGrants(ctx, inForce)
}

// ActiveGrants returns every grant flagged active, including expired ones,
// so callers can tell "active but expired" apart from "revoked".
func (e *Engine) ActiveGrants(ctx context.Context) ([]*GrantView, error) {
	grants, err := e.store.ListActiveGrants(ctx)
	if err != nil {
		return nil, e.storeError(err)
	}
	return e.joinGrants(ctx, grants)
}

// SubjectGrants returns the full grant history for a subject: active,
// expired and revoked.
func (e *Engine) SubjectGrants(ctx context.Context, subjectID string) ([]*grant.Grant, error) {
	grants, err := e.store.ListGrants(ctx, &grant.ListFilter{SubjectID: subjectID})
	if err != nil {
		return nil, e.storeError(err)
	}
	return grants, nil
}

// GetGrant returns one grant.
func (e *Engine) GetGrant(ctx context.Context, grantID id.GrantID) (*grant.Grant, error) {
	g, err := e.store.GetGrant(ctx, grantID)
	if err != nil {
		return nil, e.storeError(err)
	}
	return g, nil
}

// RecentActivity returns the newest audit entries first, each joined with
// the actor's identity. limit <= 0 uses Config.DefaultActivityLimit.
func (e *Engine) RecentActivity(ctx context.Context, limit int) ([]*ActivityView, error) {
	entries, err := e.store.ListEntries(ctx, &activity.QueryFilter{
		Descending: true,
		Limit:      e.config.activityLimit(limit),
	})
	if err != nil {
		return nil, e.storeError(err)
	}
	idents, err := e.identities(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]*ActivityView, 0, len(entries))
	for _, en := range entries {
		views = append(views, &ActivityView{Entry: en, Actor: lookup(idents, en.ActorID)})
	}
	return views, nil
}

// VerifyAuditTrail walks the audit hash chain. A broken chain returns an
// error matching ErrAuditChainBroken.
func (e *Engine) VerifyAuditTrail(ctx context.Context) (*audit.Report, error) {
	rep, err := e.recorder.Verify(ctx)
	if err != nil {
		if errors.Is(err, audit.ErrChainBroken) {
			e.logger.Error("audit chain verification failed", "error", err)
			return nil, err
		}
		return nil, e.storeError(err)
	}
	return rep, nil
}

func (e *Engine) joinGrants(ctx context.Context, grants []*grant.Grant) ([]*GrantView, error) {
	idents, err := e.identities(ctx)
	if err != nil {
		return nil, err
	}
	now := e.now()
	views := make([]*GrantView, 0, len(grants))
	for _, g := range grants {
		views = append(views, &GrantView{
			Grant:   g,
			Subject: lookup(idents, g.SubjectID),
			State:   g.State(now),
		})
	}
	return views, nil
}

func (e *Engine) identities(ctx context.Context) (map[string]directory.Identity, error) {
	list, err := e.directory.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list identities: %w", ErrPersistence, err)
	}
	m := make(map[string]directory.Identity, len(list))
	for _, i := range list {
		m[i.ID] = i
	}
	return m, nil
}

// lookup falls back to a bare identity so departed users still render.
func lookup(idents map[string]directory.Identity, identityID string) directory.Identity {
	if i, ok := idents[identityID]; ok {
		return i
	}
	return directory.Identity{ID: identityID}
}

func (e *Engine) directoryError(identityID string, err error) error {
	if errors.Is(err, directory.ErrNotFound) {
		return fmt.Errorf("%w: %q", ErrIdentityNotFound, identityID)
	}
	return fmt.Errorf("%w: get identity %q: %w", ErrPersistence, identityID, err)
}
