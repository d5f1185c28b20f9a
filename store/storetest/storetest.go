// Package storetest holds the behaviour every composite store must share.
// Backend packages call Run from their tests with a factory that returns
// an empty, migrated store.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/tenure/activity"
	"github.com/xraph/tenure/grant"
	"github.com/xraph/tenure/id"
	"github.com/xraph/tenure/store"
)

// Factory returns an empty store ready for use.
type Factory func(t *testing.T) store.Store

// base is whole seconds so every backend round-trips it exactly.
var base = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

// Run exercises the grant ledger and activity log contracts.
func Run(t *testing.T, newStore Factory) {
	t.Run("GrantLedger", func(t *testing.T) { testGrantLedger(t, newStore(t)) })
	t.Run("ExpiredGrantStaysActive", func(t *testing.T) { testExpiredGrantStaysActive(t, newStore(t)) })
	t.Run("ListGrants", func(t *testing.T) { testListGrants(t, newStore(t)) })
	t.Run("ActivityLog", func(t *testing.T) { testActivityLog(t, newStore(t)) })
	t.Run("ActivityFilters", func(t *testing.T) { testActivityFilters(t, newStore(t)) })
}

func newGrant(subject string, tier grant.Tier, at time.Time) *grant.Grant {
	return &grant.Grant{
		ID:        id.NewGrantID(),
		SubjectID: subject,
		Tier:      tier,
		GrantedBy: "root",
		GrantedAt: at,
		Active:    true,
	}
}

func testGrantLedger(t *testing.T, s store.Store) {
	ctx := context.Background()

	exp := base.Add(24 * time.Hour)
	g := newGrant("u1", grant.TierAdmin, base)
	g.ExpiresAt = &exp
	g.Permissions = map[string]any{"scope": "events"}
	if err := s.CreateGrant(ctx, g); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetGrant(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != g.ID || got.SubjectID != "u1" || got.Tier != grant.TierAdmin || got.GrantedBy != "root" || !got.Active {
		t.Fatalf("unexpected grant: %+v", got)
	}
	if !got.GrantedAt.Equal(base) || got.ExpiresAt == nil || !got.ExpiresAt.Equal(exp) {
		t.Fatalf("timestamps did not round-trip: granted=%v expires=%v", got.GrantedAt, got.ExpiresAt)
	}
	if got.Permissions["scope"] != "events" {
		t.Fatalf("permissions did not round-trip: %v", got.Permissions)
	}
	if got.RevokedAt != nil {
		t.Fatalf("new grant must not carry a revoke time: %v", got.RevokedAt)
	}

	if err := s.CreateGrant(ctx, newGrant("u1", grant.TierAdmin, base.Add(time.Second))); !errors.Is(err, grant.ErrDuplicateActive) {
		t.Fatalf("expected ErrDuplicateActive, got %v", err)
	}
	if err := s.CreateGrant(ctx, newGrant("u1", grant.TierModerator, base)); err != nil {
		t.Fatalf("another tier for the same subject: %v", err)
	}
	if err := s.CreateGrant(ctx, newGrant("u2", grant.TierAdmin, base)); err != nil {
		t.Fatalf("same tier for another subject: %v", err)
	}

	revokedAt := base.Add(time.Hour)
	if err := s.RevokeGrant(ctx, g.ID, "s1", revokedAt); err != nil {
		t.Fatal(err)
	}
	if err := s.RevokeGrant(ctx, g.ID, "s1", revokedAt.Add(time.Second)); !errors.Is(err, grant.ErrAlreadyRevoked) {
		t.Fatalf("expected ErrAlreadyRevoked, got %v", err)
	}
	if err := s.RevokeGrant(ctx, id.NewGrantID(), "s1", revokedAt); !errors.Is(err, grant.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	got, err = s.GetGrant(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Active || got.RevokedBy != "s1" || got.RevokedAt == nil || !got.RevokedAt.Equal(revokedAt) {
		t.Fatalf("unexpected revoked grant: %+v", got)
	}

	regrant := newGrant("u1", grant.TierAdmin, base.Add(2*time.Hour))
	if err := s.CreateGrant(ctx, regrant); err != nil {
		t.Fatalf("re-grant after revoke: %v", err)
	}

	active, err := s.ListGrantsForSubject(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 {
		t.Fatalf("expected moderator and re-granted admin, got %d grants", len(active))
	}
	for _, a := range active {
		if a.ID == g.ID {
			t.Fatal("revoked grant must not be listed as active")
		}
	}

	if _, err := s.GetGrant(ctx, id.NewGrantID()); !errors.Is(err, grant.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testExpiredGrantStaysActive(t *testing.T, s store.Store) {
	ctx := context.Background()

	past := base.Add(-time.Second)
	g := newGrant("u2", grant.TierModerator, base)
	g.ExpiresAt = &past
	if err := s.CreateGrant(ctx, g); err != nil {
		t.Fatalf("grant expiring before its grant time must be stored: %v", err)
	}

	active, err := s.ListActiveGrants(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != g.ID || !active[0].Active {
		t.Fatalf("expired grant must be listed as active: %+v", active)
	}
	if tier, _ := grant.EffectiveTier(active, base); tier != grant.TierNone {
		t.Fatalf("expired grant must not confer a tier, got %s", tier)
	}

	// The expired row still holds the slot.
	if err := s.CreateGrant(ctx, newGrant("u2", grant.TierModerator, base)); !errors.Is(err, grant.ErrDuplicateActive) {
		t.Fatalf("expected ErrDuplicateActive, got %v", err)
	}
}

func testListGrants(t *testing.T, s store.Store) {
	ctx := context.Background()

	third := newGrant("u1", grant.TierModerator, base.Add(2*time.Minute))
	first := newGrant("u2", grant.TierModerator, base)
	second := newGrant("u3", grant.TierAdmin, base.Add(time.Minute))
	for _, g := range []*grant.Grant{third, first, second} {
		if err := s.CreateGrant(ctx, g); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.RevokeGrant(ctx, first.ID, "root", base.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListGrants(ctx, &grant.ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != first.ID || all[1].ID != second.ID || all[2].ID != third.ID {
		t.Fatalf("expected grants ordered by grant time, got %d", len(all))
	}

	mods, err := s.ListGrants(ctx, &grant.ListFilter{Tier: grant.TierModerator, ActiveOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(mods) != 1 || mods[0].ID != third.ID {
		t.Fatalf("expected the active moderator grant only, got %d", len(mods))
	}

	page, err := s.ListGrants(ctx, &grant.ListFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].ID != second.ID {
		t.Fatalf("unexpected page: %d grants", len(page))
	}
}

func newEntry(seq int64, actor string, at time.Time) *activity.Entry {
	return &activity.Entry{
		ID:           id.NewActivityID(),
		Seq:          seq,
		ActorID:      actor,
		Action:       activity.ActionGrantRole,
		ResourceType: activity.ResourceRoleGrant,
		ResourceID:   "grant_x",
		Details:      map[string]any{"subject": "u1"},
		RequestID:    "req-1",
		PrevHash:     "prev",
		Hash:         "hash",
		CreatedAt:    at,
	}
}

func testActivityLog(t *testing.T, s store.Store) {
	ctx := context.Background()

	if _, err := s.LastEntry(ctx); !errors.Is(err, activity.ErrNotFound) {
		t.Fatalf("empty log: expected ErrNotFound, got %v", err)
	}

	var entries []*activity.Entry
	for i := int64(1); i <= 3; i++ {
		e := newEntry(i, "root", base.Add(time.Duration(i)*time.Second))
		if err := s.AppendEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
		entries = append(entries, e)
	}
	if err := s.AppendEntry(ctx, newEntry(2, "s1", base)); !errors.Is(err, activity.ErrSequenceConflict) {
		t.Fatalf("expected ErrSequenceConflict, got %v", err)
	}

	last, err := s.LastEntry(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last.Seq != 3 || last.ID != entries[2].ID {
		t.Fatalf("expected seq 3 as last entry, got %d", last.Seq)
	}

	got, err := s.GetEntry(ctx, entries[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ActorID != "root" || got.Details["subject"] != "u1" || got.RequestID != "req-1" ||
		got.PrevHash != "prev" || got.Hash != "hash" || !got.CreatedAt.Equal(entries[0].CreatedAt) {
		t.Fatalf("entry did not round-trip: %+v", got)
	}
	if _, err := s.GetEntry(ctx, id.NewActivityID()); !errors.Is(err, activity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	asc, err := s.ListEntries(ctx, &activity.QueryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	assertSeqs(t, asc, 1, 2, 3)

	desc, err := s.ListEntries(ctx, &activity.QueryFilter{Descending: true})
	if err != nil {
		t.Fatal(err)
	}
	assertSeqs(t, desc, 3, 2, 1)

	recent, err := s.ListEntries(ctx, &activity.QueryFilter{Descending: true, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	assertSeqs(t, recent, 3, 2)

	n, err := s.CountEntries(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("expected 3 entries, got %d", n)
	}
}

func testActivityFilters(t *testing.T, s store.Store) {
	ctx := context.Background()

	for i, actor := range []string{"root", "s1", "root", "s1"} {
		seq := int64(i + 1)
		if err := s.AppendEntry(ctx, newEntry(seq, actor, base.Add(time.Duration(seq)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	byActor, err := s.ListEntries(ctx, &activity.QueryFilter{ActorID: "s1"})
	if err != nil {
		t.Fatal(err)
	}
	assertSeqs(t, byActor, 2, 4)

	after := base.Add(2 * time.Minute)
	before := base.Add(3 * time.Minute)
	window, err := s.ListEntries(ctx, &activity.QueryFilter{After: &after, Before: &before})
	if err != nil {
		t.Fatal(err)
	}
	assertSeqs(t, window, 2, 3)

	tail, err := s.ListEntries(ctx, &activity.QueryFilter{AfterSeq: 2})
	if err != nil {
		t.Fatal(err)
	}
	assertSeqs(t, tail, 3, 4)

	n, err := s.CountEntries(ctx, &activity.QueryFilter{ActorID: "root"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 entries for root, got %d", n)
	}
}

func assertSeqs(t *testing.T, entries []*activity.Entry, want ...int64) {
	t.Helper()
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, e := range entries {
		if e.Seq != want[i] {
			t.Fatalf("entry %d: expected seq %d, got %d", i, want[i], e.Seq)
		}
	}
}
