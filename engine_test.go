package tenure

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/tenure/activity"
	"github.com/xraph/tenure/directory"
	"github.com/xraph/tenure/grant"
	"github.com/xraph/tenure/id"
	"github.com/xraph/tenure/plugin"
	"github.com/xraph/tenure/store"
	"github.com/xraph/tenure/store/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	eng   *Engine
	store store.Store
	clock *testClock
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	return newHarnessWithStore(t, memory.New(), opts...)
}

func newHarnessWithStore(t *testing.T, s store.Store, opts ...Option) *harness {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	dir := directory.NewStatic(
		directory.Identity{ID: "root", DisplayName: "Root"},
		directory.Identity{ID: "s1", DisplayName: "Sam", Email: "sam@example.edu"},
		directory.Identity{ID: "u1", DisplayName: "Uma"},
		directory.Identity{ID: "u2", DisplayName: "Uri"},
		directory.Identity{ID: "u3", Email: "u3@example.edu"},
	)
	base := []Option{WithStore(s), WithDirectory(dir), WithClock(clock.Now)}
	eng, err := NewEngine(append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Seed(context.Background(), "root", TierSuperAdmin); err != nil {
		t.Fatal(err)
	}
	return &harness{eng: eng, store: s, clock: clock}
}

func (h *harness) entries(t *testing.T) int64 {
	t.Helper()
	n, err := h.store.CountEntries(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func (h *harness) grant(t *testing.T, actor, subject string, tier Tier) *grant.Grant {
	t.Helper()
	g, err := h.eng.Grant(context.Background(), &GrantRequest{ActorID: actor, SubjectID: subject, Tier: tier})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestNewEngine_RequiresStoreAndDirectory(t *testing.T) {
	if _, err := NewEngine(WithDirectory(directory.NewStatic())); err == nil {
		t.Fatal("expected error when store is nil")
	}
	if _, err := NewEngine(WithStore(memory.New())); err == nil {
		t.Fatal("expected error when directory is nil")
	}
	cfg := DefaultConfig()
	cfg.AuditKey = []byte("short")
	if _, err := NewEngine(WithStore(memory.New()), WithDirectory(directory.NewStatic()), WithConfig(cfg)); err == nil {
		t.Fatal("expected error for a bad audit key")
	}
}

func TestScenarioGrantAdminThenDuplicate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.grant(t, "root", "s1", TierSuperAdmin)

	before := h.entries(t)
	g := h.grant(t, "s1", "u1", TierAdmin)
	if g.GrantedBy != "s1" || !g.Active || g.ExpiresAt != nil {
		t.Fatalf("unexpected grant: %+v", g)
	}

	tier, err := h.eng.EffectiveTier(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if tier != TierAdmin {
		t.Fatalf("expected admin, got %s", tier)
	}

	_, err = h.eng.Grant(ctx, &GrantRequest{ActorID: "s1", SubjectID: "u1", Tier: TierAdmin})
	if !errors.Is(err, ErrDuplicateActiveGrant) {
		t.Fatalf("expected ErrDuplicateActiveGrant, got %v", err)
	}
	if got := h.entries(t); got != before+1 {
		t.Fatalf("expected exactly one audit entry for one grant, got %d", got-before)
	}
}

func TestScenarioExpiredGrant(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	exp := h.clock.Now().Add(time.Second)
	g, err := h.eng.Grant(ctx, &GrantRequest{ActorID: "root", SubjectID: "u2", Tier: TierModerator, ExpiresAt: &exp})
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := h.eng.Authorize(ctx, "u2", TierModerator); !ok {
		t.Fatal("expected moderator access before expiry")
	}

	h.clock.Advance(2 * time.Second)

	tier, err := h.eng.EffectiveTier(ctx, "u2")
	if err != nil {
		t.Fatal(err)
	}
	if tier != TierNone {
		t.Fatalf("expired grant must not confer a tier, got %s", tier)
	}

	active, err := h.store.ListActiveGrants(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, a := range active {
		if a.ID == g.ID {
			found = a.Active
		}
	}
	if !found {
		t.Fatal("expired grant must still be listed as active")
	}

	views, err := h.eng.ActiveGrants(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range views {
		if v.Grant.ID == g.ID && v.State != grant.StateExpired {
			t.Fatalf("expected expired state, got %s", v.State)
		}
	}

	current, err := h.eng.CurrentGrants(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range current {
		if v.Grant.ID == g.ID {
			t.Fatal("expired grant must not appear in CurrentGrants")
		}
	}

	// Evaluating at an earlier instant still sees the grant.
	tier, err = h.eng.EffectiveTierAt(ctx, "u2", exp.Add(-time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if tier != TierModerator {
		t.Fatalf("expected moderator before expiry, got %s", tier)
	}

	// The expired row still occupies the (subject, tier) slot.
	_, err = h.eng.Grant(ctx, &GrantRequest{ActorID: "root", SubjectID: "u2", Tier: TierModerator})
	if !errors.Is(err, ErrDuplicateActiveGrant) {
		t.Fatalf("expected ErrDuplicateActiveGrant, got %v", err)
	}
}

func TestScenarioGrantAlreadyExpired(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	past := h.clock.Now().Add(-time.Second)
	before := h.entries(t)
	g, err := h.eng.Grant(ctx, &GrantRequest{ActorID: "root", SubjectID: "u2", Tier: TierModerator, ExpiresAt: &past})
	if err != nil {
		t.Fatalf("a grant expiring in the past must be accepted: %v", err)
	}
	if !g.Active || !g.ExpiresAt.Equal(past) {
		t.Fatalf("unexpected grant: %+v", g)
	}
	if got := h.entries(t); got != before+1 {
		t.Fatalf("expected one audit entry, got %d", got-before)
	}

	tier, err := h.eng.EffectiveTier(ctx, "u2")
	if err != nil {
		t.Fatal(err)
	}
	if tier != TierNone {
		t.Fatalf("expected none for an already expired grant, got %s", tier)
	}

	active, err := h.store.ListActiveGrants(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, a := range active {
		if a.ID == g.ID {
			found = a.Active
		}
	}
	if !found {
		t.Fatal("already expired grant must be listed as active")
	}
}

func TestScenarioAdminCannotGrantSuperAdmin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.grant(t, "root", "s1", TierAdmin)

	before := h.entries(t)
	_, err := h.eng.Grant(ctx, &GrantRequest{ActorID: "s1", SubjectID: "u3", Tier: TierSuperAdmin})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	_, err = h.eng.Grant(ctx, &GrantRequest{ActorID: "s1", SubjectID: "u3", Tier: TierAdmin})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for admin grant, got %v", err)
	}

	history, err := h.eng.SubjectGrants(ctx, "u3")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 0 {
		t.Fatalf("forbidden grant created %d rows", len(history))
	}
	if got := h.entries(t); got != before {
		t.Fatalf("forbidden grant wrote %d audit entries", got-before)
	}

	// Admins may grant moderators.
	h.grant(t, "s1", "u3", TierModerator)
}

func TestScenarioRevokeLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.eng.Revoke(ctx, &RevokeRequest{ActorID: "root", GrantID: id.NewGrantID()})
	if !errors.Is(err, ErrGrantNotFound) || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrGrantNotFound, got %v", err)
	}

	g := h.grant(t, "root", "u1", TierModerator)
	before := h.entries(t)

	revoked, err := h.eng.Revoke(ctx, &RevokeRequest{ActorID: "root", GrantID: g.ID})
	if err != nil {
		t.Fatal(err)
	}
	if revoked.Active || revoked.RevokedBy != "root" {
		t.Fatalf("unexpected revoked grant: %+v", revoked)
	}
	if revoked.ID != g.ID || revoked.GrantedBy != g.GrantedBy || !revoked.GrantedAt.Equal(g.GrantedAt) {
		t.Fatal("revoke must not change id, granted_by or granted_at")
	}
	afterFirst := h.entries(t)
	if afterFirst != before+1 {
		t.Fatalf("expected one audit entry for revoke, got %d", afterFirst-before)
	}

	_, err = h.eng.Revoke(ctx, &RevokeRequest{ActorID: "root", GrantID: g.ID})
	if !errors.Is(err, ErrAlreadyRevoked) {
		t.Fatalf("expected ErrAlreadyRevoked, got %v", err)
	}
	if got := h.entries(t); got != afterFirst {
		t.Fatalf("second revoke wrote %d audit entries", got-afterFirst)
	}

	stored, err := h.eng.GetGrant(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Active {
		t.Fatal("revoked grant became active again")
	}

	tier, _ := h.eng.EffectiveTier(ctx, "u1")
	if tier != TierNone {
		t.Fatalf("expected no tier after revoke, got %s", tier)
	}

	// Re-granting creates a new record.
	again := h.grant(t, "root", "u1", TierModerator)
	if again.ID == g.ID {
		t.Fatal("re-grant must create a new record")
	}
}

func TestRevokePolicy(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.grant(t, "root", "s1", TierAdmin)
	sa := h.grant(t, "root", "u1", TierSuperAdmin)
	adm := h.grant(t, "root", "u2", TierAdmin)
	mod := h.grant(t, "root", "u3", TierModerator)

	if _, err := h.eng.Revoke(ctx, &RevokeRequest{ActorID: "s1", GrantID: sa.ID}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("admin revoking super admin: expected ErrForbidden, got %v", err)
	}
	if _, err := h.eng.Revoke(ctx, &RevokeRequest{ActorID: "u3", GrantID: mod.ID}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("moderator revoking: expected ErrForbidden, got %v", err)
	}
	if _, err := h.eng.Revoke(ctx, &RevokeRequest{ActorID: "s1", GrantID: adm.ID}); err != nil {
		t.Fatalf("admin revoking admin: %v", err)
	}
	if _, err := h.eng.Revoke(ctx, &RevokeRequest{ActorID: "s1", GrantID: mod.ID}); err != nil {
		t.Fatalf("admin revoking moderator: %v", err)
	}
	if _, err := h.eng.Revoke(ctx, &RevokeRequest{ActorID: "root", GrantID: sa.ID}); err != nil {
		t.Fatalf("super admin revoking super admin: %v", err)
	}
}

func TestGrantValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	var zero time.Time

	tests := []struct {
		name string
		req  *GrantRequest
		want error
	}{
		{"unknown subject", &GrantRequest{ActorID: "root", SubjectID: "ghost", Tier: TierAdmin}, ErrIdentityNotFound},
		{"invalid tier", &GrantRequest{ActorID: "root", SubjectID: "u1", Tier: 7}, ErrInvalidTier},
		{"none tier", &GrantRequest{ActorID: "root", SubjectID: "u1", Tier: TierNone}, ErrInvalidTier},
		{"zero expiry", &GrantRequest{ActorID: "root", SubjectID: "u1", Tier: TierAdmin, ExpiresAt: &zero}, ErrInvalidExpiry},
		{"no actor", &GrantRequest{SubjectID: "u1", Tier: TierAdmin}, ErrInvalidRequest},
		{"actor without grants", &GrantRequest{ActorID: "u2", SubjectID: "u1", Tier: TierModerator}, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.eng.Grant(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.grant(t, "root", "u1", TierModerator)
	h.grant(t, "root", "u1", TierAdmin)

	tests := []struct {
		subject  string
		required Tier
		want     bool
	}{
		{"root", TierSuperAdmin, true},
		{"root", TierModerator, true},
		{"u1", TierSuperAdmin, false},
		{"u1", TierAdmin, true},
		{"u1", TierModerator, true},
		{"u2", TierModerator, false},
	}
	for _, tt := range tests {
		got, err := h.eng.Authorize(ctx, tt.subject, tt.required)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("Authorize(%s, %s) = %v, want %v", tt.subject, tt.required, got, tt.want)
		}
	}

	if _, err := h.eng.Authorize(ctx, "u1", TierNone); !errors.Is(err, ErrInvalidTier) {
		t.Fatalf("expected ErrInvalidTier, got %v", err)
	}
	if err := h.eng.Enforce(ctx, "u2", TierModerator); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := h.eng.Enforce(ctx, "u1", TierAdmin); err != nil {
		t.Fatal(err)
	}
}

func TestConcurrentGrantSingleWinner(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	var wg sync.WaitGroup
	var wins atomic.Int32
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.eng.Grant(ctx, &GrantRequest{ActorID: "root", SubjectID: "u1", Tier: TierAdmin})
			switch {
			case err == nil:
				wins.Add(1)
			case !errors.Is(err, ErrDuplicateActiveGrant):
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
	active, _ := h.store.ListGrantsForSubject(ctx, "u1")
	if len(active) != 1 {
		t.Fatalf("expected one active grant, got %d", len(active))
	}
	if _, err := h.eng.VerifyAuditTrail(ctx); err != nil {
		t.Fatalf("audit chain broken after concurrent grants: %v", err)
	}
}

// failingAudit rejects every audit append.
type failingAudit struct {
	store.Store
}

func (f *failingAudit) AppendEntry(context.Context, *activity.Entry) error {
	return errors.New("disk full")
}

type auditFailureRecorder struct {
	calls atomic.Int32
}

func (a *auditFailureRecorder) Name() string { return "audit-failures" }

func (a *auditFailureRecorder) OnAuditWriteFailed(context.Context, string, string, error) error {
	a.calls.Add(1)
	return nil
}

func TestAuditWriteFailure(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	// Seed through a healthy engine first.
	h := newHarnessWithStore(t, mem)

	rec := &auditFailureRecorder{}
	broken, err := NewEngine(
		WithStore(&failingAudit{Store: mem}),
		WithDirectory(h.eng.Directory()),
		WithPlugin(rec),
	)
	if err != nil {
		t.Fatal(err)
	}

	g, err := broken.Grant(ctx, &GrantRequest{ActorID: "root", SubjectID: "u1", Tier: TierAdmin})
	if !errors.Is(err, ErrAuditWrite) {
		t.Fatalf("expected ErrAuditWrite, got %v", err)
	}
	if g == nil {
		t.Fatal("grant must be returned when only the audit write failed")
	}
	if _, err := mem.GetGrant(ctx, g.ID); err != nil {
		t.Fatalf("ledger change must persist: %v", err)
	}
	if rec.calls.Load() != 1 {
		t.Fatalf("expected one AuditWriteFailed hook, got %d", rec.calls.Load())
	}

	_, err = broken.Revoke(ctx, &RevokeRequest{ActorID: "root", GrantID: g.ID})
	if !errors.Is(err, ErrAuditWrite) {
		t.Fatalf("expected ErrAuditWrite on revoke, got %v", err)
	}

	_, err = broken.Record(ctx, &RecordRequest{ActorID: "root", Action: "delete_event"})
	if !errors.Is(err, ErrAuditWrite) {
		t.Fatalf("expected ErrAuditWrite on record, got %v", err)
	}
}

// readAfterRevokeFails serves reads until a revoke commits, then fails
// every GetGrant, as a connection dropped right after the update would.
type readAfterRevokeFails struct {
	store.Store
	revoked atomic.Bool
}

func (r *readAfterRevokeFails) RevokeGrant(ctx context.Context, grantID id.GrantID, revokedBy string, at time.Time) error {
	if err := r.Store.RevokeGrant(ctx, grantID, revokedBy, at); err != nil {
		return err
	}
	r.revoked.Store(true)
	return nil
}

func (r *readAfterRevokeFails) GetGrant(ctx context.Context, grantID id.GrantID) (*grant.Grant, error) {
	if r.revoked.Load() {
		return nil, errors.New("connection reset")
	}
	return r.Store.GetGrant(ctx, grantID)
}

func TestRevokeAuditedWhenReadBackFails(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	h := newHarnessWithStore(t, mem)
	g := h.grant(t, "root", "u1", TierAdmin)

	flaky := &readAfterRevokeFails{Store: mem}
	eng, err := NewEngine(WithStore(flaky), WithDirectory(h.eng.Directory()), WithClock(h.clock.Now))
	if err != nil {
		t.Fatal(err)
	}

	before := h.entries(t)
	revoked, err := eng.Revoke(ctx, &RevokeRequest{ActorID: "root", GrantID: g.ID})
	if err != nil {
		t.Fatalf("committed revoke must succeed: %v", err)
	}
	if revoked.Active || revoked.RevokedBy != "root" || revoked.RevokedAt == nil || revoked.SubjectID != "u1" {
		t.Fatalf("unexpected revoked grant: %+v", revoked)
	}
	if got := h.entries(t); got != before+1 {
		t.Fatalf("committed revoke must write one audit entry, got %d", got-before)
	}
	last, err := mem.LastEntry(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last.Action != activity.ActionRevokeRole || last.ResourceID != g.ID.String() {
		t.Fatalf("unexpected last entry: %+v", last)
	}
}

// unavailableStore fails every grant read.
type unavailableStore struct {
	store.Store
}

func (u *unavailableStore) ListGrantsForSubject(context.Context, string) ([]*grant.Grant, error) {
	return nil, errors.New("connection refused")
}

func TestPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	eng, err := NewEngine(
		WithStore(&unavailableStore{Store: memory.New()}),
		WithDirectory(directory.NewStatic(directory.Identity{ID: "u1"})),
	)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.EffectiveTier(ctx, "u1"); !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if _, err := eng.Authorize(ctx, "u1", TierModerator); !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

// mapCache is a minimal Cache for engine tests.
type mapCache struct {
	mu   sync.Mutex
	m    map[string]TierDecision
	sets int
}

func (c *mapCache) Get(_ context.Context, subjectID string) (TierDecision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.m[subjectID]
	return d, ok
}

func (c *mapCache) Set(_ context.Context, subjectID string, d TierDecision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[subjectID] = d
	c.sets++
}

func (c *mapCache) InvalidateSubject(_ context.Context, subjectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, subjectID)
}

func (c *mapCache) InvalidateAll(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = map[string]TierDecision{}
}

func TestEffectiveTierCache(t *testing.T) {
	ctx := context.Background()
	c := &mapCache{m: map[string]TierDecision{}}
	cfg := DefaultConfig()
	cfg.CacheTTL = time.Minute
	h := newHarness(t, WithCache(c), WithConfig(cfg))

	exp := h.clock.Now().Add(10 * time.Second)
	if _, err := h.eng.Grant(ctx, &GrantRequest{ActorID: "root", SubjectID: "u1", Tier: TierAdmin, ExpiresAt: &exp}); err != nil {
		t.Fatal(err)
	}

	if tier, _ := h.eng.EffectiveTier(ctx, "u1"); tier != TierAdmin {
		t.Fatalf("expected admin, got %s", tier)
	}
	d, ok := c.Get(ctx, "u1")
	if !ok {
		t.Fatal("expected decision to be cached")
	}
	if !d.ValidUntil.Equal(exp) {
		t.Fatalf("cached decision must not outlive the grant expiry: %v", d.ValidUntil)
	}

	// Past the expiry the cached decision is ignored.
	h.clock.Advance(11 * time.Second)
	if tier, _ := h.eng.EffectiveTier(ctx, "u1"); tier != TierNone {
		t.Fatalf("expected none after expiry, got %s", tier)
	}

	// Revocation invalidates.
	mod := h.grant(t, "root", "u2", TierModerator)
	_, _ = h.eng.EffectiveTier(ctx, "u2")
	if _, err := h.eng.Revoke(ctx, &RevokeRequest{ActorID: "root", GrantID: mod.ID}); err != nil {
		t.Fatal(err)
	}
	if tier, _ := h.eng.EffectiveTier(ctx, "u2"); tier != TierNone {
		t.Fatalf("expected none after revoke, got %s", tier)
	}
}

type authorizeEvents struct {
	mu     sync.Mutex
	events []plugin.AuthorizeEvent
}

func (a *authorizeEvents) Name() string { return "authorize-events" }

func (a *authorizeEvents) OnAfterAuthorize(_ context.Context, ev *plugin.AuthorizeEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, *ev)
	return nil
}

func TestAuthorizeReportsCachedDecisions(t *testing.T) {
	ctx := context.Background()
	c := &mapCache{m: map[string]TierDecision{}}
	cfg := DefaultConfig()
	cfg.CacheTTL = time.Minute
	events := &authorizeEvents{}
	h := newHarness(t, WithCache(c), WithConfig(cfg), WithPlugin(events))
	h.grant(t, "root", "u1", TierAdmin)

	tier, cached, err := h.eng.effectiveTier(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if tier != TierAdmin || cached {
		t.Fatalf("first lookup: tier=%s cached=%v", tier, cached)
	}
	tier, cached, err = h.eng.effectiveTier(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if tier != TierAdmin || !cached {
		t.Fatalf("second lookup: tier=%s cached=%v", tier, cached)
	}

	if ok, err := h.eng.Authorize(ctx, "u1", TierModerator); err != nil || !ok {
		t.Fatalf("authorize: %v %v", ok, err)
	}
	if _, err := h.eng.Authorize(ctx, "u2", TierModerator); err != nil {
		t.Fatal(err)
	}

	events.mu.Lock()
	defer events.mu.Unlock()
	if len(events.events) != 2 {
		t.Fatalf("expected two authorize events, got %d", len(events.events))
	}
	if !events.events[0].Cached {
		t.Fatal("decision served from cache must be reported as cached")
	}
	if events.events[1].Cached {
		t.Fatal("decision read from the ledger must not be reported as cached")
	}
}

func TestRecentActivity(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-42")
	cfg := DefaultConfig()
	cfg.DefaultActivityLimit = 2
	cfg.MaxActivityLimit = 3
	h := newHarness(t, WithConfig(cfg))

	g := h.grant(t, "root", "u1", TierAdmin)
	h.clock.Advance(time.Second)
	if _, err := h.eng.Revoke(ctx, &RevokeRequest{ActorID: "root", GrantID: g.ID}); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(time.Second)
	entry, err := h.eng.Record(ctx, &RecordRequest{
		ActorID:      "s1",
		Action:       "update_event",
		ResourceType: "event",
		ResourceID:   "ev-9",
		Details:      map[string]any{"title": "Open day"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if entry.RequestID != "req-42" {
		t.Fatalf("expected request id to be stamped, got %q", entry.RequestID)
	}

	views, err := h.eng.RecentActivity(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 {
		t.Fatalf("expected default limit of 2, got %d", len(views))
	}
	if views[0].Entry.Action != "update_event" || views[0].Actor.Label() != "Sam" {
		t.Fatalf("expected newest entry first with actor joined, got %+v", views[0])
	}
	if views[1].Entry.Action != activity.ActionRevokeRole || views[1].Entry.RequestID != "req-42" {
		t.Fatalf("unexpected second entry: %+v", views[1].Entry)
	}

	views, _ = h.eng.RecentActivity(ctx, 100)
	if len(views) != 3 {
		t.Fatalf("expected max limit of 3, got %d", len(views))
	}

	rep, err := h.eng.VerifyAuditTrail(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// seed + grant + revoke + record
	if rep.Entries != 4 {
		t.Fatalf("expected 4 verified entries, got %d", rep.Entries)
	}
}

func TestGrantAuditDetails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	exp := h.clock.Now().Add(time.Hour)
	g, err := h.eng.Grant(ctx, &GrantRequest{
		ActorID:     "root",
		SubjectID:   "u3",
		Tier:        TierModerator,
		ExpiresAt:   &exp,
		Permissions: map[string]any{"panels": []any{"events"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	list, err := h.store.ListEntries(ctx, &activity.QueryFilter{ResourceID: g.ID.String()})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one entry for the grant, got %d", len(list))
	}
	e := list[0]
	if e.Action != activity.ActionGrantRole || e.ActorID != "root" || e.ResourceType != activity.ResourceRoleGrant {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Details["subject"] != "u3" || e.Details["tier"] != float64(TierModerator) || e.Details["expires_at"] == nil {
		t.Fatalf("unexpected details: %v", e.Details)
	}

	stored, _ := h.eng.GetGrant(ctx, g.ID)
	if stored.Permissions["panels"].([]any)[0] != "events" {
		t.Fatalf("permissions not returned verbatim: %v", stored.Permissions)
	}

	current, err := h.eng.CurrentGrants(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var label string
	for _, v := range current {
		if v.Grant.ID == g.ID {
			label = v.Subject.Label()
		}
	}
	if label != "u3@example.edu" {
		t.Fatalf("expected subject joined from directory, got %q", label)
	}
}
