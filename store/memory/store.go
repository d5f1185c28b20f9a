// Package memory provides an in-memory implementation of the tenure
// composite store. It is intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xraph/tenure/activity"
	"github.com/xraph/tenure/grant"
	"github.com/xraph/tenure/id"
	"github.com/xraph/tenure/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

type activeKey struct {
	subjectID string
	tier      grant.Tier
}

// Store is a thread-safe in-memory store. Uniqueness of active grants is
// enforced under the write lock, which makes the check and the insert one
// atomic step.
type Store struct {
	mu sync.RWMutex

	grants  map[string]*grant.Grant
	active  map[activeKey]string // (subject, tier) -> grant ID
	entries []*activity.Entry    // ordered by Seq
	bySeq   map[int64]struct{}
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		grants: make(map[string]*grant.Grant),
		active: make(map[activeKey]string),
		bySeq:  make(map[int64]struct{}),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Grant ledger
// ──────────────────────────────────────────────────

func (s *Store) CreateGrant(_ context.Context, g *grant.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grants[g.ID.String()]; ok {
		return fmt.Errorf("tenure: create grant %s: id already exists", g.ID)
	}
	if g.Active {
		key := activeKey{subjectID: g.SubjectID, tier: g.Tier}
		if _, taken := s.active[key]; taken {
			return fmt.Errorf("subject %q tier %s: %w", g.SubjectID, g.Tier, grant.ErrDuplicateActive)
		}
		s.active[key] = g.ID.String()
	}
	s.grants[g.ID.String()] = copyGrant(g)
	return nil
}

func (s *Store) GetGrant(_ context.Context, grantID id.GrantID) (*grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grants[grantID.String()]
	if !ok {
		return nil, fmt.Errorf("grant %s: %w", grantID, grant.ErrNotFound)
	}
	return copyGrant(g), nil
}

func (s *Store) RevokeGrant(_ context.Context, grantID id.GrantID, revokedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[grantID.String()]
	if !ok {
		return fmt.Errorf("grant %s: %w", grantID, grant.ErrNotFound)
	}
	if !g.Active {
		return fmt.Errorf("grant %s: %w", grantID, grant.ErrAlreadyRevoked)
	}
	g.Active = false
	revokedAt := at
	g.RevokedAt = &revokedAt
	g.RevokedBy = revokedBy
	delete(s.active, activeKey{subjectID: g.SubjectID, tier: g.Tier})
	return nil
}

func (s *Store) ListActiveGrants(ctx context.Context) ([]*grant.Grant, error) {
	return s.ListGrants(ctx, &grant.ListFilter{ActiveOnly: true})
}

func (s *Store) ListGrantsForSubject(ctx context.Context, subjectID string) ([]*grant.Grant, error) {
	return s.ListGrants(ctx, &grant.ListFilter{SubjectID: subjectID, ActiveOnly: true})
}

func (s *Store) ListGrants(_ context.Context, filter *grant.ListFilter) ([]*grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*grant.Grant, 0, len(s.grants))
	for _, g := range s.grants {
		if filter != nil {
			if filter.SubjectID != "" && g.SubjectID != filter.SubjectID {
				continue
			}
			if filter.Tier != grant.TierNone && g.Tier != filter.Tier {
				continue
			}
			if filter.ActiveOnly && !g.Active {
				continue
			}
		}
		result = append(result, copyGrant(g))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].GrantedAt.Equal(result[j].GrantedAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].GrantedAt.Before(result[j].GrantedAt)
	})
	if filter == nil {
		return result, nil
	}
	return applyPagination(result, filter.Limit, filter.Offset), nil
}

// ──────────────────────────────────────────────────
// Activity log
// ──────────────────────────────────────────────────

func (s *Store) AppendEntry(_ context.Context, e *activity.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.bySeq[e.Seq]; taken {
		return fmt.Errorf("seq %d: %w", e.Seq, activity.ErrSequenceConflict)
	}
	s.bySeq[e.Seq] = struct{}{}
	s.entries = append(s.entries, copyEntry(e))
	sort.SliceStable(s.entries, func(i, j int) bool { return s.entries[i].Seq < s.entries[j].Seq })
	return nil
}

func (s *Store) GetEntry(_ context.Context, entryID id.ActivityID) (*activity.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == entryID {
			return copyEntry(e), nil
		}
	}
	return nil, fmt.Errorf("entry %s: %w", entryID, activity.ErrNotFound)
}

func (s *Store) LastEntry(_ context.Context) (*activity.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return nil, activity.ErrNotFound
	}
	return copyEntry(s.entries[len(s.entries)-1]), nil
}

func (s *Store) ListEntries(_ context.Context, filter *activity.QueryFilter) ([]*activity.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*activity.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if filter != nil && !matchEntry(e, filter) {
			continue
		}
		result = append(result, copyEntry(e))
	}
	if filter == nil {
		return result, nil
	}
	if filter.Descending {
		for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
			result[i], result[j] = result[j], result[i]
		}
	}
	return applyPagination(result, filter.Limit, filter.Offset), nil
}

func (s *Store) CountEntries(_ context.Context, filter *activity.QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, e := range s.entries {
		if filter == nil || matchEntry(e, filter) {
			n++
		}
	}
	return n, nil
}

func matchEntry(e *activity.Entry, f *activity.QueryFilter) bool {
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.ResourceType != "" && e.ResourceType != f.ResourceType {
		return false
	}
	if f.ResourceID != "" && e.ResourceID != f.ResourceID {
		return false
	}
	if f.AfterSeq > 0 && e.Seq <= f.AfterSeq {
		return false
	}
	if f.After != nil && e.CreatedAt.Before(*f.After) {
		return false
	}
	if f.Before != nil && e.CreatedAt.After(*f.Before) {
		return false
	}
	return true
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func copyGrant(g *grant.Grant) *grant.Grant {
	c := *g
	c.Permissions = copyMap(g.Permissions)
	if g.ExpiresAt != nil {
		t := *g.ExpiresAt
		c.ExpiresAt = &t
	}
	if g.RevokedAt != nil {
		t := *g.RevokedAt
		c.RevokedAt = &t
	}
	return &c
}

func copyEntry(e *activity.Entry) *activity.Entry {
	c := *e
	c.Details = copyMap(e.Details)
	return &c
}

// copyMap deep-copies nested maps and slices so callers never share state
// with the store.
func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = copyValue(v)
	}
	return c
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		c := make([]any, len(t))
		for i := range t {
			c[i] = copyValue(t[i])
		}
		return c
	default:
		return v
	}
}

func applyPagination[T any](items []*T, limit, offset int) []*T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
