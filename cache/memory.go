// Package cache provides caching implementations for effective tiers.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/xraph/tenure"
)

// Compile-time interface check.
var _ tenure.Cache = (*Memory)(nil)

// Memory is an in-memory LRU cache with TTL-based expiration. Each
// decision also carries its own ValidUntil, which Get honours.
type Memory struct {
	lru     *expirable.LRU[string, tenure.TierDecision]
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithTTL sets the cache entry time-to-live.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = ttl }
}

// WithMaxSize sets the maximum number of cache entries.
func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) { m.maxSize = n }
}

// WithClock sets the time source used to check ValidUntil.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates a new in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		ttl:     time.Minute,
		maxSize: 10000,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lru = expirable.NewLRU[string, tenure.TierDecision](m.maxSize, nil, m.ttl)
	return m
}

// Get returns a cached decision that is still valid.
func (m *Memory) Get(_ context.Context, subjectID string) (tenure.TierDecision, bool) {
	d, ok := m.lru.Get(subjectID)
	if !ok {
		return tenure.TierDecision{}, false
	}
	if !m.now().Before(d.ValidUntil) {
		m.lru.Remove(subjectID)
		return tenure.TierDecision{}, false
	}
	return d, true
}

// Set stores a decision.
func (m *Memory) Set(_ context.Context, subjectID string, d tenure.TierDecision) {
	m.lru.Add(subjectID, d)
}

// InvalidateSubject drops the cached decision for a subject.
func (m *Memory) InvalidateSubject(_ context.Context, subjectID string) {
	m.lru.Remove(subjectID)
}

// InvalidateAll drops every cached decision.
func (m *Memory) InvalidateAll(_ context.Context) {
	m.lru.Purge()
}

// Len returns the number of cached decisions.
func (m *Memory) Len() int { return m.lru.Len() }
