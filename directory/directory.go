// Package directory is the read-only view of known identities that the
// grant workflows resolve subjects and actors against. The identities
// themselves are owned by an external profile service.
package directory

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned when an identity does not exist.
var ErrNotFound = errors.New("directory: identity not found")

// Identity is a known user.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Label returns the display name, falling back to email and then ID.
func (i Identity) Label() string {
	switch {
	case i.DisplayName != "":
		return i.DisplayName
	case i.Email != "":
		return i.Email
	default:
		return i.ID
	}
}

// Directory looks up identities.
type Directory interface {
	// List returns every known identity.
	List(ctx context.Context) ([]Identity, error)

	// Get returns the identity with the given ID or ErrNotFound.
	Get(ctx context.Context, identityID string) (Identity, error)
}

// Compile-time interface check.
var _ Directory = (*Static)(nil)

// Static is an in-memory Directory. It is safe for concurrent use.
type Static struct {
	mu         sync.RWMutex
	identities map[string]Identity
}

// NewStatic creates a directory holding the given identities.
func NewStatic(identities ...Identity) *Static {
	s := &Static{identities: make(map[string]Identity, len(identities))}
	for _, i := range identities {
		s.identities[i.ID] = i
	}
	return s
}

// Put adds or replaces an identity.
func (s *Static) Put(i Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[i.ID] = i
}

// List returns identities sorted by ID.
func (s *Static) List(_ context.Context) ([]Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Identity, 0, len(s.identities))
	for _, i := range s.identities {
		result = append(result, i)
	}
	sort.Slice(result, func(a, b int) bool { return result[a].ID < result[b].ID })
	return result, nil
}

// Get returns one identity.
func (s *Static) Get(_ context.Context, identityID string) (Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.identities[identityID]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return i, nil
}
