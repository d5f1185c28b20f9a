// Package activity defines the append-only activity log Entry. Entries form
// a hash chain: each carries its position (Seq), the digest of its
// predecessor (PrevHash) and its own digest (Hash).
package activity

import (
	"errors"
	"time"

	"github.com/xraph/tenure/id"
)

var (
	// ErrNotFound is returned when an entry does not exist.
	ErrNotFound = errors.New("activity: entry not found")

	// ErrSequenceConflict is returned when another writer already appended
	// an entry at the same sequence number.
	ErrSequenceConflict = errors.New("activity: sequence already taken")
)

// Well-known actions written by the grant workflows.
const (
	ActionGrantRole  = "grant_role"
	ActionRevokeRole = "revoke_role"

	ResourceRoleGrant = "role_grant"
)

// Entry records one privileged action. It is never updated or deleted.
type Entry struct {
	ID           id.ActivityID  `json:"id" db:"id"`
	Seq          int64          `json:"seq" db:"seq"`
	ActorID      string         `json:"actor_id" db:"actor_id"`
	Action       string         `json:"action" db:"action"`
	ResourceType string         `json:"resource_type" db:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty" db:"resource_id"`
	Details      map[string]any `json:"details,omitempty" db:"details"`
	RequestID    string         `json:"request_id,omitempty" db:"request_id"`
	PrevHash     string         `json:"prev_hash,omitempty" db:"prev_hash"`
	Hash         string         `json:"hash" db:"hash"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}

// QueryFilter narrows ListEntries. Results are ordered by Seq; Descending
// flips the order for "most recent first" views.
type QueryFilter struct {
	ActorID      string     `json:"actor_id,omitempty"`
	Action       string     `json:"action,omitempty"`
	ResourceType string     `json:"resource_type,omitempty"`
	ResourceID   string     `json:"resource_id,omitempty"`
	AfterSeq     int64      `json:"after_seq,omitempty"`
	After        *time.Time `json:"after,omitempty"`
	Before       *time.Time `json:"before,omitempty"`
	Descending   bool       `json:"descending,omitempty"`
	Limit        int        `json:"limit,omitempty"`
	Offset       int        `json:"offset,omitempty"`
}
