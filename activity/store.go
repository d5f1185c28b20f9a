package activity

import (
	"context"

	"github.com/xraph/tenure/id"
)

// Store persists activity entries. Entries are append-only.
type Store interface {
	// AppendEntry persists e. Returns ErrSequenceConflict if an entry
	// with e.Seq already exists.
	AppendEntry(ctx context.Context, e *Entry) error

	// GetEntry retrieves an entry by ID.
	GetEntry(ctx context.Context, entryID id.ActivityID) (*Entry, error)

	// LastEntry returns the entry with the highest Seq, or ErrNotFound
	// when the log is empty.
	LastEntry(ctx context.Context) (*Entry, error)

	// ListEntries returns entries matching the filter.
	ListEntries(ctx context.Context, filter *QueryFilter) ([]*Entry, error)

	// CountEntries returns the number of entries matching the filter.
	CountEntries(ctx context.Context, filter *QueryFilter) (int64, error)
}
