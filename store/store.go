// Package store defines the aggregate persistence interface. The grant
// ledger and the activity log each define their own store interface; the
// composite Store composes them. Backends: Memory, Postgres, SQLite, Mongo.
package store

import (
	"context"

	"github.com/xraph/tenure/activity"
	"github.com/xraph/tenure/grant"
)

// Store is the aggregate persistence interface implemented by every backend.
type Store interface {
	grant.Store
	activity.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
