// Package pgdirectory reads identities from the profile table of the host
// application's PostgreSQL database using pgx.
package pgdirectory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xraph/tenure/directory"
)

// DefaultQuery selects identities from a Supabase-style profiles table.
const DefaultQuery = `SELECT id::text AS id, COALESCE(full_name, '') AS display_name, COALESCE(email, '') AS email FROM profiles`

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Compile-time interface check.
var _ directory.Directory = (*Directory)(nil)

// Directory is a read-only directory.Directory over a profiles table.
type Directory struct {
	db    DBTX
	query string
}

// Option configures the directory.
type Option func(*Directory)

// WithQuery overrides the base SELECT. It must return the columns id,
// display_name and email, in that order.
func WithQuery(q string) Option { return func(d *Directory) { d.query = q } }

// New creates a directory reading through db.
func New(db DBTX, opts ...Option) *Directory {
	d := &Directory{db: db, query: DefaultQuery}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// List returns all identities ordered by display name.
func (d *Directory) List(ctx context.Context) ([]directory.Identity, error) {
	rows, err := d.db.Query(ctx, d.query+` ORDER BY 2, 1`)
	if err != nil {
		return nil, fmt.Errorf("pgdirectory: list identities: %w", err)
	}
	defer rows.Close()

	var result []directory.Identity
	for rows.Next() {
		var i directory.Identity
		if err := rows.Scan(&i.ID, &i.DisplayName, &i.Email); err != nil {
			return nil, fmt.Errorf("pgdirectory: scan identity: %w", err)
		}
		result = append(result, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgdirectory: list identities: %w", err)
	}
	return result, nil
}

// Get returns one identity or directory.ErrNotFound.
func (d *Directory) Get(ctx context.Context, identityID string) (directory.Identity, error) {
	var i directory.Identity
	err := d.db.QueryRow(ctx, `SELECT * FROM (`+d.query+`) p WHERE p.id = $1`, identityID).
		Scan(&i.ID, &i.DisplayName, &i.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return directory.Identity{}, fmt.Errorf("identity %q: %w", identityID, directory.ErrNotFound)
		}
		return directory.Identity{}, fmt.Errorf("pgdirectory: get identity: %w", err)
	}
	return i, nil
}
