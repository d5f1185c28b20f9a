// Package sqlite provides a SQLite implementation of the Tenure composite
// store using grove ORM. It suits single-node deployments and local
// development.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the migrate executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/tenure/activity"
	"github.com/xraph/tenure/grant"
	"github.com/xraph/tenure/id"
	"github.com/xraph/tenure/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a SQLite implementation of the composite Tenure store.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("tenure/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("tenure/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// ──────────────────────────────────────────────────
// Grant ledger
// ──────────────────────────────────────────────────

// CreateGrant relies on the partial unique index. The conflict target
// repeats the index predicate so SQLite matches it.
func (s *Store) CreateGrant(ctx context.Context, g *grant.Grant) error {
	m, err := grantToModel(g)
	if err != nil {
		return fmt.Errorf("tenure: create grant: %w", err)
	}
	res, err := s.sdb.NewInsert(m).
		OnConflict("(subject_id, tier) WHERE active = 1 DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tenure: create grant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("tenure: create grant rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("subject %q tier %s: %w", g.SubjectID, g.Tier, grant.ErrDuplicateActive)
	}
	return nil
}

func (s *Store) GetGrant(ctx context.Context, grantID id.GrantID) (*grant.Grant, error) {
	m := new(grantModel)
	err := s.sdb.NewSelect(m).Where("id = ?", grantID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("grant %s: %w", grantID, grant.ErrNotFound)
		}
		return nil, fmt.Errorf("tenure: get grant: %w", err)
	}
	g, err := grantFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("tenure: get grant: %w", err)
	}
	return g, nil
}

// RevokeGrant flips active only if it is still true, so concurrent revokes
// have exactly one winner.
func (s *Store) RevokeGrant(ctx context.Context, grantID id.GrantID, revokedBy string, at time.Time) error {
	res, err := s.sdb.NewUpdate((*grantModel)(nil)).
		Set("active = ?", false).
		Set("revoked_at = ?", formatTime(at)).
		Set("revoked_by = ?", revokedBy).
		Where("id = ?", grantID.String()).
		Where("active = ?", true).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tenure: revoke grant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("tenure: revoke grant rows: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.GetGrant(ctx, grantID); err != nil {
		return err
	}
	return fmt.Errorf("grant %s: %w", grantID, grant.ErrAlreadyRevoked)
}

func (s *Store) ListActiveGrants(ctx context.Context) ([]*grant.Grant, error) {
	return s.ListGrants(ctx, &grant.ListFilter{ActiveOnly: true})
}

func (s *Store) ListGrantsForSubject(ctx context.Context, subjectID string) ([]*grant.Grant, error) {
	return s.ListGrants(ctx, &grant.ListFilter{SubjectID: subjectID, ActiveOnly: true})
}

func (s *Store) ListGrants(ctx context.Context, filter *grant.ListFilter) ([]*grant.Grant, error) {
	var models []grantModel
	q := s.sdb.NewSelect(&models).OrderExpr("granted_at ASC, id ASC")
	if filter != nil {
		if filter.SubjectID != "" {
			q = q.Where("subject_id = ?", filter.SubjectID)
		}
		if filter.Tier != grant.TierNone {
			q = q.Where("tier = ?", int(filter.Tier))
		}
		if filter.ActiveOnly {
			q = q.Where("active = ?", true)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tenure: list grants: %w", err)
	}
	result := make([]*grant.Grant, len(models))
	for i := range models {
		g, err := grantFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("tenure: list grants: %w", err)
		}
		result[i] = g
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Activity log
// ──────────────────────────────────────────────────

func (s *Store) AppendEntry(ctx context.Context, e *activity.Entry) error {
	m, err := entryToModel(e)
	if err != nil {
		return fmt.Errorf("tenure: append entry: %w", err)
	}
	res, err := s.sdb.NewInsert(m).
		OnConflict("(seq) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tenure: append entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("tenure: append entry rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("seq %d: %w", e.Seq, activity.ErrSequenceConflict)
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, entryID id.ActivityID) (*activity.Entry, error) {
	m := new(entryModel)
	err := s.sdb.NewSelect(m).Where("id = ?", entryID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("entry %s: %w", entryID, activity.ErrNotFound)
		}
		return nil, fmt.Errorf("tenure: get entry: %w", err)
	}
	e, err := entryFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("tenure: get entry: %w", err)
	}
	return e, nil
}

func (s *Store) LastEntry(ctx context.Context) (*activity.Entry, error) {
	m := new(entryModel)
	err := s.sdb.NewSelect(m).OrderExpr("seq DESC").Limit(1).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, activity.ErrNotFound
		}
		return nil, fmt.Errorf("tenure: last entry: %w", err)
	}
	e, err := entryFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("tenure: last entry: %w", err)
	}
	return e, nil
}

func (s *Store) ListEntries(ctx context.Context, filter *activity.QueryFilter) ([]*activity.Entry, error) {
	var models []entryModel
	q := s.sdb.NewSelect(&models)
	if filter != nil && filter.Descending {
		q = q.OrderExpr("seq DESC")
	} else {
		q = q.OrderExpr("seq ASC")
	}
	if filter != nil {
		for _, w := range entryFilter(filter) {
			q = q.Where(w.expr, w.arg)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tenure: list entries: %w", err)
	}
	result := make([]*activity.Entry, len(models))
	for i := range models {
		e, err := entryFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("tenure: list entries: %w", err)
		}
		result[i] = e
	}
	return result, nil
}

func (s *Store) CountEntries(ctx context.Context, filter *activity.QueryFilter) (int64, error) {
	q := s.sdb.NewSelect((*entryModel)(nil))
	if filter != nil {
		for _, w := range entryFilter(filter) {
			q = q.Where(w.expr, w.arg)
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("tenure: count entries: %w", err)
	}
	return count, nil
}

// where is one filter predicate.
type where struct {
	expr string
	arg  any
}

func entryFilter(f *activity.QueryFilter) []where {
	var w []where
	if f.ActorID != "" {
		w = append(w, where{"actor_id = ?", f.ActorID})
	}
	if f.Action != "" {
		w = append(w, where{"action = ?", f.Action})
	}
	if f.ResourceType != "" {
		w = append(w, where{"resource_type = ?", f.ResourceType})
	}
	if f.ResourceID != "" {
		w = append(w, where{"resource_id = ?", f.ResourceID})
	}
	if f.AfterSeq > 0 {
		w = append(w, where{"seq > ?", f.AfterSeq})
	}
	if f.After != nil {
		w = append(w, where{"created_at >= ?", formatTime(*f.After)})
	}
	if f.Before != nil {
		w = append(w, where{"created_at <= ?", formatTime(*f.Before)})
	}
	return w
}
