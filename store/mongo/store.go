// Package mongo provides a MongoDB implementation of the Tenure composite
// store using the grove mongodriver.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/tenure/activity"
	"github.com/xraph/tenure/grant"
	"github.com/xraph/tenure/id"
	"github.com/xraph/tenure/store"
)

// Collection name constants.
const (
	colGrants   = "tenure_role_grants"
	colActivity = "tenure_activity_log"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of the composite Tenure store.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Migrate creates indexes for all tenure collections. The partial unique
// index on active grants and the unique seq index are what make duplicate
// grants and chain forks impossible.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("tenure/mongo: migrate %s indexes: %w", col, err)
		}
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

func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colGrants: {
			{
				Keys: bson.D{{Key: "subject_id", Value: 1}, {Key: "tier", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"active": true}),
			},
			{Keys: bson.D{{Key: "subject_id", Value: 1}, {Key: "active", Value: 1}}},
			{Keys: bson.D{{Key: "granted_at", Value: 1}}},
		},
		colActivity: {
			{
				Keys:    bson.D{{Key: "seq", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "actor_id", Value: 1}}},
			{Keys: bson.D{{Key: "resource_type", Value: 1}, {Key: "resource_id", Value: 1}}},
		},
	}
}

// ──────────────────────────────────────────────────
// Grant ledger
// ──────────────────────────────────────────────────

func (s *Store) CreateGrant(ctx context.Context, g *grant.Grant) error {
	m, err := grantToModel(g)
	if err != nil {
		return fmt.Errorf("tenure: create grant: %w", err)
	}
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("subject %q tier %s: %w", g.SubjectID, g.Tier, grant.ErrDuplicateActive)
		}
		return fmt.Errorf("tenure: create grant: %w", err)
	}
	return nil
}

func (s *Store) GetGrant(ctx context.Context, grantID id.GrantID) (*grant.Grant, error) {
	var m grantModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": grantID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("grant %s: %w", grantID, grant.ErrNotFound)
		}
		return nil, fmt.Errorf("tenure: get grant: %w", err)
	}
	return grantFromModel(&m)
}

// RevokeGrant matches on active=true so only one concurrent revoke matches.
func (s *Store) RevokeGrant(ctx context.Context, grantID id.GrantID, revokedBy string, at time.Time) error {
	res, err := s.mdb.NewUpdate((*grantModel)(nil)).
		Filter(bson.M{"_id": grantID.String(), "active": true}).
		Set("active", false).
		Set("revoked_at", at.UTC()).
		Set("revoked_by", revokedBy).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tenure: revoke grant: %w", err)
	}
	if res.MatchedCount() > 0 {
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
	f := bson.M{}
	if filter != nil {
		if filter.SubjectID != "" {
			f["subject_id"] = filter.SubjectID
		}
		if filter.Tier != grant.TierNone {
			f["tier"] = int(filter.Tier)
		}
		if filter.ActiveOnly {
			f["active"] = true
		}
	}
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "granted_at", Value: 1}, {Key: "_id", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("seq %d: %w", e.Seq, activity.ErrSequenceConflict)
		}
		return fmt.Errorf("tenure: append entry: %w", err)
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, entryID id.ActivityID) (*activity.Entry, error) {
	var m entryModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": entryID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("entry %s: %w", entryID, activity.ErrNotFound)
		}
		return nil, fmt.Errorf("tenure: get entry: %w", err)
	}
	return entryFromModel(&m)
}

func (s *Store) LastEntry(ctx context.Context) (*activity.Entry, error) {
	var models []entryModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "seq", Value: -1}}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("tenure: last entry: %w", err)
	}
	if len(models) == 0 {
		return nil, activity.ErrNotFound
	}
	return entryFromModel(&models[0])
}

func (s *Store) ListEntries(ctx context.Context, filter *activity.QueryFilter) ([]*activity.Entry, error) {
	var models []entryModel
	order := 1
	if filter != nil && filter.Descending {
		order = -1
	}
	q := s.mdb.NewFind(&models).
		Filter(entryFilter(filter)).
		Sort(bson.D{{Key: "seq", Value: order}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	count, err := s.mdb.NewFind((*entryModel)(nil)).
		Filter(entryFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("tenure: count entries: %w", err)
	}
	return count, nil
}

func entryFilter(f *activity.QueryFilter) bson.M {
	m := bson.M{}
	if f == nil {
		return m
	}
	if f.ActorID != "" {
		m["actor_id"] = f.ActorID
	}
	if f.Action != "" {
		m["action"] = f.Action
	}
	if f.ResourceType != "" {
		m["resource_type"] = f.ResourceType
	}
	if f.ResourceID != "" {
		m["resource_id"] = f.ResourceID
	}
	if f.AfterSeq > 0 {
		m["seq"] = bson.M{"$gt": f.AfterSeq}
	}
	created := bson.M{}
	if f.After != nil {
		created["$gte"] = *f.After
	}
	if f.Before != nil {
		created["$lte"] = *f.Before
	}
	if len(created) > 0 {
		m["created_at"] = created
	}
	return m
}
