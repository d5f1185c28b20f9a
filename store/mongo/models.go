package mongo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/tenure/activity"
	"github.com/xraph/tenure/grant"
	"github.com/xraph/tenure/id"
)

// ──────────────────────────────────────────────────
// Grant model
// ──────────────────────────────────────────────────

type grantModel struct {
	grove.BaseModel `grove:"table:tenure_role_grants"`
	ID              string     `grove:"id,pk"       bson:"_id"`
	SubjectID       string     `grove:"subject_id"  bson:"subject_id"`
	Tier            int        `grove:"tier"        bson:"tier"`
	GrantedBy       string     `grove:"granted_by"  bson:"granted_by"`
	GrantedAt       time.Time  `grove:"granted_at"  bson:"granted_at"`
	ExpiresAt       *time.Time `grove:"expires_at"  bson:"expires_at,omitempty"`
	Active          bool       `grove:"active"      bson:"active"`
	Permissions     string     `grove:"permissions" bson:"permissions,omitempty"`
	RevokedAt       *time.Time `grove:"revoked_at"  bson:"revoked_at,omitempty"`
	RevokedBy       string     `grove:"revoked_by"  bson:"revoked_by,omitempty"`
}

func grantToModel(g *grant.Grant) (*grantModel, error) {
	perms, err := marshalMap(g.Permissions)
	if err != nil {
		return nil, fmt.Errorf("encode permissions: %w", err)
	}
	return &grantModel{
		ID:          g.ID.String(),
		SubjectID:   g.SubjectID,
		Tier:        int(g.Tier),
		GrantedBy:   g.GrantedBy,
		GrantedAt:   g.GrantedAt,
		ExpiresAt:   g.ExpiresAt,
		Active:      g.Active,
		Permissions: perms,
		RevokedAt:   g.RevokedAt,
		RevokedBy:   g.RevokedBy,
	}, nil
}

func grantFromModel(m *grantModel) (*grant.Grant, error) {
	gid, err := id.ParseGrantID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse grant id: %w", err)
	}
	perms, err := unmarshalMap(m.Permissions)
	if err != nil {
		return nil, fmt.Errorf("decode permissions: %w", err)
	}
	return &grant.Grant{
		ID:          gid,
		SubjectID:   m.SubjectID,
		Tier:        grant.Tier(m.Tier),
		GrantedBy:   m.GrantedBy,
		GrantedAt:   m.GrantedAt.UTC(),
		ExpiresAt:   utcPtr(m.ExpiresAt),
		Active:      m.Active,
		Permissions: perms,
		RevokedAt:   utcPtr(m.RevokedAt),
		RevokedBy:   m.RevokedBy,
	}, nil
}

// ──────────────────────────────────────────────────
// Activity model
// ──────────────────────────────────────────────────

// Details is stored as JSON text so numbers come back as float64 and the
// chain hash matches the other backends.
type entryModel struct {
	grove.BaseModel `grove:"table:tenure_activity_log"`
	ID              string    `grove:"id,pk"          bson:"_id"`
	Seq             int64     `grove:"seq"            bson:"seq"`
	ActorID         string    `grove:"actor_id"       bson:"actor_id"`
	Action          string    `grove:"action"         bson:"action"`
	ResourceType    string    `grove:"resource_type"  bson:"resource_type"`
	ResourceID      string    `grove:"resource_id"    bson:"resource_id,omitempty"`
	Details         string    `grove:"details"        bson:"details,omitempty"`
	RequestID       string    `grove:"request_id"     bson:"request_id,omitempty"`
	PrevHash        string    `grove:"prev_hash"      bson:"prev_hash"`
	Hash            string    `grove:"hash"           bson:"hash"`
	CreatedAt       time.Time `grove:"created_at"     bson:"created_at"`
}

func entryToModel(e *activity.Entry) (*entryModel, error) {
	details, err := marshalMap(e.Details)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}
	return &entryModel{
		ID:           e.ID.String(),
		Seq:          e.Seq,
		ActorID:      e.ActorID,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Details:      details,
		RequestID:    e.RequestID,
		PrevHash:     e.PrevHash,
		Hash:         e.Hash,
		CreatedAt:    e.CreatedAt,
	}, nil
}

func entryFromModel(m *entryModel) (*activity.Entry, error) {
	eid, err := id.ParseActivityID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse activity id: %w", err)
	}
	details, err := unmarshalMap(m.Details)
	if err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	return &activity.Entry{
		ID:           eid,
		Seq:          m.Seq,
		ActorID:      m.ActorID,
		Action:       m.Action,
		ResourceType: m.ResourceType,
		ResourceID:   m.ResourceID,
		Details:      details,
		RequestID:    m.RequestID,
		PrevHash:     m.PrevHash,
		Hash:         m.Hash,
		CreatedAt:    m.CreatedAt.UTC(),
	}, nil
}

func marshalMap(v map[string]any) (string, error) {
	if len(v) == 0 {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalMap(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
