package postgres

import (
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
	grove.BaseModel `grove:"table:role_grants"`
	ID              string         `grove:"id,pk"`
	SubjectID       string         `grove:"subject_id,notnull"`
	Tier            int            `grove:"tier,notnull"`
	GrantedBy       string         `grove:"granted_by"`
	GrantedAt       time.Time      `grove:"granted_at,notnull"`
	ExpiresAt       *time.Time     `grove:"expires_at"`
	Active          bool           `grove:"active,notnull"`
	Permissions     map[string]any `grove:"permissions,type:jsonb"`
	RevokedAt       *time.Time     `grove:"revoked_at"`
	RevokedBy       string         `grove:"revoked_by"`
}

func grantToModel(g *grant.Grant) *grantModel {
	return &grantModel{
		ID:          g.ID.String(),
		SubjectID:   g.SubjectID,
		Tier:        int(g.Tier),
		GrantedBy:   g.GrantedBy,
		GrantedAt:   g.GrantedAt,
		ExpiresAt:   g.ExpiresAt,
		Active:      g.Active,
		Permissions: g.Permissions,
		RevokedAt:   g.RevokedAt,
		RevokedBy:   g.RevokedBy,
	}
}

func grantFromModel(m *grantModel) *grant.Grant {
	gid, _ := id.ParseGrantID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &grant.Grant{
		ID:          gid,
		SubjectID:   m.SubjectID,
		Tier:        grant.Tier(m.Tier),
		GrantedBy:   m.GrantedBy,
		GrantedAt:   m.GrantedAt.UTC(),
		ExpiresAt:   utcPtr(m.ExpiresAt),
		Active:      m.Active,
		Permissions: m.Permissions,
		RevokedAt:   utcPtr(m.RevokedAt),
		RevokedBy:   m.RevokedBy,
	}
}

// ──────────────────────────────────────────────────
// Activity model
// ──────────────────────────────────────────────────

type entryModel struct {
	grove.BaseModel `grove:"table:activity_log"`
	ID              string         `grove:"id,pk"`
	Seq             int64          `grove:"seq,notnull"`
	ActorID         string         `grove:"actor_id,notnull"`
	Action          string         `grove:"action,notnull"`
	ResourceType    string         `grove:"resource_type,notnull"`
	ResourceID      string         `grove:"resource_id"`
	Details         map[string]any `grove:"details,type:jsonb"`
	RequestID       string         `grove:"request_id"`
	PrevHash        string         `grove:"prev_hash,notnull"`
	Hash            string         `grove:"hash,notnull"`
	CreatedAt       time.Time      `grove:"created_at,notnull"`
}

func entryToModel(e *activity.Entry) *entryModel {
	return &entryModel{
		ID:           e.ID.String(),
		Seq:          e.Seq,
		ActorID:      e.ActorID,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Details:      e.Details,
		RequestID:    e.RequestID,
		PrevHash:     e.PrevHash,
		Hash:         e.Hash,
		CreatedAt:    e.CreatedAt,
	}
}

func entryFromModel(m *entryModel) *activity.Entry {
	eid, _ := id.ParseActivityID(m.ID) //nolint:errcheck // stored IDs are always valid
	details := m.Details
	if len(details) == 0 {
		details = nil
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
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
