package sqlite

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
	grove.BaseModel `grove:"table:role_grants"`
	ID              string  `grove:"id,pk"`
	SubjectID       string  `grove:"subject_id,notnull"`
	Tier            int     `grove:"tier,notnull"`
	GrantedBy       string  `grove:"granted_by"`
	GrantedAt       string  `grove:"granted_at,notnull"`
	ExpiresAt       *string `grove:"expires_at"`
	Active          bool    `grove:"active,notnull"`
	Permissions     string  `grove:"permissions"` // JSON text
	RevokedAt       *string `grove:"revoked_at"`
	RevokedBy       string  `grove:"revoked_by"`
}

func grantToModel(g *grant.Grant) (*grantModel, error) {
	perms, err := marshalMap(g.Permissions)
	if err != nil {
		return nil, fmt.Errorf("marshal grant permissions: %w", err)
	}
	return &grantModel{
		ID:          g.ID.String(),
		SubjectID:   g.SubjectID,
		Tier:        int(g.Tier),
		GrantedBy:   g.GrantedBy,
		GrantedAt:   formatTime(g.GrantedAt),
		ExpiresAt:   formatTimePtr(g.ExpiresAt),
		Active:      g.Active,
		Permissions: perms,
		RevokedAt:   formatTimePtr(g.RevokedAt),
		RevokedBy:   g.RevokedBy,
	}, nil
}

func grantFromModel(m *grantModel) (*grant.Grant, error) {
	gid, _ := id.ParseGrantID(m.ID) //nolint:errcheck // stored IDs are always valid
	perms, err := unmarshalMap(m.Permissions)
	if err != nil {
		return nil, fmt.Errorf("unmarshal grant permissions: %w", err)
	}
	grantedAt, err := parseTime(m.GrantedAt)
	if err != nil {
		return nil, err
	}
	expiresAt, err := parseTimePtr(m.ExpiresAt)
	if err != nil {
		return nil, err
	}
	revokedAt, err := parseTimePtr(m.RevokedAt)
	if err != nil {
		return nil, err
	}
	return &grant.Grant{
		ID:          gid,
		SubjectID:   m.SubjectID,
		Tier:        grant.Tier(m.Tier),
		GrantedBy:   m.GrantedBy,
		GrantedAt:   grantedAt,
		ExpiresAt:   expiresAt,
		Active:      m.Active,
		Permissions: perms,
		RevokedAt:   revokedAt,
		RevokedBy:   m.RevokedBy,
	}, nil
}

// ──────────────────────────────────────────────────
// Activity model
// ──────────────────────────────────────────────────

type entryModel struct {
	grove.BaseModel `grove:"table:activity_log"`
	ID              string `grove:"id,pk"`
	Seq             int64  `grove:"seq,notnull"`
	ActorID         string `grove:"actor_id,notnull"`
	Action          string `grove:"action,notnull"`
	ResourceType    string `grove:"resource_type,notnull"`
	ResourceID      string `grove:"resource_id"`
	Details         string `grove:"details"` // JSON text
	RequestID       string `grove:"request_id"`
	PrevHash        string `grove:"prev_hash,notnull"`
	Hash            string `grove:"hash,notnull"`
	CreatedAt       string `grove:"created_at,notnull"`
}

func entryToModel(e *activity.Entry) (*entryModel, error) {
	details, err := marshalMap(e.Details)
	if err != nil {
		return nil, fmt.Errorf("marshal entry details: %w", err)
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
		CreatedAt:    formatTime(e.CreatedAt),
	}, nil
}

func entryFromModel(m *entryModel) (*activity.Entry, error) {
	eid, _ := id.ParseActivityID(m.ID) //nolint:errcheck // stored IDs are always valid
	details, err := unmarshalMap(m.Details)
	if err != nil {
		return nil, fmt.Errorf("unmarshal entry details: %w", err)
	}
	createdAt, err := parseTime(m.CreatedAt)
	if err != nil {
		return nil, err
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
		CreatedAt:    createdAt,
	}, nil
}

// marshalMap stores an empty map as the empty string.
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

// timeLayout is fixed width so that text comparison in SQL orders the same
// way as the instants do.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
