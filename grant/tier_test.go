package grant

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestTierUnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want Tier
	}{
		{`{"tier": 2}`, TierAdmin},
		{`{"tier": "admin"}`, TierAdmin},
		{`{"tier": "1"}`, TierSuperAdmin},
		{`{"tier": 3}`, TierModerator},
		{`{"tier": 0}`, TierNone},
		{`{"tier": null}`, TierNone},
		{`{}`, TierNone},
	}
	for _, tt := range tests {
		var v struct {
			Tier Tier `json:"tier"`
		}
		if err := json.Unmarshal([]byte(tt.in), &v); err != nil {
			t.Fatalf("%s: %v", tt.in, err)
		}
		if v.Tier != tt.want {
			t.Fatalf("%s: expected %s, got %s", tt.in, tt.want, v.Tier)
		}
	}
}

func TestTierUnmarshalJSONRejectsUnknown(t *testing.T) {
	for _, in := range []string{`{"tier": 7}`, `{"tier": -1}`, `{"tier": "owner"}`, `{"tier": 1.5}`, `{"tier": true}`} {
		var v struct {
			Tier Tier `json:"tier"`
		}
		if err := json.Unmarshal([]byte(in), &v); !errors.Is(err, ErrInvalidTier) {
			t.Fatalf("%s: expected ErrInvalidTier, got %v", in, err)
		}
	}
}

func TestTierMarshalRoundTrip(t *testing.T) {
	b, err := json.Marshal(map[string]Tier{"tier": TierModerator})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"tier":"moderator"}` {
		t.Fatalf("unexpected encoding: %s", b)
	}
	var back map[string]Tier
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back["tier"] != TierModerator {
		t.Fatalf("expected moderator, got %s", back["tier"])
	}
}

func TestValidateAcceptsPastExpiry(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	g := &Grant{SubjectID: "u2", Tier: TierModerator, GrantedAt: now, ExpiresAt: &past, Active: true}
	if err := g.Validate(); err != nil {
		t.Fatalf("past expiry must be accepted: %v", err)
	}
	if g.InForce(now) {
		t.Fatal("grant expiring before now must not be in force")
	}
	if g.State(now) != StateExpired {
		t.Fatalf("expected expired state, got %s", g.State(now))
	}

	var zero time.Time
	g.ExpiresAt = &zero
	if err := g.Validate(); !errors.Is(err, ErrInvalidExpiry) {
		t.Fatalf("expected ErrInvalidExpiry, got %v", err)
	}
}
