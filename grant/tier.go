package grant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Tier is an ordered privilege level. Lower values carry more privilege.
type Tier int

const (
	// TierNone means no grant is in force.
	TierNone Tier = 0

	// TierSuperAdmin is the highest tier.
	TierSuperAdmin Tier = 1

	// TierAdmin manages content and moderators.
	TierAdmin Tier = 2

	// TierModerator is the lowest grantable tier.
	TierModerator Tier = 3
)

// Tiers lists every grantable tier from highest to lowest privilege.
var Tiers = []Tier{TierSuperAdmin, TierAdmin, TierModerator}

// Valid reports whether t is one of the grantable tiers.
func (t Tier) Valid() bool {
	return t >= TierSuperAdmin && t <= TierModerator
}

// Satisfies reports whether a subject holding t meets the required tier.
// TierNone never satisfies anything.
func (t Tier) Satisfies(required Tier) bool {
	return t.Valid() && t <= required
}

// Higher reports whether t carries more privilege than other.
func (t Tier) Higher(other Tier) bool {
	if !t.Valid() {
		return false
	}
	return !other.Valid() || t < other
}

func (t Tier) String() string {
	switch t {
	case TierSuperAdmin:
		return "super_admin"
	case TierAdmin:
		return "admin"
	case TierModerator:
		return "moderator"
	case TierNone:
		return "none"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// MarshalText encodes the tier by name.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts a tier name or its numeric value.
func (t *Tier) UnmarshalText(data []byte) error {
	parsed, err := ParseTier(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// UnmarshalJSON accepts a JSON number (2) or a string ("admin", "2").
func (t *Tier) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return t.UnmarshalText([]byte(s))
	}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTier, data)
	}
	parsed := Tier(n)
	if parsed != TierNone && !parsed.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidTier, n)
	}
	*t = parsed
	return nil
}

// ParseTier parses "super_admin", "admin", "moderator", "none" or "1".."3".
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "super_admin", "superadmin", "1":
		return TierSuperAdmin, nil
	case "admin", "2":
		return TierAdmin, nil
	case "moderator", "3":
		return TierModerator, nil
	case "none", "0", "":
		return TierNone, nil
	}
	return TierNone, fmt.Errorf("%w: %q", ErrInvalidTier, s)
}
