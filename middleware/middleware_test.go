package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xraph/forge"

	"github.com/xraph/tenure"
	"github.com/xraph/tenure/directory"
	"github.com/xraph/tenure/grant"
	"github.com/xraph/tenure/store/memory"
)

func newEngine(t *testing.T) *tenure.Engine {
	t.Helper()
	ctx := context.Background()
	eng, err := tenure.NewEngine(
		tenure.WithStore(memory.New()),
		tenure.WithDirectory(directory.NewStatic(
			directory.Identity{ID: "root"},
			directory.Identity{ID: "mod"},
			directory.Identity{ID: "adm"},
		)),
	)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Seed(ctx, "root", tenure.TierSuperAdmin); err != nil {
		t.Fatal(err)
	}
	for _, req := range []*tenure.GrantRequest{
		{ActorID: "root", SubjectID: "mod", Tier: tenure.TierModerator},
		{ActorID: "root", SubjectID: "adm", Tier: tenure.TierAdmin},
	} {
		if _, err := eng.Grant(ctx, req); err != nil {
			t.Fatal(err)
		}
	}
	return eng
}

func serve(t *testing.T, mw forge.Middleware, userID string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	var reached bool
	router := forge.NewRouter()
	err := router.GET("/admin", func(ctx forge.Context) error {
		reached = true
		return ctx.String(http.StatusOK, "ok")
	}, forge.WithMiddleware(mw))
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if userID != "" {
		req = req.WithContext(forge.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec, reached
}

func TestRequireTier(t *testing.T) {
	eng := newEngine(t)

	tests := []struct {
		name        string
		userID      string
		wantStatus  int
		wantReached bool
	}{
		{"no user", "", http.StatusUnauthorized, false},
		{"tier too low", "mod", http.StatusForbidden, false},
		{"unknown user", "stranger", http.StatusForbidden, false},
		{"sufficient tier", "adm", http.StatusOK, true},
		{"higher tier", "root", http.StatusOK, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, reached := serve(t, RequireAdmin(eng), tt.userID)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if reached != tt.wantReached {
				t.Fatalf("expected next reached=%v, got %v", tt.wantReached, reached)
			}
		})
	}
}

func TestRequireSuperAdmin(t *testing.T) {
	eng := newEngine(t)
	if rec, reached := serve(t, RequireSuperAdmin(eng), "adm"); rec.Code != http.StatusForbidden || reached {
		t.Fatalf("admin must not pass RequireSuperAdmin: %d", rec.Code)
	}
	if rec, reached := serve(t, RequireSuperAdmin(eng), "root"); rec.Code != http.StatusOK || !reached {
		t.Fatalf("super admin must pass RequireSuperAdmin: %d", rec.Code)
	}
}

// brokenLedger fails every grant lookup.
type brokenLedger struct {
	*memory.Store
}

func (brokenLedger) ListGrantsForSubject(context.Context, string) ([]*grant.Grant, error) {
	return nil, errors.New("connection refused")
}

func TestRequireTierStoreFailure(t *testing.T) {
	eng, err := tenure.NewEngine(
		tenure.WithStore(brokenLedger{Store: memory.New()}),
		tenure.WithDirectory(directory.NewStatic(directory.Identity{ID: "adm"})),
	)
	if err != nil {
		t.Fatal(err)
	}
	rec, reached := serve(t, RequireAdmin(eng), "adm")
	if rec.Code != http.StatusInternalServerError || reached {
		t.Fatalf("expected 500 without reaching the handler, got %d", rec.Code)
	}
}
