// Package middleware provides HTTP authorization middleware for Tenure.
package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/tenure"
)

// RequireTier admits the request only when the authenticated user's
// effective tier meets required. Requests without a user are denied.
func RequireTier(eng *tenure.Engine, required tenure.Tier) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			userID := forge.UserIDFromContext(ctx.Context())
			if userID == "" {
				return denyResponse(ctx, http.StatusUnauthorized, "authentication required")
			}
			err := eng.Enforce(ctx.Context(), userID, required)
			switch {
			case err == nil:
				return next(ctx)
			case errors.Is(err, tenure.ErrForbidden):
				return denyResponse(ctx, http.StatusForbidden, "access denied")
			default:
				eng.Logger().Error("tier check failed",
					slog.String("subject_id", userID),
					slog.String("error", err.Error()),
				)
				return denyResponse(ctx, http.StatusInternalServerError, "authorization unavailable")
			}
		}
	}
}

// RequireAdmin is RequireTier(eng, tenure.TierAdmin).
func RequireAdmin(eng *tenure.Engine) forge.Middleware {
	return RequireTier(eng, tenure.TierAdmin)
}

// RequireSuperAdmin is RequireTier(eng, tenure.TierSuperAdmin).
func RequireSuperAdmin(eng *tenure.Engine) forge.Middleware {
	return RequireTier(eng, tenure.TierSuperAdmin)
}

func denyResponse(ctx forge.Context, status int, msg string) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(status)
	return json.NewEncoder(ctx.Response()).Encode(map[string]string{"error": msg})
}
