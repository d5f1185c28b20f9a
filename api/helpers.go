package api

import (
	"errors"

	"github.com/xraph/forge"

	"github.com/xraph/tenure"
)

// mapError maps domain errors to Forge HTTP errors. Persistence and audit
// failures pass through as server errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, tenure.ErrNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, tenure.ErrForbidden):
		return forge.Forbidden(err.Error())
	case errors.Is(err, tenure.ErrDuplicateActiveGrant),
		errors.Is(err, tenure.ErrAlreadyRevoked),
		errors.Is(err, tenure.ErrInvalidTier),
		errors.Is(err, tenure.ErrInvalidExpiry),
		errors.Is(err, tenure.ErrInvalidRequest):
		return forge.BadRequest(err.Error())
	}
	return err
}

// actorID returns the authenticated caller, or an Unauthorized error when
// the request carries no user.
func actorID(ctx forge.Context) (string, error) {
	if uid := forge.UserIDFromContext(ctx.Context()); uid != "" {
		return uid, nil
	}
	return "", forge.Unauthorized("authenticated user required")
}
