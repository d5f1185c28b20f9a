package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/tenure"
	"github.com/xraph/tenure/grant"
	"github.com/xraph/tenure/id"
)

func (a *API) registerGrantRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("grants"))

	if err := g.POST("/grants", a.createGrant,
		forge.WithSummary("Grant tier"),
		forge.WithDescription("Grants a tier to a subject. The caller must hold the tier the policy requires."),
		forge.WithOperationID("createGrant"),
		forge.WithRequestSchema(CreateGrantRequest{}),
		forge.WithCreatedResponse(&grant.Grant{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/grants/:grantId/revoke", a.revokeGrant,
		forge.WithSummary("Revoke grant"),
		forge.WithDescription("Revokes an active grant. Revoking twice is an error."),
		forge.WithOperationID("revokeGrant"),
		forge.WithResponseSchema(http.StatusOK, "Revoked grant", &grant.Grant{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/grants", a.listCurrentGrants,
		forge.WithSummary("List current grants"),
		forge.WithDescription("Lists grants that are active and unexpired, joined with the subject's identity."),
		forge.WithOperationID("listCurrentGrants"),
		forge.WithResponseSchema(http.StatusOK, "Current grants", []*tenure.GrantView{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/grants/active", a.listActiveGrants,
		forge.WithSummary("List active grants"),
		forge.WithDescription("Lists every grant flagged active, including expired ones, with its state."),
		forge.WithOperationID("listActiveGrants"),
		forge.WithResponseSchema(http.StatusOK, "Active grants", []*tenure.GrantView{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/subjects/:subjectId/grants", a.listSubjectGrants,
		forge.WithSummary("List subject grants"),
		forge.WithDescription("Returns the subject's full grant history: active, expired and revoked."),
		forge.WithOperationID("listSubjectGrants"),
		forge.WithResponseSchema(http.StatusOK, "Grant history", []*grant.Grant{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) createGrant(ctx forge.Context, req *CreateGrantRequest) (*grant.Grant, error) {
	actor, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	if req.SubjectID == "" || req.Tier == tenure.TierNone {
		return nil, forge.BadRequest("subject_id and tier are required")
	}

	g, err := a.eng.Grant(ctx.Context(), &tenure.GrantRequest{
		ActorID:     actor,
		SubjectID:   req.SubjectID,
		Tier:        req.Tier,
		ExpiresAt:   req.ExpiresAt,
		Permissions: req.Permissions,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return g, ctx.JSON(http.StatusCreated, g)
}

func (a *API) revokeGrant(ctx forge.Context, _ *RevokeGrantRequest) (*grant.Grant, error) {
	actor, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	grantID, err := id.ParseGrantID(ctx.Param("grantId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid grant ID: %v", err))
	}

	g, err := a.eng.Revoke(ctx.Context(), &tenure.RevokeRequest{
		ActorID: actor,
		GrantID: grantID,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return g, ctx.JSON(http.StatusOK, g)
}

func (a *API) listCurrentGrants(ctx forge.Context, _ *ListGrantsRequest) ([]*tenure.GrantView, error) {
	views, err := a.eng.CurrentGrants(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}
	return views, ctx.JSON(http.StatusOK, views)
}

func (a *API) listActiveGrants(ctx forge.Context, _ *ListGrantsRequest) ([]*tenure.GrantView, error) {
	views, err := a.eng.ActiveGrants(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}
	return views, ctx.JSON(http.StatusOK, views)
}

func (a *API) listSubjectGrants(ctx forge.Context, _ *SubjectGrantsRequest) ([]*grant.Grant, error) {
	grants, err := a.eng.SubjectGrants(ctx.Context(), ctx.Param("subjectId"))
	if err != nil {
		return nil, mapError(err)
	}
	return grants, ctx.JSON(http.StatusOK, grants)
}
