package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/tenure"
)

func (a *API) registerAuthorizeRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("authorization"))

	if err := g.POST("/authorize", a.authorize,
		forge.WithSummary("Authorize"),
		forge.WithDescription("Reports whether the subject's effective tier meets the required tier."),
		forge.WithOperationID("authorize"),
		forge.WithRequestSchema(AuthorizeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Authorization decision", AuthorizeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/subjects/:subjectId/tier", a.getTier,
		forge.WithSummary("Get effective tier"),
		forge.WithDescription("Returns the highest-privilege tier currently in force for the subject."),
		forge.WithOperationID("getEffectiveTier"),
		forge.WithResponseSchema(http.StatusOK, "Effective tier", TierResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) authorize(ctx forge.Context, req *AuthorizeRequest) (*AuthorizeResponse, error) {
	if req.SubjectID == "" || req.RequiredTier == tenure.TierNone {
		return nil, forge.BadRequest("subject_id and required_tier are required")
	}
	required := req.RequiredTier

	allowed, err := a.eng.Authorize(ctx.Context(), req.SubjectID, required)
	if err != nil {
		return nil, mapError(err)
	}
	tier, err := a.eng.EffectiveTier(ctx.Context(), req.SubjectID)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &AuthorizeResponse{
		SubjectID:     req.SubjectID,
		RequiredTier:  required,
		EffectiveTier: tier,
		Allowed:       allowed,
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) getTier(ctx forge.Context, _ *GetTierRequest) (*TierResponse, error) {
	subjectID := ctx.Param("subjectId")
	tier, err := a.eng.EffectiveTier(ctx.Context(), subjectID)
	if err != nil {
		return nil, mapError(err)
	}
	resp := &TierResponse{SubjectID: subjectID, EffectiveTier: tier}
	return resp, ctx.JSON(http.StatusOK, resp)
}
