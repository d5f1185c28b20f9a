package api

import (
	"errors"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/tenure"
	"github.com/xraph/tenure/audit"
)

func (a *API) registerActivityRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("activity"))

	if err := g.GET("/activity", a.listActivity,
		forge.WithSummary("List recent activity"),
		forge.WithDescription("Returns audit entries newest first, joined with the actor's identity."),
		forge.WithOperationID("listActivity"),
		forge.WithRequestSchema(ListActivityRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Activity entries", []*tenure.ActivityView{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/activity/verify", a.verifyActivity,
		forge.WithSummary("Verify audit trail"),
		forge.WithDescription("Walks the audit hash chain and reports the first broken entry, if any."),
		forge.WithOperationID("verifyActivity"),
		forge.WithResponseSchema(http.StatusOK, "Verification report", VerifyResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) listActivity(ctx forge.Context, req *ListActivityRequest) ([]*tenure.ActivityView, error) {
	if req.Limit < 0 {
		return nil, forge.BadRequest("limit must not be negative")
	}
	views, err := a.eng.RecentActivity(ctx.Context(), req.Limit)
	if err != nil {
		return nil, mapError(err)
	}
	return views, ctx.JSON(http.StatusOK, views)
}

// verifyActivity answers 200 in both cases; a broken chain is a finding,
// not a request error.
func (a *API) verifyActivity(ctx forge.Context, _ *VerifyActivityRequest) (*VerifyResponse, error) {
	rep, err := a.eng.VerifyAuditTrail(ctx.Context())
	if err != nil {
		var brk *audit.BreakError
		if !errors.As(err, &brk) {
			return nil, mapError(err)
		}
		resp := &VerifyResponse{BrokenAt: brk.Seq, Reason: brk.Reason}
		return resp, ctx.JSON(http.StatusOK, resp)
	}
	resp := toVerifyResponse(rep)
	return resp, ctx.JSON(http.StatusOK, resp)
}
