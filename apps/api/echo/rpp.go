package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kinerja/core/rpp"
	"github.com/trezcool/kinerja/core/user"
)

type rppApi struct {
	svc      *rpp.Service
	userSvc  *user.Service
	validate *validator.Validate
}

func registerRPPAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *rpp.Service, userSvc *user.Service, validate *validator.Validate) {
	api := rppApi{svc: svc, userSvc: userSvc, validate: validate}
	isAdmin := rolesMiddleware(user.RoleAdmin)

	rg := g.Group("/rpp", jwt)
	rg.POST("/generate", api.generate, isAdmin)
	rg.POST("/upload", api.upload)

	sg := rg.Group("/submissions")
	sg.GET("", api.query)
	sg.POST("", api.create, isAdmin)
	sg.GET("/pending", api.pending, rolesMiddleware(user.RoleAdmin, user.RoleKepalaSekolah))
	sg.GET("/stats", api.stats)
	sg.POST("/bulk/review", api.bulkReview, rolesMiddleware(user.RoleAdmin, user.RoleKepalaSekolah))
	sg.GET("/:id", api.retrieve)
	sg.DELETE("/:id", api.destroy, isAdmin)
	sg.POST("/:id/submit", api.submit)
	sg.POST("/:id/review", api.review, rolesMiddleware(user.RoleAdmin, user.RoleKepalaSekolah))
}

func queryRPPFilter(ctx echo.Context) *rpp.QueryFilter {
	filter := &rpp.QueryFilter{
		TeacherID:      ctx.QueryParam("teacher_id"),
		PeriodID:       ctx.QueryParam("period_id"),
		Status:         ctx.QueryParam("status"),
		ReviewerID:     ctx.QueryParam("reviewer_id"),
		OrganizationID: ctx.QueryParam("organization_id"),
	}
	filter.Clean()
	return filter
}

func (api *rppApi) generate(ctx echo.Context) error {
	var data PeriodRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PeriodRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	res, err := api.svc.GenerateForPeriod(ctx.Request().Context(), data.PeriodID)
	if err != nil {
		return errors.Wrap(err, "generating RPP submissions")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *rppApi) upload(ctx echo.Context) error {
	id, err := getIdentity(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting identity")
	}

	var data rpp.Upload
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Upload")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	item, err := api.svc.UploadFile(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "uploading RPP file")
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *rppApi) query(ctx echo.Context) error {
	id, err := getIdentity(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting identity")
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)

	subs, err := api.svc.Query(ctx.Request().Context(), id, queryRPPFilter(ctx), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying RPP submissions")
	}
	if subs == nil {
		subs = []rpp.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *rppApi) create(ctx echo.Context) error {
	var data rpp.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	d, err := api.svc.CreateSubmission(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating RPP submission")
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *rppApi) pending(ctx echo.Context) error {
	id, err := getIdentity(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting identity")
	}

	subs, err := api.svc.PendingReviews(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "querying pending reviews")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *rppApi) stats(ctx echo.Context) error {
	id, err := getIdentity(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting identity")
	}

	st, err := api.svc.Stats(ctx.Request().Context(), rpp.Scope(id, queryRPPFilter(ctx)))
	if err != nil {
		return errors.Wrap(err, "computing RPP stats")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *rppApi) retrieve(ctx echo.Context) error {
	id, err := getIdentity(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting identity")
	}

	d, err := api.svc.Detail(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting RPP submission")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *rppApi) submit(ctx echo.Context) error {
	id, err := getIdentity(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting identity")
	}

	d, err := api.svc.Submit(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "submitting RPP")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *rppApi) review(ctx echo.Context) error {
	id, err := getIdentity(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting identity")
	}

	var data rpp.Review
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Review")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	d, err := api.svc.Review(ctx.Request().Context(), id, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "reviewing RPP")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *rppApi) bulkReview(ctx echo.Context) error {
	id, err := getIdentity(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting identity")
	}

	var data rpp.BulkReview
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkReview")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.BulkReview(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "reviewing RPP submissions")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *rppApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting RPP submission")
	}
	return ctx.NoContent(http.StatusNoContent)
}
