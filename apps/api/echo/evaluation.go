package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kinerja/core/evaluation"
	"github.com/trezcool/kinerja/core/user"
)

type evaluationApi struct {
	svc      *evaluation.Service
	userSvc  *user.Service
	validate *validator.Validate
}

func registerEvaluationAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *evaluation.Service, userSvc *user.Service, validate *validator.Validate) {
	api := evaluationApi{svc: svc, userSvc: userSvc, validate: validate}
	evaluators := rolesMiddleware(user.RoleAdmin, user.RoleKepalaSekolah)

	eg := g.Group("/evaluations", jwt)
	eg.POST("/assign", api.assign, rolesMiddleware(user.RoleAdmin))
	eg.GET("", api.query)
	eg.POST("", api.create, evaluators)
	eg.GET("/stats", api.stats)
	eg.PUT("/items/:itemID", api.updateItem)
	eg.DELETE("/items/:itemID", api.deleteItem)
	eg.GET("/:id", api.retrieve)
	eg.DELETE("/:id", api.destroy, rolesMiddleware(user.RoleAdmin))
	eg.GET("/:id/result", api.result)
	eg.POST("/:id/items", api.createItem)
	eg.PUT("/:id/items", api.bulkUpdateItems)
	eg.POST("/:id/finalize", api.finalize)
}

func (api *evaluationApi) assign(ctx echo.Context) error {
	var data PeriodRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PeriodRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	res, err := api.svc.AssignTeachersToPeriod(ctx.Request().Context(), data.PeriodID)
	if err != nil {
		return errors.Wrap(err, "assigning teachers to period")
	}
	return ctx.JSON(http.StatusOK, res)
}

func queryEvaluationFilter(ctx echo.Context) *evaluation.QueryFilter {
	filter := &evaluation.QueryFilter{
		TeacherID:      ctx.QueryParam("teacher_id"),
		EvaluatorID:    ctx.QueryParam("evaluator_id"),
		PeriodID:       ctx.QueryParam("period_id"),
		OrganizationID: ctx.QueryParam("organization_id"),
	}
	filter.Clean()
	return filter
}

func (api *evaluationApi) query(ctx echo.Context) error {
	id, err := getIdentity(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting identity")
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)

	evs, err := api.svc.Query(ctx.Request().Context(), id, queryEvaluationFilter(ctx), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying evaluations")
	}
	if evs == nil {
		evs = []evaluation.Evaluation{}
	}
	return ctx.JSON(http.StatusOK, evs)
}

func (api *evaluationApi) create(ctx echo.Context) error {
	id, err := getIdentity(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting identity")
	}

	var data evaluation.NewEvaluation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvaluation")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ev, err := api.svc.Create(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "creating evaluation")
	}
	return ctx.JSON(http.StatusCreated, ev)
}

func (api *evaluationApi) stats(ctx echo.Context) error {
	id, err := getIdentity(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting identity")
	}

	st, err := api.svc.Stats(ctx.Request().Context(), evaluation.Scope(id, queryEvaluationFilter(ctx)))
	if err != nil {
		return errors.Wrap(err, "computing evaluation stats")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *evaluationApi) retrieve(ctx echo.Context) error {
	id, err := getIdentity(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting identity")
	}

	d, err := api.svc.Detail(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting evaluation")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *evaluationApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting evaluation")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *evaluationApi) result(ctx echo.Context) error {
	id, err := getIdentity(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting identity")
	}

	res, err := api.svc.Result(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting evaluation result")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *evaluationApi) createItem(ctx echo.Context) error {
	id, err := getIdentity(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting identity")
	}

	var data evaluation.NewItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	d, err := api.svc.CreateItem(ctx.Request().Context(), id, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating evaluation item")
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *evaluationApi) bulkUpdateItems(ctx echo.Context) error {
	id, err := getIdentity(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting identity")
	}

	var data evaluation.BulkUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkUpdate")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	d, err := api.svc.BulkUpdateItems(ctx.Request().Context(), id, ctx.Param("id"), data.Items)
	if err != nil {
		return errors.Wrap(err, "updating evaluation items")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *evaluationApi) updateItem(ctx echo.Context) error {
	id, err := getIdentity(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting identity")
	}

	var data evaluation.UpdateItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	d, err := api.svc.UpdateItem(ctx.Request().Context(), id, ctx.Param("itemID"), data)
	if err != nil {
		return errors.Wrap(err, "updating evaluation item")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *evaluationApi) deleteItem(ctx echo.Context) error {
	id, err := getIdentity(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting identity")
	}

	d, err := api.svc.DeleteItem(ctx.Request().Context(), id, ctx.Param("itemID"))
	if err != nil {
		return errors.Wrap(err, "deleting evaluation item")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *evaluationApi) finalize(ctx echo.Context) error {
	id, err := getIdentity(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting identity")
	}

	var data evaluation.Finalize
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Finalize")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	d, err := api.svc.Finalize(ctx.Request().Context(), id, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "finalizing evaluation")
	}
	return ctx.JSON(http.StatusOK, d)
}
