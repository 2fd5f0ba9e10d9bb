package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kinerja/core/aspect"
	"github.com/trezcool/kinerja/core/user"
)

type aspectApi struct {
	svc      *aspect.Service
	validate *validator.Validate
}

func registerAspectAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *aspect.Service, validate *validator.Validate) {
	api := aspectApi{svc: svc, validate: validate}
	isAdmin := rolesMiddleware(user.RoleAdmin)

	ag := g.Group("/aspects", jwt)
	ag.GET("", api.query)
	ag.POST("", api.create, isAdmin)
	ag.GET("/weights/validate", api.validateWeights, isAdmin)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update, isAdmin)
	ag.DELETE("/:id", api.destroy, isAdmin)
	ag.POST("/:id/activate", api.activate, isAdmin)
	ag.POST("/:id/deactivate", api.deactivate, isAdmin)
}

func (api *aspectApi) query(ctx echo.Context) error {
	isActive, err := queryBool(ctx, "is_active")
	if err != nil {
		return err
	}
	filter := &aspect.QueryFilter{
		Category: ctx.QueryParam("category"),
		IsActive: isActive,
		IDs:      ctx.QueryParams()["id"],
	}
	filter.Clean()

	ordering := new(Ordering)
	ordering.Bind(ctx)

	aspects, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying aspects")
	}
	if aspects == nil {
		aspects = []aspect.Aspect{}
	}
	return ctx.JSON(http.StatusOK, aspects)
}

func (api *aspectApi) create(ctx echo.Context) error {
	var data aspect.NewAspect
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAspect")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating aspect")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *aspectApi) validateWeights(ctx echo.Context) error {
	report, err := api.svc.ValidateWeights(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "validating aspect weights")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *aspectApi) retrieve(ctx echo.Context) error {
	a, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding aspect by ID")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *aspectApi) update(ctx echo.Context) error {
	var data aspect.UpdateAspect
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAspect")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating aspect")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *aspectApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting aspect")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *aspectApi) activate(ctx echo.Context) error {
	a, err := api.svc.Activate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "activating aspect")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *aspectApi) deactivate(ctx echo.Context) error {
	a, err := api.svc.Deactivate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deactivating aspect")
	}
	return ctx.JSON(http.StatusOK, a)
}
