package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/period"
	"github.com/trezcool/kinerja/core/user"
)

type periodApi struct {
	svc      *period.Service
	validate *validator.Validate
}

func registerPeriodAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *period.Service, validate *validator.Validate) {
	api := periodApi{svc: svc, validate: validate}
	isAdmin := rolesMiddleware(user.RoleAdmin)

	pg := g.Group("/periods", jwt)
	pg.GET("", api.query)
	pg.POST("", api.create, isAdmin)
	pg.GET("/active", api.active)
	pg.GET("/:id", api.retrieve)
	pg.PUT("/:id", api.update, isAdmin)
	pg.DELETE("/:id", api.destroy, isAdmin)
	pg.POST("/:id/activate", api.activate, isAdmin)
	pg.POST("/:id/deactivate", api.deactivate, isAdmin)
}

func (api *periodApi) query(ctx echo.Context) error {
	isActive, err := queryBool(ctx, "is_active")
	if err != nil {
		return err
	}
	filter := &period.QueryFilter{
		IsActive:     isActive,
		AcademicYear: ctx.QueryParam("academic_year"),
		Semester:     ctx.QueryParam("semester"),
	}
	if ctx.QueryParam("current") == "true" {
		filter.Date = core.Now()
	}
	filter.Clean()

	ordering := new(Ordering)
	ordering.Bind(ctx)

	periods, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying periods")
	}
	if periods == nil {
		periods = []period.Period{}
	}
	return ctx.JSON(http.StatusOK, periods)
}

func (api *periodApi) create(ctx echo.Context) error {
	var data period.NewPeriod
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPeriod")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating period")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *periodApi) active(ctx echo.Context) error {
	p, err := api.svc.GetActive(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting active period")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *periodApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding period by ID")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *periodApi) update(ctx echo.Context) error {
	var data period.UpdatePeriod
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePeriod")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating period")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *periodApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting period")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *periodApi) activate(ctx echo.Context) error {
	p, err := api.svc.Activate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "activating period")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *periodApi) deactivate(ctx echo.Context) error {
	p, err := api.svc.Deactivate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deactivating period")
	}
	return ctx.JSON(http.StatusOK, p)
}
