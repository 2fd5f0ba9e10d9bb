package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kinerja/core/organization"
	"github.com/trezcool/kinerja/core/user"
)

type organizationApi struct {
	svc      *organization.Service
	userSvc  *user.Service
	validate *validator.Validate
}

func registerOrganizationAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *organization.Service, userSvc *user.Service, validate *validator.Validate) {
	api := organizationApi{svc: svc, userSvc: userSvc, validate: validate}
	isAdmin := rolesMiddleware(user.RoleAdmin)

	og := g.Group("/organizations", jwt)
	og.GET("", api.query, isAdmin)
	og.POST("", api.create, isAdmin)
	og.GET("/:id", api.retrieve)
	og.PUT("/:id", api.update, isAdmin)
	og.DELETE("/:id", api.destroy, isAdmin)
}

func (api *organizationApi) query(ctx echo.Context) error {
	hasHead, err := queryBool(ctx, "has_head")
	if err != nil {
		return err
	}
	filter := &organization.QueryFilter{Search: ctx.QueryParam("search"), HasHead: hasHead}
	filter.Clean()

	ordering := new(Ordering)
	ordering.Bind(ctx)

	orgs, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying organizations")
	}
	if orgs == nil {
		orgs = []organization.Organization{}
	}
	return ctx.JSON(http.StatusOK, orgs)
}

func (api *organizationApi) create(ctx echo.Context) error {
	var data organization.NewOrganization
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOrganization")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	org, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating organization")
	}
	return ctx.JSON(http.StatusCreated, org)
}

func (api *organizationApi) retrieve(ctx echo.Context) error {
	id, err := getIdentity(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting identity")
	}
	orgID := ctx.Param("id")
	// members only see their own school
	if !id.IsAdmin() && id.OrganizationID != orgID {
		return errHttpNotFound
	}

	org, err := api.svc.GetByID(ctx.Request().Context(), orgID)
	if err != nil {
		return errors.Wrap(err, "finding organization by ID")
	}
	return ctx.JSON(http.StatusOK, org)
}

func (api *organizationApi) update(ctx echo.Context) error {
	var data organization.UpdateOrganization
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateOrganization")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	org, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating organization")
	}
	return ctx.JSON(http.StatusOK, org)
}

func (api *organizationApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting organization")
	}
	return ctx.NoContent(http.StatusNoContent)
}
