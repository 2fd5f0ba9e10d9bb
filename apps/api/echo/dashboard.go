package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/dashboard"
	"github.com/trezcool/kinerja/core/user"
)

type dashboardApi struct {
	svc     *dashboard.Service
	userSvc *user.Service
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *dashboard.Service, userSvc *user.Service) {
	api := dashboardApi{svc: svc, userSvc: userSvc}
	g.GET("/dashboard", api.summary, jwt)
}

func (api *dashboardApi) summary(ctx echo.Context) error {
	id, err := getIdentity(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting identity")
	}

	d, err := api.svc.Summary(ctx.Request().Context(), id, core.CleanString(ctx.QueryParam("period_id")))
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, d)
}
