package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// RequestObserver records served requests (metrics).
type RequestObserver interface {
	ObserveRequest(method, route string, code int, elapsed time.Duration)
}

// rolesMiddleware only lets through callers holding one of roles.
func rolesMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.hasAnyRole(roles...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func metricsMiddleware(obs RequestObserver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			code := ctx.Response().Status
			if err != nil {
				code = httpStatus(err)
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			obs.ObserveRequest(ctx.Request().Method, route, code, time.Since(start))
			return err
		}
	}
}
