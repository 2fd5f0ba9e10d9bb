package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/dig"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/aspect"
	"github.com/trezcool/kinerja/core/dashboard"
	"github.com/trezcool/kinerja/core/evaluation"
	"github.com/trezcool/kinerja/core/organization"
	"github.com/trezcool/kinerja/core/period"
	"github.com/trezcool/kinerja/core/rpp"
	"github.com/trezcool/kinerja/core/user"
)

type (
	ServerDeps struct {
		dig.In

		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Observer   RequestObserver `optional:"true"`

		UserSvc         *user.Service
		OrganizationSvc *organization.Service
		PeriodSvc       *period.Service
		AspectSvc       *aspect.Service
		RPPSvc          *rpp.Service
		EvaluationSvc   *evaluation.Service
		DashboardSvc    *dashboard.Service
	}

	Server struct {
		addr     string
		app      *echo.Echo
		auth     *JWTAuth
		shutdown chan os.Signal
		errors   chan error
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		addr:     deps.Conf.Server.Host,
		app:      echo.New(),
		auth:     NewJWTAuth(deps.Conf),
		shutdown: make(chan os.Signal, 1),
		errors:   make(chan error, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup(deps)
	return s
}

func (s *Server) setup(deps ServerDeps) {
	conf := deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if deps.Observer != nil {
		s.app.Use(metricsMiddleware(deps.Observer))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := s.auth.middleware()

	registerUserAPI(v1, jwt, s.auth, deps.UserSvc, deps.Validate)
	registerOrganizationAPI(v1, jwt, deps.OrganizationSvc, deps.UserSvc, deps.Validate)
	registerPeriodAPI(v1, jwt, deps.PeriodSvc, deps.Validate)
	registerAspectAPI(v1, jwt, deps.AspectSvc, deps.Validate)
	registerRPPAPI(v1, jwt, deps.RPPSvc, deps.UserSvc, deps.Validate)
	registerEvaluationAPI(v1, jwt, deps.EvaluationSvc, deps.UserSvc, deps.Validate)
	registerDashboardAPI(v1, jwt, deps.DashboardSvc, deps.UserSvc)
}

// Start listens until the server is shut down. Listen errors are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.addr); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

// Auth exposes the token issuer (tests, admin tooling).
func (s *Server) Auth() *JWTAuth { return s.auth }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Kinerja API!")
}
