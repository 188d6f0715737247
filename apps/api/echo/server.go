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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/taarifa/core"
	"github.com/trezcool/taarifa/core/portal"
	sessionsvc "github.com/trezcool/taarifa/services/session"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Portal     *portal.Controller
		Sessions   sessionsvc.Store
		MailSvc    core.EmailService
		Validate   *validator.Validate
		Translator ut.Translator
	}

	Server struct {
		ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		ServerDeps: deps,
		app:        echo.New(),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	if !deps.Conf.TestMode {
		signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	s.app.GET("/health", s.health)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.app.Group("/v1")
	authed := []echo.MiddlewareFunc{
		middleware.JWTWithConfig(newJWTConfig(conf)),
		sessionMiddleware(s.Portal, s.Sessions),
	}

	registerAuthAPI(v1, authed, s.ServerDeps)
	registerSchoolAPI(v1, authed, s.ServerDeps)
	registerContentAPI(v1, authed, s.ServerDeps)
	registerUserAPI(v1, authed, s.ServerDeps)
}

// Start listens on the configured address until the server is shut down. Errors are sent on Errors.
func (s *Server) Start() {
	s.Logger.Info("API listening on " + s.Conf.Server.Address)
	if err := s.app.Start(s.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Taarifa API!")
}

type HealthResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) health(ctx echo.Context) error {
	ready, err := s.Portal.Ready()
	if ready {
		return ctx.JSON(http.StatusOK, HealthResponse{Status: "ok", Ready: true})
	}
	res := HealthResponse{Status: "loading"}
	if err != nil {
		res.Status = "unavailable"
		res.Error = err.Error()
	}
	return ctx.JSON(http.StatusServiceUnavailable, res)
}
