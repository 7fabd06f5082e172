package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/credikids/credikids/core"
	"github.com/credikids/credikids/core/credit"
	"github.com/credikids/credikids/core/reward"
	"github.com/credikids/credikids/core/task"
	"github.com/credikids/credikids/core/user"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		DisableReqLogs bool

		UserSvc   user.ServiceInterface
		TaskSvc   *task.Service
		RewardSvc *reward.Service
		CreditSvc *credit.Service
	}

	Server struct {
		deps ServerDeps
		app  *echo.Echo

		serverErrors chan error
		shutdownChan chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:         deps,
		app:          echo.New(),
		serverErrors: make(chan error, 1),
		shutdownChan: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	initJWTConfig(deps.Conf)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.signalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerAuthAPI(v1, jwt, s.deps.UserSvc)
	registerUserAPI(v1, jwt, s.deps.UserSvc, s.deps.TaskSvc, s.deps.RewardSvc, s.deps.CreditSvc)
	registerTaskAPI(v1, jwt, s.deps.TaskSvc, s.deps.CreditSvc, s.deps.UserSvc)
	registerRewardAPI(v1, jwt, s.deps.RewardSvc, s.deps.UserSvc)
	registerCalendarAPI(v1, jwt, s.deps.TaskSvc, s.deps.UserSvc)
}

func (s *Server) Start() {
	s.serverErrors <- s.app.Start(s.deps.Conf.Server.Address())
}

func (s *Server) Errors() <-chan error {
	return s.serverErrors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdownChan
}

func (s *Server) signalShutdown() {
	s.shutdownChan <- syscall.SIGTERM
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to CrediKids API!")
}
