package echoapi

import (
	"context"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/session"
)

type (
	ServerDeps struct {
		Conf          *core.Config
		Logger        core.Logger
		SchoolSvc     *school.Service
		Provider      session.Provider
		Authenticator session.Authenticator
		MailSvc       core.EmailService
		Validate      *validator.Validate
		Translator    ut.Translator
		Assets        fs.FS // holds templates/web
	}

	Server struct {
		ServerDeps
		app       *echo.Echo
		rules     session.Rules
		cookies   *session.CookieCodec
		flashes   sessions.Store
		resources []resource
		errors    chan error
		shutdown  chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	conf := deps.Conf
	s := &Server{
		ServerDeps: deps,
		app:        echo.New(),
		rules: session.Rules{
			ProtectedPrefixes: conf.Auth.ProtectedPrefixes,
			LoginPath:         conf.Auth.LoginPath,
			RootPath:          conf.Auth.RootPath,
		},
		cookies:  session.NewCookieCodec(conf.Auth.CookieName, conf.SecretKey, conf.Auth.CookieSecure, conf.Auth.CookieMaxAge),
		flashes:  newFlashStore(conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.guard)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s, s.signalShutdown)
	s.app.Renderer = newRenderer(s.Assets, s.Logger)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", s.home)
	s.app.GET("/about", s.about)

	registerAuthRoutes(s)

	dg := s.app.Group("/dashboard")
	dg.GET("", s.dashboard)
	registerReportRoutes(dg, s)
	registerResources(dg, s)
}

// Start blocks serving requests until the server is shut down; failures are reported on Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)

	s.Logger.Info("API listening on " + s.Conf.Server.Address)
	if err := s.app.Start(s.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
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

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // shutdown already requested
	}
}

func (s *Server) home(ctx echo.Context) error {
	return s.render(ctx, http.StatusOK, "home", s.Conf.AppName, nil)
}

func (s *Server) about(ctx echo.Context) error {
	return s.render(ctx, http.StatusOK, "about", "About", nil)
}
