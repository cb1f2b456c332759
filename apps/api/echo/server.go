package echoapi

import (
	"context"
	"io"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/quizhub/apps/di"
	"github.com/trezcool/quizhub/core"
	appfs "github.com/trezcool/quizhub/fs"
	"github.com/trezcool/quizhub/services/realtime"
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		Services       *di.Services
		Hub            *realtime.Hub
		DisableReqLogs bool
		ReqLogOutput   io.Writer // defaults to stdout
		// SignalShutdown is called when a handler fails with a shutdown error.
		SignalShutdown func()
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.SignalShutdown == nil {
		opts.SignalShutdown = func() {}
	}
	configureAuth(opts.Conf)

	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{Output: s.opts.ReqLogOutput}))
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.opts.SignalShutdown)
	s.app.Debug = conf.Debug
	s.app.Renderer = newTemplateRenderer(appfs.FS, s.opts.Logger)

	s.app.GET("/", home)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	svcs := s.opts.Services
	jwt := middleware.JWTWithConfig(jwtConfig)
	api := s.app.Group("/api")

	registerUserAPI(api, jwt, svcs, s.opts.Validate, s.opts.Logger)
	registerCatalogAPI(api, jwt, svcs, s.opts.Validate)
	registerStudentAPI(api, jwt, svcs)
	registerAdminAPI(api, jwt, svcs, s.opts.Validate)
	registerJobAPI(api, jwt, svcs)
	registerDiscussionAPI(api, jwt, svcs, s.opts.Validate, s.opts.Hub)
	registerMaterialAPI(s.app, api, jwt, svcs, s.opts.Validate)
	registerCourseworkAPI(api, jwt, svcs, s.opts.Validate)

	registerWeb(s.app, svcs, s.opts.Validate, s.opts.Translator, s.opts.Logger)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Conf.Server.Host)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Quizhub API!")
}
