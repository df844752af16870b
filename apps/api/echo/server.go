package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/activity"
	"github.com/trezcool/studylab/core/enrollment"
	"github.com/trezcool/studylab/core/group"
	"github.com/trezcool/studylab/core/message"
	"github.com/trezcool/studylab/core/project"
	"github.com/trezcool/studylab/core/user"
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		Shutdown       chan os.Signal
		DisableReqLogs bool

		ProjectSvc    *project.Service
		EnrollmentSvc *enrollment.Service
		GroupSvc      *group.Service
		ActivitySvc   *activity.Service
		MessageSvc    *message.Service
		UserSvc       *user.Service
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
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: []string{conf.FrontendBaseURL}}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if conf.Storage.Backend == "local" {
		s.app.Static("/uploads", conf.Storage.LocalDir)
	}

	a := auth{conf: conf}
	jwt := middleware.JWTWithConfig(a.jwtConfig())
	authed := []echo.MiddlewareFunc{jwt, activeUserMiddleware(s.opts.UserSvc)}
	admin := append(authed[:len(authed):len(authed)], adminMiddleware(s.opts.UserSvc))

	v1 := s.app.Group("/v1")
	registerUserAPI(v1, jwt, &userApi{auth: a, svc: s.opts.UserSvc, validate: s.opts.Validate, logger: s.opts.Logger})
	registerProjectAPI(v1, admin, &projectApi{svc: s.opts.ProjectSvc, validate: s.opts.Validate})
	registerEnrollmentAPI(v1, jwt, admin, &enrollmentApi{
		svc:        s.opts.EnrollmentSvc,
		activities: s.opts.ActivitySvc,
		users:      s.opts.UserSvc,
		validate:   s.opts.Validate,
	})
	registerGroupAPI(v1, authed, &groupApi{
		svc:         s.opts.GroupSvc,
		enrollments: s.opts.EnrollmentSvc,
		users:       s.opts.UserSvc,
		validate:    s.opts.Validate,
	})
	registerActivityAPI(v1, admin, &activityApi{svc: s.opts.ActivitySvc, validate: s.opts.Validate})
	registerMessageAPI(v1, authed, admin, &messageApi{svc: s.opts.MessageSvc, users: s.opts.UserSvc, validate: s.opts.Validate})
}

func (s *server) signalShutdown() {
	if s.opts.Shutdown == nil {
		return
	}
	select {
	case s.opts.Shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Conf.Server.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Welcome to StudyLab API!"})
}
