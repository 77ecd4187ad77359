package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"

	"github.com/slotwise/slotwise/core"
	"github.com/slotwise/slotwise/core/allocation"
	"github.com/slotwise/slotwise/core/export"
	"github.com/slotwise/slotwise/core/ingest"
	"github.com/slotwise/slotwise/core/schema"
	"github.com/slotwise/slotwise/core/timetable"
	"github.com/slotwise/slotwise/core/user"
)

type (
	ServerDeps struct {
		Conf   *core.Config
		Logger core.Logger
		// Registerer receives the API metrics; a private registry is used when nil.
		Registerer prometheus.Registerer
		// HealthCheck pings the database.
		HealthCheck func(ctx context.Context) error

		UserSvc       user.Service
		SchemaSvc     *schema.Service
		YearSvc       *ingest.YearService
		AllocationSvc *allocation.Service
		TimetableSvc  *timetable.Service
		ExportSvc     *export.Service

		Validate   *validator.Validate
		Translator ut.Translator
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(ctx context.Context) error
		Close() error
	}

	server struct {
		ServerDeps
		app      *echo.Echo
		handler  http.Handler
		http     *http.Server
		metrics  *metrics
		auth     *jwtAuth
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "Conf"),
		vala.IsNotNil(deps.Logger, "Logger"),
		vala.IsNotNil(deps.UserSvc, "UserSvc"),
		vala.IsNotNil(deps.SchemaSvc, "SchemaSvc"),
		vala.IsNotNil(deps.YearSvc, "YearSvc"),
		vala.IsNotNil(deps.AllocationSvc, "AllocationSvc"),
		vala.IsNotNil(deps.TimetableSvc, "TimetableSvc"),
		vala.IsNotNil(deps.ExportSvc, "ExportSvc"),
		vala.IsNotNil(deps.Validate, "Validate"),
		vala.IsNotNil(deps.Translator, "Translator"),
	).Check(); err != nil {
		panic(err)
	}
	if deps.Registerer == nil {
		deps.Registerer = prometheus.NewRegistry()
	}

	s := &server{
		ServerDeps: deps,
		app:        echo.New(),
		metrics:    newMetrics(deps.Registerer),
		auth:       newJWTAuth(deps.Conf),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	}))
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	s.app.Use(s.metrics.middleware)
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if conf.Server.MaxUploadSize > 0 {
		s.app.Use(middleware.BodyLimit(fmt.Sprintf("%dB", conf.Server.MaxUploadSize)))
	}

	s.app.GET("/health", s.health)

	api := s.app.Group("/api")
	jwt := s.auth.middleware()
	registerUserAPI(api, jwt, s.UserSvc, s.auth, s.Validate)

	// data routes are public unless the deployment asks otherwise
	var guard []echo.MiddlewareFunc
	if conf.Server.AuthRequired {
		guard = append(guard, jwt)
	}
	data := api.Group("", guard...)
	registerSchemaAPI(data, s.SchemaSvc)
	registerIngestAPI(data, s.YearSvc, s.AllocationSvc, s.Validate)
	registerTimetableAPI(data, s.TimetableSvc, s.ExportSvc, s.metrics)

	s.handler = cors.New(cors.Options{
		AllowedOrigins:   conf.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{echo.HeaderContentDisposition, headerFailedDepartments},
		AllowCredentials: true,
	}).Handler(s.app)
}

func (s *server) Start() {
	s.http = &http.Server{
		Addr:     s.Conf.Server.Host,
		Handler:  s.handler,
		ErrorLog: s.app.StdLogger,
	}
	s.Logger.Info(fmt.Sprintf("API listening on %s", s.Conf.Server.Host))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *server) Close() error {
	if s.http == nil {
		return nil
	}
	return s.http.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.handler.ServeHTTP(w, r)
}
