package api

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/david/cityguide/internal/db"
	"github.com/david/cityguide/internal/expiry"
	"github.com/david/cityguide/internal/logger"
	"github.com/david/cityguide/internal/models"
	"github.com/david/cityguide/internal/roster"
)

// RosterSource serves the cached duty roster.
type RosterSource interface {
	Snapshot(ctx context.Context) roster.ScheduleSnapshot
	Refresh()
}

// EventReader is the read side of the event store.
type EventReader interface {
	ListEvents(ctx context.Context, params db.ListParams) (*db.ListResult, error)
	ListFeaturedEvents(ctx context.Context) ([]models.Event, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

type Options struct {
	AdminSecret string
	CORSOrigins []string
	Log         *logger.Logger
	Metrics     http.Handler // served on /metrics when set
}

type Server struct {
	Echo    *echo.Echo
	Roster  RosterSource
	Events  EventReader
	Sweeper *expiry.Sweeper

	log         *logger.Logger
	adminSecret string
	metrics     http.Handler
}

// requestValidator plugs go-playground/validator into echo's c.Validate.
type requestValidator struct {
	v *validator.Validate
}

func (rv *requestValidator) Validate(i any) error {
	return rv.v.Struct(i)
}

func NewServer(rs RosterSource, events EventReader, sweeper *expiry.Sweeper, opt Options) (*Server, error) {
	log := opt.Log
	if log == nil {
		log = logger.Nop()
	}

	secret, err := resolveAdminSecret(opt.AdminSecret, log)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
	e.Use(requestLogger(log))
	e.Use(middleware.Recover())

	origins := opt.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:4200"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, adminHeader},
	}))

	s := &Server{
		Echo:        e,
		Roster:      rs,
		Events:      events,
		Sweeper:     sweeper,
		log:         log,
		adminSecret: secret,
		metrics:     opt.Metrics,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(s.metrics))
	}

	api := s.Echo.Group("/api/v1")
	api.GET("/pharmacies", s.handlePharmacies)
	api.GET("/events", s.handleListEvents)
	api.GET("/events/featured", s.handleFeaturedEvents)
	api.GET("/events/:id", s.handleGetEvent)

	admin := api.Group("/admin")
	admin.Use(s.adminMiddleware)
	admin.POST("/sweep", s.handleSweep)
	admin.POST("/roster/refresh", s.handleRosterRefresh)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func requestLogger(log *logger.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}
