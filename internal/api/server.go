// Package api is the HTTP surface of the matching service.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"mandate-matching/internal/common/config"
	"mandate-matching/internal/common/logger"
	"mandate-matching/internal/models"
	"mandate-matching/internal/store"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Searcher       Searcher
	Recomputer     Recomputer
	Signals        store.SignalLog
	Weights        store.WeightStore
	DefaultWeights models.Weights
	// Checks are run by /ready, keyed by dependency name.
	Checks map[string]func(context.Context) error
}

type Server struct {
	echo   *echo.Echo
	cfg    config.ServerConfig
	deps   Deps
	logger logger.Logger
}

func NewServer(cfg config.ServerConfig, deps Deps, log logger.Logger) *Server {
	if deps.DefaultWeights.Sum() == 0 {
		deps.DefaultWeights = models.DefaultWeights()
	}
	s := &Server{
		echo:   echo.New(),
		cfg:    cfg,
		deps:   deps,
		logger: log.WithFields(map[string]interface{}{"component": "http"}),
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewRequestValidator()
	e.HTTPErrorHandler = ErrorHandler(s.logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			switch c.Path() {
			case "/health", "/ready", "/metrics":
				return true
			}
			return false
		},
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info("http request", map[string]interface{}{
				"method":    v.Method,
				"uri":       v.URI,
				"status":    v.Status,
				"latencyMs": v.Latency.Milliseconds(),
			})
			return nil
		},
	}))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
			Timeout: config.GetDuration(cfg.RequestTimeout),
		}))
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.GET("/health", s.handleHealth)
	e.GET("/ready", s.handleReady)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1")
	v1.POST("/mandates/:id/search", s.handleSearch)
	v1.GET("/mandates/:id/weights", s.handleGetWeights)
	v1.POST("/signals", s.handleRecordSignal)
	v1.POST("/weights/recompute", s.handleRecompute)
	v1.POST("/svi", s.handleSVI)
	v1.POST("/pricing/evaluate", s.handlePricing)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         s.cfg.Address(),
		ReadTimeout:  durationOr(s.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout: durationOr(s.cfg.WriteTimeout, 30*time.Second),
	}
	s.logger.Info("http server listening", map[string]interface{}{"addr": srv.Addr})
	if err := s.echo.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func durationOr(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return config.GetDuration(ms)
}
