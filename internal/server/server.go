package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mohammad-safakhou/uniqa/config"
	"github.com/mohammad-safakhou/uniqa/internal/logging"
	"github.com/mohammad-safakhou/uniqa/internal/metrics"
	"github.com/rs/zerolog"
)

const internalErrorMessage = "Internal server error"

// New builds the echo instance with the shared middleware stack and the
// operational endpoints. m may be nil.
func New(cfg config.ServerConfig, log zerolog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(requestLogger(log, m))
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = httpErrorHandler(log)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderXRequestID},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}
	return e
}

// httpErrorHandler renders every error as {"error": msg}. Client errors keep
// their message; anything else is logged and hidden behind a generic one.
func httpErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := internalErrorMessage
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil && code < http.StatusInternalServerError {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		event := log.Warn()
		if code >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.Err(err).Int("status", code).Str("method", req.Method).Str("path", req.URL.Path).
			Str("remote_ip", c.RealIP()).Msg("request failed")
		if c.Response().Committed {
			return
		}
		if req.Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, map[string]interface{}{"error": msg})
	}
}

// Run wires every dependency from cfg and serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	var m *metrics.Metrics
	if cfg.Telemetry.MetricsEnabled {
		m = metrics.New()
	}
	deps, err := Build(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer deps.Close()

	e := New(cfg.Server, logging.Component(log, "http"), m)
	h := &AnswerHandler{
		Pipeline: deps.Pipeline,
		Timeout:  cfg.Server.RequestTimeout,
		Log:      logging.Component(log, "api"),
	}
	if deps.Journal != nil {
		h.Journal = deps.Journal
	}
	h.Register(e.Group("/api"))

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("listening")
		errCh <- e.Start(cfg.Server.Address)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("shutting down")
	return e.Shutdown(shutdownCtx)
}
