package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/nextplot/internal/healthcheck"
	"github.com/memohai/nextplot/internal/version"
)

type PingHandler struct {
	logger *slog.Logger
	checks []healthcheck.Checker
}

func NewPingHandler(log *slog.Logger, checks []healthcheck.Checker) *PingHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PingHandler{
		logger: log.With(slog.String("handler", "ping")),
		checks: checks,
	}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.GET("/health", h.Health)
	e.HEAD("/health", h.HealthHead)
}

func (h *PingHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

type healthResponse struct {
	Status  string                    `json:"status"`
	Version string                    `json:"version"`
	Checks  []healthcheck.CheckResult `json:"checks,omitempty"`
}

// Health runs the readiness checks and answers 503 when any of them fails.
func (h *PingHandler) Health(c echo.Context) error {
	results, healthy := healthcheck.Run(c.Request().Context(), h.checks)
	resp := healthResponse{
		Status:  healthcheck.StatusOK,
		Version: version.Version,
		Checks:  results,
	}
	if !healthy {
		resp.Status = healthcheck.StatusError
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *PingHandler) HealthHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
