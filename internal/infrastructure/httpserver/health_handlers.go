package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/survey-admin/internal/core/ports"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// healthCheck reports every dependency. A degraded dependency keeps the endpoint
// at 200; only an unhealthy one turns it into 503.
func (s *Server) healthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string)
	overall := statusHealthy
	for _, hc := range s.healthCheckers {
		if hc == nil {
			continue
		}
		err := hc.Check(ctx)
		switch {
		case err == nil:
			deps[hc.Name()] = statusHealthy
		case errors.Is(err, ports.ErrDegraded):
			deps[hc.Name()] = statusDegraded
			if overall == statusHealthy {
				overall = statusDegraded
			}
		default:
			deps[hc.Name()] = statusUnhealthy
			overall = statusUnhealthy
		}
	}
	health := map[string]interface{}{
		"status":       overall,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"service":      "survey-admin",
		"dependencies": deps,
	}
	if s.cacheSvc != nil {
		health["cache"] = s.cacheSvc.Stats(ctx)
	}
	code := http.StatusOK
	if overall == statusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, health)
}
