package httpserver

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

func (s *Server) getCacheStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.cacheSvc.Stats(c.Request().Context()))
}

func (s *Server) deleteCachePattern(c echo.Context) error {
	pattern := strings.TrimSpace(c.QueryParam("pattern"))
	if pattern == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "pattern is required")
	}
	deleted := s.cacheSvc.DeleteByPattern(c.Request().Context(), pattern)
	if s.logger != nil {
		s.logger.WithField("pattern", pattern).WithField("deleted", deleted).Info("cache entries invalidated")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"pattern": pattern, "deleted": deleted})
}

func (s *Server) flushCache(c echo.Context) error {
	s.cacheSvc.Flush(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

// reenableCache leaves the disabled state of the durable tier. The handshake runs
// in the background, so the response carries the state right after the request.
func (s *Server) reenableCache(c echo.Context) error {
	ctx := c.Request().Context()
	s.cacheSvc.Reenable(ctx)
	return c.JSON(http.StatusAccepted, s.cacheSvc.Stats(ctx).Durable.AvailabilityState)
}
