package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/survey-admin/internal/core/domain/rechequeo"
)

const dateLayout = "2006-01-02"

func (s *Server) listRechequeos(c echo.Context) error {
	filter, err := parseRechequeoFilter(c)
	if err != nil {
		return err
	}
	page, err := s.rechequeoSvc.ListRechequeos(c.Request().Context(), filter)
	if err != nil {
		return rechequeoError(err)
	}
	return c.JSON(http.StatusOK, page)
}

func (s *Server) getRechequeoKPIs(c echo.Context) error {
	filter, err := parseRechequeoFilter(c)
	if err != nil {
		return err
	}
	kpis, err := s.rechequeoSvc.GetKPIs(c.Request().Context(), filter)
	if err != nil {
		return rechequeoError(err)
	}
	return c.JSON(http.StatusOK, kpis)
}

func (s *Server) getRechequeoFilters(c echo.Context) error {
	opts, err := s.rechequeoSvc.GetFilterOptions(c.Request().Context())
	if err != nil {
		return rechequeoError(err)
	}
	return c.JSON(http.StatusOK, opts)
}

func (s *Server) createRechequeo(c echo.Context) error {
	var req rechequeo.CreateRechequeoRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	r, err := s.rechequeoSvc.CreateRechequeo(c.Request().Context(), &req)
	if err != nil {
		return rechequeoError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

// parseRechequeoFilter reads repeated or comma separated list params, the
// empresa substring, a desde/hasta date range and pagination.
func parseRechequeoFilter(c echo.Context) (rechequeo.Filter, error) {
	q := c.QueryParams()
	f := rechequeo.Filter{
		Estados:  splitList(q["estado"]),
		Regiones: splitList(q["region"]),
		Tipos:    splitList(q["tipo"]),
		Empresa:  strings.TrimSpace(q.Get("empresa")),
	}
	for name, dst := range map[string]**time.Time{"desde": &f.Desde, "hasta": &f.Hasta} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+" date, expected YYYY-MM-DD")
		}
		if name == "hasta" {
			// inclusive upper bound
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		*dst = &t
	}
	if l := q.Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		f.Limit = v
	}
	if o := q.Get("offset"); o != "" {
		v, err := strconv.Atoi(o)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid offset")
		}
		f.Offset = v
	}
	return f, nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func rechequeoError(err error) error {
	if errors.Is(err, rechequeo.ErrInvalid) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
