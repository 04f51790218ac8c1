package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/loomctl/loom/pkg/tenancy"
)

func registerActivityRoutes(g *echo.Group, s *Server) {
	g.GET("/activity", s.listActivityHandler)
}

func (s *Server) listActivityHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	var beforeID int64
	if v := c.QueryParam("before_id"); v != "" {
		beforeID, _ = strconv.ParseInt(v, 10, 64)
	}
	limit := 100
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	events, err := s.activity.List(ctx, tenancy.TeamID(ctx), beforeID, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, events)
}
