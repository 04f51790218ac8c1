package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/loomctl/loom/pkg/apperr"
	"github.com/loomctl/loom/pkg/tenancy"
)

func registerSORRoutes(g *echo.Group, s *Server) {
	g.GET("/sor/tables", s.listSORTablesHandler)
	g.POST("/sor/tables", s.createSORTableHandler)
	g.DELETE("/sor/tables/:id", s.deleteSORTableHandler)
	g.GET("/sor/tables/:name/rows", s.listSORRowsHandler)
	g.POST("/sor/tables/:name/rows", s.createSORRowHandler)
	g.PATCH("/sor/rows/:id", s.updateSORRowHandler)
	g.DELETE("/sor/rows/:id", s.deleteSORRowHandler)
	g.POST("/sor/tables/:id/permissions/:agent_id", s.setSORPermissionHandler)
}

type createSORTableRequest struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

func (s *Server) listSORTablesHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	tables, err := s.sor.ListTables(ctx, tenancy.TeamID(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tables)
}

func (s *Server) createSORTableHandler(c *echo.Context) error {
	var req createSORTableRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" || len(req.Columns) == 0 {
		return apperr.InvalidInputf("name and at least one column are required")
	}
	ctx := c.Request().Context()
	table, err := s.sor.CreateTable(ctx, tenancy.TeamID(ctx), req.Name, req.Columns)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, table)
}

func (s *Server) deleteSORTableHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	if err := s.sor.DeleteTable(ctx, tenancy.TeamID(ctx), c.PathParam("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// agentIDForRequest returns the acting agent id from the X-Agent-Id header;
// the row handlers check that agent's table permission. There is no separate
// operator or admin-role path: a request without the header is checked
// against an empty agent id.
func agentIDForRequest(c *echo.Context) string {
	return c.Request().Header.Get("X-Agent-Id")
}

func (s *Server) listSORRowsHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	rowsJSON, err := s.sor.ReadRows(ctx, tenancy.TeamID(ctx), agentIDForRequest(c), c.PathParam("name"))
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, []byte(rowsJSON))
}

type sorRowRequest struct {
	Data map[string]any `json:"data"`
}

func (s *Server) createSORRowHandler(c *echo.Context) error {
	var req sorRowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	rowJSON, err := s.sor.WriteRow(ctx, tenancy.TeamID(ctx), agentIDForRequest(c), c.PathParam("name"), req.Data)
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusCreated, []byte(rowJSON))
}

func (s *Server) updateSORRowHandler(c *echo.Context) error {
	var req sorRowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	tableName := c.QueryParam("table")
	if tableName == "" {
		return apperr.InvalidInputf("table query parameter is required")
	}
	if err := s.sor.UpdateRow(ctx, tenancy.TeamID(ctx), agentIDForRequest(c), tableName, c.PathParam("id"), req.Data); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) deleteSORRowHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	tableName := c.QueryParam("table")
	if tableName == "" {
		return apperr.InvalidInputf("table query parameter is required")
	}
	if err := s.sor.DeleteRow(ctx, tenancy.TeamID(ctx), agentIDForRequest(c), tableName, c.PathParam("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type setSORPermissionRequest struct {
	CanRead  bool `json:"can_read"`
	CanWrite bool `json:"can_write"`
}

func (s *Server) setSORPermissionHandler(c *echo.Context) error {
	var req setSORPermissionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if err := tenancy.RequireRole(ctx, "admin"); err != nil {
		return err
	}
	if err := s.sor.Grant(ctx, c.PathParam("agent_id"), c.PathParam("id"), req.CanRead, req.CanWrite); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
