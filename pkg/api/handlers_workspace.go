package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/loomctl/loom/pkg/apperr"
	"github.com/loomctl/loom/pkg/tenancy"
)

func registerWorkspaceRoutes(g *echo.Group, s *Server) {
	g.GET("/workspace/files", s.listWorkspaceFilesHandler)
	g.GET("/workspace/file", s.readWorkspaceFileHandler)
	g.PUT("/workspace/file", s.writeWorkspaceFileHandler)
	g.DELETE("/workspace/file", s.deleteWorkspaceFileHandler)
}

// agentScope resolves the agent id a workspace path is scoped under — the
// workspace store partitions files per (team, agent), so every request must
// name which agent's workspace it addresses.
func agentScope(c *echo.Context) (string, error) {
	agentID := c.QueryParam("agent_id")
	if agentID == "" {
		return "", apperr.InvalidInputf("agent_id query parameter is required")
	}
	return agentID, nil
}

func (s *Server) listWorkspaceFilesHandler(c *echo.Context) error {
	agentID, err := agentScope(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	entries, err := s.workspace.List(tenancy.TeamID(ctx), agentID, c.QueryParam("path"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

func (s *Server) readWorkspaceFileHandler(c *echo.Context) error {
	agentID, err := agentScope(c)
	if err != nil {
		return err
	}
	path := c.QueryParam("path")
	if path == "" {
		return apperr.InvalidInputf("path query parameter is required")
	}
	ctx := c.Request().Context()
	content, err := s.workspace.Read(tenancy.TeamID(ctx), agentID, path)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "text/plain; charset=utf-8", []byte(content))
}

type writeWorkspaceFileRequest struct {
	Content string `json:"content"`
}

func (s *Server) writeWorkspaceFileHandler(c *echo.Context) error {
	agentID, err := agentScope(c)
	if err != nil {
		return err
	}
	path := c.QueryParam("path")
	if path == "" {
		return apperr.InvalidInputf("path query parameter is required")
	}
	var req writeWorkspaceFileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if err := s.workspace.Write(tenancy.TeamID(ctx), agentID, path, req.Content); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) deleteWorkspaceFileHandler(c *echo.Context) error {
	agentID, err := agentScope(c)
	if err != nil {
		return err
	}
	path := c.QueryParam("path")
	if path == "" {
		return apperr.InvalidInputf("path query parameter is required")
	}
	ctx := c.Request().Context()
	if err := s.workspace.Delete(tenancy.TeamID(ctx), agentID, path); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
