package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/loomctl/loom/pkg/tenancy"
)

func registerApprovalRoutes(g *echo.Group, s *Server) {
	g.GET("/approvals", s.listApprovalsHandler)
	g.POST("/approvals/:id/approve", s.approveHandler)
	g.POST("/approvals/:id/reject", s.rejectHandler)
}

func (s *Server) listApprovalsHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	approvals, err := s.activity.ListPending(ctx, tenancy.TeamID(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, approvals)
}

func (s *Server) approveHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	if err := tenancy.RequireRole(ctx, "admin"); err != nil {
		return err
	}
	approval, err := s.activity.Resolve(ctx, tenancy.TeamID(ctx), c.PathParam("id"), "approved")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, approval)
}

func (s *Server) rejectHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	if err := tenancy.RequireRole(ctx, "admin"); err != nil {
		return err
	}
	approval, err := s.activity.Resolve(ctx, tenancy.TeamID(ctx), c.PathParam("id"), "rejected")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, approval)
}
