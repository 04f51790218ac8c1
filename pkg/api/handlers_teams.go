package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/loomctl/loom/pkg/apperr"
	"github.com/loomctl/loom/pkg/tenancy"
)

type createTeamRequest struct {
	Name string `json:"name"`
}

// createTeamHandler handles POST /api/v1/teams. Team creation is not
// tenant-scoped — the caller doesn't have a team yet — so it reads the user
// id bound by authMiddleware directly instead of going through the
// X-Team-Id group.
func (s *Server) createTeamHandler(c *echo.Context) error {
	var req createTeamRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" {
		return apperr.InvalidInputf("name is required")
	}
	userID := tenancy.UserID(c.Request().Context())
	team, err := s.store.CreateTeam(c.Request().Context(), req.Name, userID)
	if err != nil {
		return err
	}
	if err := s.store.AddMember(c.Request().Context(), team.ID, userID, "admin"); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, team)
}

// listTeamsHandler handles GET /api/v1/teams, returning every team the
// caller is a member of.
func (s *Server) listTeamsHandler(c *echo.Context) error {
	userID := tenancy.UserID(c.Request().Context())
	teams, err := s.store.ListTeamsForUser(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, teams)
}

// deleteTeamHandler handles DELETE /api/v1/teams/:team_id. Only an admin
// member may delete a team.
func (s *Server) deleteTeamHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	teamID := c.PathParam("team_id")
	userID := tenancy.UserID(ctx)

	membership, err := s.store.GetMembership(ctx, teamID, userID)
	if err != nil {
		return err
	}
	if membership == nil {
		return apperr.NotFoundf("team %s", teamID)
	}
	if membership.Role != "admin" {
		return apperr.Forbiddenf("only an admin may delete a team")
	}
	if err := s.store.DeleteTeam(ctx, teamID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// listNotificationsHandler handles GET /api/v1/notifications. Notifications
// span every team the caller belongs to, so this route is exempt from the
// X-Team-Id requirement and fans out across ListTeamsForUser instead.
func (s *Server) listNotificationsHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	userID := tenancy.UserID(ctx)

	teams, err := s.store.ListTeamsForUser(ctx, userID)
	if err != nil {
		return err
	}

	var all []any
	for _, team := range teams {
		notifs, err := s.store.ListUnreadNotifications(ctx, team.ID, userID)
		if err != nil {
			return err
		}
		for _, n := range notifs {
			all = append(all, n)
		}
	}
	return c.JSON(http.StatusOK, all)
}

// markNotificationReadHandler handles POST /api/v1/notifications/:id/read.
// The team a notification belongs to isn't known from the path, so every
// team membership is tried; ownership by another team's notification table
// surfaces as NotFound once none match.
func (s *Server) markNotificationReadHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	userID := tenancy.UserID(ctx)
	id := c.PathParam("id")

	teams, err := s.store.ListTeamsForUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, team := range teams {
		if err := s.store.MarkNotificationRead(ctx, team.ID, id); err == nil {
			return c.NoContent(http.StatusNoContent)
		}
	}
	return apperr.NotFoundf("notification %s", id)
}
