package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/loomctl/loom/pkg/apperr"
	"github.com/loomctl/loom/pkg/store"
	"github.com/loomctl/loom/pkg/tenancy"
)

func registerAgentRoutes(g *echo.Group, s *Server) {
	g.GET("/agents", s.listAgentsHandler)
	g.POST("/agents", s.createAgentHandler)
	g.GET("/agents/:id", s.getAgentHandler)
	g.PATCH("/agents/:id", s.patchAgentHandler)
	g.DELETE("/agents/:id", s.deleteAgentHandler)
	g.POST("/agents/:id/start", s.startAgentHandler)
	g.POST("/agents/:id/stop", s.stopAgentHandler)
	g.POST("/agents/:id/chat", s.chatAgentHandler)
}

type createAgentRequest struct {
	Name             string  `json:"name"`
	Department       *string `json:"department,omitempty"`
	ModelID          string  `json:"model_id"`
	SystemPrompt     string  `json:"system_prompt"`
	Proactive        bool    `json:"proactive"`
	HeartbeatSeconds int     `json:"heartbeat_seconds"`
	ActiveHoursStart int     `json:"active_hours_start"`
	ActiveHoursEnd   int     `json:"active_hours_end"`
	SkipCredits      bool    `json:"skip_credits"`
}

func (s *Server) listAgentsHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	agents, err := s.store.ListAgents(ctx, tenancy.TeamID(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, agents)
}

func (s *Server) createAgentHandler(c *echo.Context) error {
	var req createAgentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" || req.ModelID == "" {
		return apperr.InvalidInputf("name and model_id are required")
	}
	ctx := c.Request().Context()
	agent, err := s.store.CreateAgent(ctx, store.CreateAgentParams{
		TeamID:           tenancy.TeamID(ctx),
		Name:             req.Name,
		Department:       req.Department,
		ModelID:          req.ModelID,
		SystemPrompt:     req.SystemPrompt,
		Proactive:        req.Proactive,
		HeartbeatSeconds: req.HeartbeatSeconds,
		ActiveHoursStart: req.ActiveHoursStart,
		ActiveHoursEnd:   req.ActiveHoursEnd,
		SkipCredits:      req.SkipCredits,
		CreatedBy:        tenancy.UserID(ctx),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, agent)
}

func (s *Server) getAgentHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	agent, err := s.store.GetAgent(ctx, tenancy.TeamID(ctx), c.PathParam("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, agent)
}

type patchAgentRequest struct {
	Name             *string `json:"name,omitempty"`
	Department       *string `json:"department,omitempty"`
	ModelID          *string `json:"model_id,omitempty"`
	SystemPrompt     *string `json:"system_prompt,omitempty"`
	Proactive        *bool   `json:"proactive,omitempty"`
	HeartbeatSeconds *int    `json:"heartbeat_seconds,omitempty"`
	ActiveHoursStart *int    `json:"active_hours_start,omitempty"`
	ActiveHoursEnd   *int    `json:"active_hours_end,omitempty"`
	SkipCredits      *bool   `json:"skip_credits,omitempty"`
}

func (s *Server) patchAgentHandler(c *echo.Context) error {
	var req patchAgentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	agent, err := s.store.UpdateAgent(ctx, tenancy.TeamID(ctx), c.PathParam("id"), store.UpdateAgentParams{
		Name:             req.Name,
		Department:       req.Department,
		ModelID:          req.ModelID,
		SystemPrompt:     req.SystemPrompt,
		Proactive:        req.Proactive,
		HeartbeatSeconds: req.HeartbeatSeconds,
		ActiveHoursStart: req.ActiveHoursStart,
		ActiveHoursEnd:   req.ActiveHoursEnd,
		SkipCredits:      req.SkipCredits,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, agent)
}

func (s *Server) deleteAgentHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	if err := s.store.DeleteAgent(ctx, tenancy.TeamID(ctx), c.PathParam("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) startAgentHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	teamID := tenancy.TeamID(ctx)
	id := c.PathParam("id")
	if err := s.store.SetAgentStatus(ctx, teamID, id, "running"); err != nil {
		return err
	}
	agent, err := s.store.GetAgent(ctx, teamID, id)
	if err != nil {
		return err
	}
	if s.scheduler != nil {
		s.scheduler.Schedule(ctx, *agent)
	}
	return c.JSON(http.StatusOK, agent)
}

func (s *Server) stopAgentHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	teamID := tenancy.TeamID(ctx)
	id := c.PathParam("id")
	if err := s.store.SetAgentStatus(ctx, teamID, id, "stopped"); err != nil {
		return err
	}
	if s.scheduler != nil {
		s.scheduler.Unschedule(id)
	}
	agent, err := s.store.GetAgent(ctx, teamID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, agent)
}

type chatAgentRequest struct {
	Content string `json:"content"`
}

// chatAgentHandler handles POST /api/v1/agents/:id/chat: posts the caller's
// message into their DM channel with the agent, then wakes the scheduler so
// the agent replies without waiting for its next heartbeat tick.
func (s *Server) chatAgentHandler(c *echo.Context) error {
	var req chatAgentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Content == "" {
		return apperr.InvalidInputf("content is required")
	}
	ctx := c.Request().Context()
	teamID := tenancy.TeamID(ctx)
	agentID := c.PathParam("id")
	userID := tenancy.UserID(ctx)

	if _, err := s.store.GetAgent(ctx, teamID, agentID); err != nil {
		return err
	}

	channel, err := s.chat.GetOrCreateDM(ctx, teamID, userID, agentID)
	if err != nil {
		return err
	}
	msg, err := s.chat.Post(ctx, teamID, channel.ID, "user", &userID, req.Content)
	if err != nil {
		return err
	}
	if s.scheduler != nil {
		_ = s.scheduler.TriggerNow(ctx, agentID, teamID)
	}
	return c.JSON(http.StatusCreated, msg)
}
