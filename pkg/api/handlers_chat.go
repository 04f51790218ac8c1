package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/loomctl/loom/pkg/apperr"
	"github.com/loomctl/loom/pkg/tenancy"
)

func registerChatRoutes(g *echo.Group, s *Server) {
	g.GET("/chat/channels", s.listChannelsHandler)
	g.POST("/chat/channels", s.createChannelHandler)
	g.GET("/chat/channels/:id/messages", s.listMessagesHandler)
	g.POST("/chat/channels/:id/messages", s.postMessageHandler)
}

func (s *Server) listChannelsHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	channels, err := s.chat.ListChannels(ctx, tenancy.TeamID(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, channels)
}

type createChannelRequest struct {
	Name string `json:"name"`
}

func (s *Server) createChannelHandler(c *echo.Context) error {
	var req createChannelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" {
		return apperr.InvalidInputf("name is required")
	}
	ctx := c.Request().Context()
	channel, err := s.chat.CreateGroupChannel(ctx, tenancy.TeamID(ctx), req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, channel)
}

func (s *Server) listMessagesHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	var beforeID int64
	if v := c.QueryParam("before_id"); v != "" {
		beforeID, _ = strconv.ParseInt(v, 10, 64)
	}
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	messages, err := s.chat.ListMessages(ctx, tenancy.TeamID(ctx), c.PathParam("id"), beforeID, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messages)
}

type postMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) postMessageHandler(c *echo.Context) error {
	var req postMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Content == "" {
		return apperr.InvalidInputf("content is required")
	}
	ctx := c.Request().Context()
	userID := tenancy.UserID(ctx)
	msg, err := s.chat.Post(ctx, tenancy.TeamID(ctx), c.PathParam("id"), "user", &userID, req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, msg)
}
