package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/loomctl/loom/pkg/apperr"
	"github.com/loomctl/loom/pkg/store"
	"github.com/loomctl/loom/pkg/tenancy"
)

func registerGoalRoutes(g *echo.Group, s *Server) {
	g.GET("/goals", s.listGoalsHandler)
	g.POST("/goals", s.createGoalHandler)
	g.GET("/goals/:id", s.getGoalHandler)
	g.PATCH("/goals/:id/status", s.updateGoalStatusHandler)
	g.POST("/goals/:id/tasks/:task_id", s.linkGoalTaskHandler)
	g.DELETE("/goals/:id/tasks/:task_id", s.unlinkGoalTaskHandler)
	g.GET("/goals/:id/progress", s.goalProgressHandler)

	g.GET("/measurable-goals", s.listMeasurableGoalsHandler)
	g.POST("/measurable-goals", s.createMeasurableGoalHandler)
	g.GET("/measurable-goals/:id", s.getMeasurableGoalHandler)
	g.PATCH("/measurable-goals/:id/value", s.updateMeasurableGoalValueHandler)
}

type createGoalRequest struct {
	Title      string     `json:"title"`
	TargetDate *time.Time `json:"target_date,omitempty"`
}

func (s *Server) listGoalsHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	goals, err := s.store.ListGoals(ctx, tenancy.TeamID(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, goals)
}

func (s *Server) createGoalHandler(c *echo.Context) error {
	var req createGoalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Title == "" {
		return apperr.InvalidInputf("title is required")
	}
	ctx := c.Request().Context()
	goal, err := s.store.CreateGoal(ctx, tenancy.TeamID(ctx), req.Title, req.TargetDate)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, goal)
}

func (s *Server) getGoalHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	goal, err := s.store.GetGoal(ctx, tenancy.TeamID(ctx), c.PathParam("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, goal)
}

type updateGoalStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) updateGoalStatusHandler(c *echo.Context) error {
	var req updateGoalStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Status == "" {
		return apperr.InvalidInputf("status is required")
	}
	ctx := c.Request().Context()
	teamID := tenancy.TeamID(ctx)
	id := c.PathParam("id")
	if err := s.store.UpdateGoalStatus(ctx, teamID, id, req.Status); err != nil {
		return err
	}
	goal, err := s.store.GetGoal(ctx, teamID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, goal)
}

func (s *Server) linkGoalTaskHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	if err := s.store.LinkTask(ctx, c.PathParam("id"), c.PathParam("task_id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) unlinkGoalTaskHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	if err := s.store.UnlinkTask(ctx, c.PathParam("id"), c.PathParam("task_id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type goalProgressResponse struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Percent   int `json:"percent"`
}

func (s *Server) goalProgressHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	completed, total, percent, err := s.store.GoalProgress(ctx, c.PathParam("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, goalProgressResponse{Completed: completed, Total: total, Percent: percent})
}

type createMeasurableGoalRequest struct {
	MetricName  string     `json:"metric_name"`
	TargetValue float64    `json:"target_value"`
	Unit        string     `json:"unit"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

func (s *Server) listMeasurableGoalsHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	goals, err := s.store.ListMeasurableGoals(ctx, tenancy.TeamID(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, goals)
}

func (s *Server) createMeasurableGoalHandler(c *echo.Context) error {
	var req createMeasurableGoalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.MetricName == "" {
		return apperr.InvalidInputf("metric_name is required")
	}
	ctx := c.Request().Context()
	goal, err := s.store.CreateMeasurableGoal(ctx, store.CreateMeasurableGoalParams{
		TeamID:      tenancy.TeamID(ctx),
		MetricName:  req.MetricName,
		TargetValue: req.TargetValue,
		Unit:        req.Unit,
		Deadline:    req.Deadline,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, goal)
}

func (s *Server) getMeasurableGoalHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	goal, err := s.store.GetMeasurableGoal(ctx, tenancy.TeamID(ctx), c.PathParam("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, goal)
}

type updateMeasurableGoalValueRequest struct {
	CurrentValue float64 `json:"current_value"`
}

func (s *Server) updateMeasurableGoalValueHandler(c *echo.Context) error {
	var req updateMeasurableGoalValueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	goal, err := s.store.UpdateMeasurableGoalValue(ctx, tenancy.TeamID(ctx), c.PathParam("id"), req.CurrentValue)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, goal)
}
