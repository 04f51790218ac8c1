package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/loomctl/loom/pkg/apperr"
	"github.com/loomctl/loom/pkg/store"
	"github.com/loomctl/loom/pkg/tenancy"
)

func registerTaskRoutes(g *echo.Group, s *Server) {
	g.GET("/tasks", s.listTasksHandler)
	g.POST("/tasks", s.createTaskHandler)
	g.GET("/tasks/:id", s.getTaskHandler)
	g.PATCH("/tasks/:id", s.patchTaskHandler)
	g.DELETE("/tasks/:id", s.deleteTaskHandler)
}

type createTaskRequest struct {
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Priority        string     `json:"priority"`
	AssignedAgentID *string    `json:"assigned_agent_id,omitempty"`
	ParentTaskID    *string    `json:"parent_task_id,omitempty"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	DependsOn       []string   `json:"depends_on,omitempty"`
}

func (s *Server) listTasksHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	filter := store.ListTasksFilter{
		Status:          c.QueryParam("status"),
		AssignedAgentID: c.QueryParam("assigned_agent_id"),
		ParentTaskID:    c.QueryParam("parent_task_id"),
	}
	tasks, err := s.store.ListTasks(ctx, tenancy.TeamID(ctx), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tasks)
}

func (s *Server) createTaskHandler(c *echo.Context) error {
	var req createTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Title == "" {
		return apperr.InvalidInputf("title is required")
	}
	ctx := c.Request().Context()
	task, err := s.store.CreateTask(ctx, store.CreateTaskParams{
		TeamID:          tenancy.TeamID(ctx),
		Title:           req.Title,
		Description:     req.Description,
		Priority:        req.Priority,
		AssignedAgentID: req.AssignedAgentID,
		ParentTaskID:    req.ParentTaskID,
		Deadline:        req.Deadline,
		DependsOn:       req.DependsOn,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, task)
}

func (s *Server) getTaskHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	task, err := s.store.GetTask(ctx, tenancy.TeamID(ctx), c.PathParam("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

type patchTaskRequest struct {
	Title           *string    `json:"title,omitempty"`
	Description     *string    `json:"description,omitempty"`
	Status          *string    `json:"status,omitempty"`
	Priority        *string    `json:"priority,omitempty"`
	AssignedAgentID *string    `json:"assigned_agent_id,omitempty"`
	Deadline        *time.Time `json:"deadline,omitempty"`
}

func (s *Server) patchTaskHandler(c *echo.Context) error {
	var req patchTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	teamID := tenancy.TeamID(ctx)
	id := c.PathParam("id")

	if req.Status != nil && (*req.Status == "in_progress" || *req.Status == "review") {
		unresolved, err := s.store.UnresolvedDependencies(ctx, id)
		if err != nil {
			return err
		}
		if len(unresolved) > 0 {
			return apperr.Conflictf("task has %d unresolved dependencies", len(unresolved))
		}
	}

	task, err := s.store.UpdateTask(ctx, teamID, id, store.UpdateTaskParams{
		Title:           req.Title,
		Description:     req.Description,
		Status:          req.Status,
		Priority:        req.Priority,
		AssignedAgentID: req.AssignedAgentID,
		Deadline:        req.Deadline,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) deleteTaskHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	if err := s.store.DeleteTask(ctx, tenancy.TeamID(ctx), c.PathParam("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
