// Package api wires every domain package into an HTTP surface with Echo v5:
// bearer-token authentication, tenant binding via X-Team-Id, and one route
// group per resource in the data model.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/loomctl/loom/pkg/activity"
	"github.com/loomctl/loom/pkg/chat"
	"github.com/loomctl/loom/pkg/config"
	"github.com/loomctl/loom/pkg/eventbus"
	"github.com/loomctl/loom/pkg/identity"
	"github.com/loomctl/loom/pkg/kb"
	"github.com/loomctl/loom/pkg/modelrouter"
	"github.com/loomctl/loom/pkg/scheduler"
	"github.com/loomctl/loom/pkg/sor"
	"github.com/loomctl/loom/pkg/store"
	"github.com/loomctl/loom/pkg/tenancy"
	"github.com/loomctl/loom/pkg/vault"
	"github.com/loomctl/loom/pkg/version"
	"github.com/loomctl/loom/pkg/workspace"
)

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	cfg       *config.Config
	store     *store.Store
	verifier  *identity.Verifier
	chat      *chat.Service
	activity  *activity.Service
	sor       *sor.Service
	kb        *kb.Service
	workspace *workspace.Store
	vault     *vault.Vault
	scheduler *scheduler.Scheduler
	bus       *eventbus.Bus
	router    *modelrouter.Router

	meetings *meetingRegistry
}

// NewServer wires every domain package into routes and middleware.
func NewServer(
	cfg *config.Config,
	st *store.Store,
	verifier *identity.Verifier,
	chatSvc *chat.Service,
	activitySvc *activity.Service,
	sorSvc *sor.Service,
	kbSvc *kb.Service,
	ws *workspace.Store,
	vlt *vault.Vault,
	sched *scheduler.Scheduler,
	bus *eventbus.Bus,
	router *modelrouter.Router,
) *Server {
	e := echo.New()
	e.HTTPErrorHandler = httpErrorHandler

	s := &Server{
		echo:      e,
		cfg:       cfg,
		store:     st,
		verifier:  verifier,
		chat:      chatSvc,
		activity:  activitySvc,
		sor:       sorSvc,
		kb:        kbSvc,
		workspace: ws,
		vault:     vlt,
		scheduler: sched,
		bus:       bus,
		router:    router,
		meetings:  newMeetingRegistry(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers every route group. Exempt from the X-Team-Id
// requirement, per the external interface contract: health, platform
// config, team list/create/delete, and notifications.
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(10 << 20))
	s.echo.Use(securityHeaders())
	if len(s.cfg.CORSOrigins) > 0 {
		s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: s.cfg.CORSOrigins,
		}))
	}

	s.echo.GET("/health", s.healthHandler)

	v1 := s.echo.Group("/api/v1")
	v1.Use(authMiddleware(s.verifier))

	v1.GET("/config", s.platformConfigHandler)
	v1.POST("/teams", s.createTeamHandler)
	v1.GET("/teams", s.listTeamsHandler)
	v1.DELETE("/teams/:team_id", s.deleteTeamHandler)
	v1.GET("/notifications", s.listNotificationsHandler)
	v1.POST("/notifications/:id/read", s.markNotificationReadHandler)

	lookup := membershipLookup{store: s.store}
	scoped := v1.Group("")
	scoped.Use(tenancy.RequireTeamHeader(lookup))

	registerAgentRoutes(scoped, s)
	registerTaskRoutes(scoped, s)
	registerGoalRoutes(scoped, s)
	registerApprovalRoutes(scoped, s)
	registerChatRoutes(scoped, s)
	registerKBRoutes(scoped, s)
	registerSORRoutes(scoped, s)
	registerCredentialRoutes(scoped, s)
	registerWorkspaceRoutes(scoped, s)
	registerActivityRoutes(scoped, s)

	registerMeetingRoutes(v1, s)
}

func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

type healthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
}

func (s *Server) healthHandler(c *echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	status := "healthy"
	if err := s.store.Health(ctx); err != nil {
		dbStatus = "unhealthy"
		status = "unhealthy"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, healthResponse{Status: status, Version: version.Full(), Database: dbStatus})
}

type platformConfigResponse struct {
	HostedMode  bool     `json:"hosted_mode"`
	CORSOrigins []string `json:"cors_origins"`
}

func (s *Server) platformConfigHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, platformConfigResponse{
		HostedMode:  s.cfg.HostedMode,
		CORSOrigins: s.cfg.CORSOrigins,
	})
}
