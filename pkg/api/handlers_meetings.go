package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/loomctl/loom/pkg/apperr"
	"github.com/loomctl/loom/pkg/meeting"
	"github.com/loomctl/loom/pkg/tenancy"
)

// meetingRegistry holds in-memory handles for every running meeting.
// Meetings are ephemeral process state, not store rows: once the process
// restarts a meeting's history is gone along with the goroutine driving it.
type meetingRegistry struct {
	mu sync.Mutex
	m  map[string]*meeting.Meeting
}

func newMeetingRegistry() *meetingRegistry {
	return &meetingRegistry{m: make(map[string]*meeting.Meeting)}
}

func (r *meetingRegistry) put(mtg *meeting.Meeting) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[mtg.ID] = mtg
}

func (r *meetingRegistry) get(id string) (*meeting.Meeting, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mtg, ok := r.m[id]
	return mtg, ok
}

func registerMeetingRoutes(v1 *echo.Group, s *Server) {
	scoped := v1.Group("/teams/:team_id/meetings")
	scoped.Use(bindTeamFromPath(membershipLookup{store: s.store}))

	scoped.POST("", s.startMeetingHandler)
	scoped.GET("/:id/stream", s.streamMeetingHandler)
	scoped.POST("/:id/message", s.interjectMeetingHandler)
	scoped.POST("/:id/voice", s.voiceMeetingHandler)
	scoped.POST("/:id/raise-hand", s.raiseHandMeetingHandler)
}

// bindTeamFromPath binds tenancy from the :team_id path segment instead of
// the X-Team-Id header — meetings are addressed by a team-scoped URL (the
// browser navigates to it directly), unlike every other resource group.
func bindTeamFromPath(lookup membershipLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			req := c.Request()
			userID := tenancy.UserID(req.Context())
			if userID == "" {
				return apperr.Unauthenticatedf("no authenticated user bound to request")
			}
			teamID := c.PathParam("team_id")
			role, isMember, err := lookup.GetMembership(req.Context(), teamID, userID)
			if err != nil {
				return err
			}
			if !isMember {
				return apperr.NotFoundf("team %s", teamID)
			}
			ctx := tenancy.Bind(req.Context(), userID, teamID, role)
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

type startMeetingRequest struct {
	Type           string   `json:"type"`
	Title          string   `json:"title"`
	AgentIDs       []string `json:"agent_ids"`
	AdvisorAgentID string   `json:"advisor_agent_id"`
	CompanyName    string   `json:"company_name"`
	MaxTurns       int      `json:"max_turns"`
}

// startMeetingHandler handles POST /api/v1/teams/:team_id/meetings. It
// starts the meeting's turn-taking loop in the background and returns
// immediately with the meeting id the caller then opens an SSE stream for.
func (s *Server) startMeetingHandler(c *echo.Context) error {
	var req startMeetingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.AgentIDs) == 0 {
		return apperr.InvalidInputf("at least one agent is required")
	}
	if req.AdvisorAgentID == "" {
		req.AdvisorAgentID = req.AgentIDs[0]
	}
	maxTurns := req.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 20
	}

	ctx := c.Request().Context()
	teamID := tenancy.TeamID(ctx)

	agentModels := make(map[string]string, len(req.AgentIDs))
	for _, id := range req.AgentIDs {
		a, err := s.store.GetAgent(ctx, teamID, id)
		if err != nil {
			return err
		}
		agentModels[id] = a.ModelID
	}

	mtg := meeting.New(s.bus, meeting.Params{
		TeamID:         teamID,
		Type:           req.Type,
		Title:          req.Title,
		AgentIDs:       req.AgentIDs,
		AdvisorAgentID: req.AdvisorAgentID,
		CompanyName:    req.CompanyName,
	})
	s.meetings.put(mtg)

	go mtg.Run(context.Background(), s.router, maxTurns,
		func(agentID string) string { return agentModels[agentID] },
		func(speakerID string, transcript []meeting.Event) string {
			return fmt.Sprintf(
				"You are agent %s participating in a %q meeting titled %q at %s. Speak in character, respond to the discussion so far, and keep your turn concise.",
				speakerID, req.Type, req.Title, req.CompanyName)
		})

	return c.JSON(http.StatusCreated, map[string]string{"meeting_id": mtg.ID, "subject": mtg.Subject()})
}

// streamMeetingHandler handles GET /api/v1/teams/:team_id/meetings/:id/stream
// as a server-sent-events feed: it subscribes to the meeting's event-bus
// subject and re-emits each frame until the client disconnects.
func (s *Server) streamMeetingHandler(c *echo.Context) error {
	mtg, ok := s.meetings.get(c.PathParam("id"))
	if !ok {
		return apperr.NotFoundf("meeting %s", c.PathParam("id"))
	}

	resp := c.Response()
	resp.Header().Set("Content-Type", "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	flush := func(data []byte) {
		fmt.Fprintf(resp, "data: %s\n\n", data)
		if f, ok := resp.Writer.(interface{ Flush() }); ok {
			f.Flush()
		}
	}

	sub, err := s.bus.Subscribe(mtg.Subject(), flush)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "subscribe to meeting stream")
	}
	defer sub.Unsubscribe()

	go meeting.Keepalive(ctx, 15*time.Second, func() {
		fmt.Fprint(resp, ": keepalive\n\n")
		if f, ok := resp.Writer.(interface{ Flush() }); ok {
			f.Flush()
		}
	})

	<-ctx.Done()
	return nil
}

type interjectMeetingRequest struct {
	Text string `json:"text"`
}

func (s *Server) interjectMeetingHandler(c *echo.Context) error {
	mtg, ok := s.meetings.get(c.PathParam("id"))
	if !ok {
		return apperr.NotFoundf("meeting %s", c.PathParam("id"))
	}
	var req interjectMeetingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Text == "" {
		return apperr.InvalidInputf("text is required")
	}
	mtg.Interject(req.Text)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) voiceMeetingHandler(c *echo.Context) error {
	mtg, ok := s.meetings.get(c.PathParam("id"))
	if !ok {
		return apperr.NotFoundf("meeting %s", c.PathParam("id"))
	}
	audio, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return apperr.InvalidInputf("could not read audio body: %v", err)
	}
	if err := mtg.InjectVoice(c.Request().Context(), s.router, audio); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) raiseHandMeetingHandler(c *echo.Context) error {
	mtg, ok := s.meetings.get(c.PathParam("id"))
	if !ok {
		return apperr.NotFoundf("meeting %s", c.PathParam("id"))
	}
	mtg.RaiseHand()
	return c.NoContent(http.StatusNoContent)
}
