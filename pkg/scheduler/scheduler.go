// Package scheduler runs the heartbeat control loop: one timer per running
// proactive agent, staggered within its (tenant, heartbeat_seconds) bucket
// to avoid thundering herds on shared external APIs. Scheduler state is a
// single mutex-guarded map; every other component reaches it only through
// Start/Stop/Schedule/Unschedule/TriggerNow.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loomctl/loom/pkg/apperr"
	"github.com/loomctl/loom/pkg/store"
)

// Runner executes one heartbeat tick for an agent. Implemented by the
// composition root on top of pkg/agent/controller.
type Runner interface {
	RunHeartbeat(ctx context.Context, agent store.Agent) error
}

type Scheduler struct {
	store  *store.Store
	runner Runner
	hosted bool

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func New(s *store.Store, runner Runner, hosted bool) *Scheduler {
	return &Scheduler{
		store:  s,
		runner: runner,
		hosted: hosted,
		timers: map[string]*time.Timer{},
	}
}

// Start enumerates every running, proactive agent and registers staggered
// timers bucketed by (team, heartbeat period).
func (s *Scheduler) Start(ctx context.Context) error {
	agents, err := s.store.ListProactiveAgents(ctx)
	if err != nil {
		return err
	}

	buckets := map[string][]store.Agent{}
	for _, a := range agents {
		key := fmt.Sprintf("%s:%d", a.TeamID, a.HeartbeatSeconds)
		buckets[key] = append(buckets[key], a)
	}

	for _, bucket := range buckets {
		n := len(bucket)
		for k, a := range bucket {
			period := time.Duration(a.HeartbeatSeconds) * time.Second
			initialDelay := time.Duration(k) * (period / time.Duration(n))
			s.scheduleWithDelay(ctx, a, initialDelay)
		}
	}
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// Schedule (re)registers one agent's timer on its own period, starting
// immediately (no stagger — stagger only applies at bulk Start).
func (s *Scheduler) Schedule(ctx context.Context, a store.Agent) {
	s.scheduleWithDelay(ctx, a, 0)
}

func (s *Scheduler) scheduleWithDelay(ctx context.Context, a store.Agent, delay time.Duration) {
	period := time.Duration(a.HeartbeatSeconds) * time.Second
	if period <= 0 {
		period = time.Minute
	}

	s.mu.Lock()
	if existing, ok := s.timers[a.ID]; ok {
		existing.Stop()
	}
	var fire func()
	fire = func() {
		s.tick(ctx, a.ID)
		s.mu.Lock()
		if _, stillScheduled := s.timers[a.ID]; stillScheduled {
			s.timers[a.ID] = time.AfterFunc(period, fire)
		}
		s.mu.Unlock()
	}
	s.timers[a.ID] = time.AfterFunc(delay, fire)
	s.mu.Unlock()
}

func (s *Scheduler) Unschedule(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[agentID]; ok {
		t.Stop()
		delete(s.timers, agentID)
	}
}

// TriggerNow fires a single heartbeat immediately by replacing the timer
// with a zero-offset reschedule. Refuses if the target agent is not
// running or belongs to a different tenant than the caller claims.
func (s *Scheduler) TriggerNow(ctx context.Context, agentID, teamID string) error {
	agent, err := s.store.GetAgent(ctx, teamID, agentID)
	if err != nil {
		return err
	}
	if agent.Status != "running" {
		return apperr.InvalidInputf("agent %s is not running", agentID)
	}
	s.scheduleWithDelay(ctx, *agent, 0)
	return nil
}

// tick runs one heartbeat for agentID, skipping per spec §4.5's gates:
// tenant inactive (hosted mode only), insufficient credits, or outside
// active hours.
func (s *Scheduler) tick(ctx context.Context, agentID string) {
	agent, err := s.store.GetAgentByID(ctx, agentID)
	if err != nil {
		slog.Warn("scheduler: agent disappeared, unscheduling", "agent_id", agentID, "error", err)
		s.Unschedule(agentID)
		return
	}
	if agent.Status != "running" {
		s.Unschedule(agentID)
		return
	}

	if s.hosted {
		sub, err := s.store.GetSubscription(ctx, agent.TeamID)
		if err != nil {
			slog.Error("scheduler: load subscription failed", "team_id", agent.TeamID, "error", err)
			return
		}
		if !sub.Active && sub.CreditBalance <= 0 {
			slog.Info("heartbeat skipped: tenant inactive", "agent_id", agentID, "team_id", agent.TeamID)
			return
		}
		if !agent.SkipCredits && sub.CreditBalance < 1 {
			slog.Info("heartbeat skipped: insufficient credits", "agent_id", agentID, "team_id", agent.TeamID)
			return
		}
	}

	hour := time.Now().UTC().Hour()
	if !withinActiveHours(hour, agent.ActiveHoursStart, agent.ActiveHoursEnd) {
		return
	}

	if !agent.Proactive {
		return
	}

	if err := s.runner.RunHeartbeat(ctx, *agent); err != nil {
		slog.Error("heartbeat run failed", "agent_id", agentID, "error", err)
	}
}

// withinActiveHours reports whether hour falls in [start, end), handling
// the wraparound case where end <= start (an overnight window).
func withinActiveHours(hour, start, end int) bool {
	if start == end {
		return true
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}
