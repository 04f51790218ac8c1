package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/loomctl/loom/pkg/apperr"
)

type CreateAgentParams struct {
	TeamID           string
	Name             string
	Department       *string
	ModelID          string
	SystemPrompt     string
	Proactive        bool
	HeartbeatSeconds int
	ActiveHoursStart int
	ActiveHoursEnd   int
	TemplateID       *string
	SkipCredits      bool
	CreatedBy        string
}

func (s *Store) CreateAgent(ctx context.Context, p CreateAgentParams) (*Agent, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (id, team_id, name, department, model_id, system_prompt,
		                     proactive, heartbeat_seconds, active_hours_start, active_hours_end,
		                     template_id, skip_credits, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		id, p.TeamID, p.Name, p.Department, p.ModelID, p.SystemPrompt,
		p.Proactive, p.HeartbeatSeconds, p.ActiveHoursStart, p.ActiveHoursEnd,
		p.TemplateID, p.SkipCredits, p.CreatedBy)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "create agent")
	}
	return s.GetAgent(ctx, p.TeamID, id)
}

// GetAgent fetches an agent scoped to a team; a row owned by another team
// returns NotFound, never Forbidden, per the ownership invariant.
func (s *Store) GetAgent(ctx context.Context, teamID, agentID string) (*Agent, error) {
	var a Agent
	err := s.db.GetContext(ctx, &a,
		`SELECT * FROM agents WHERE id = $1 AND team_id = $2`, agentID, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("agent %s", agentID)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "get agent")
	}
	return &a, nil
}

// GetAgentByID fetches an agent without a tenant filter — for internal
// scheduler/controller paths that already hold a trusted agent id.
func (s *Store) GetAgentByID(ctx context.Context, agentID string) (*Agent, error) {
	var a Agent
	err := s.db.GetContext(ctx, &a, `SELECT * FROM agents WHERE id = $1`, agentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("agent %s", agentID)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "get agent by id")
	}
	return &a, nil
}

func (s *Store) ListAgents(ctx context.Context, teamID string) ([]Agent, error) {
	var agents []Agent
	err := s.db.SelectContext(ctx, &agents,
		`SELECT * FROM agents WHERE team_id = $1 ORDER BY created_at`, teamID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list agents")
	}
	return agents, nil
}

// ListProactiveAgents returns every running, proactive agent across all
// tenants — the scheduler's full population at boot and on periodic resync.
func (s *Store) ListProactiveAgents(ctx context.Context) ([]Agent, error) {
	var agents []Agent
	err := s.db.SelectContext(ctx, &agents,
		`SELECT * FROM agents WHERE status = 'running' AND proactive = TRUE`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list proactive agents")
	}
	return agents, nil
}

type UpdateAgentParams struct {
	Name             *string
	Department       *string
	ModelID          *string
	SystemPrompt     *string
	Proactive        *bool
	HeartbeatSeconds *int
	ActiveHoursStart *int
	ActiveHoursEnd   *int
	SkipCredits      *bool
}

func (s *Store) UpdateAgent(ctx context.Context, teamID, agentID string, p UpdateAgentParams) (*Agent, error) {
	a, err := s.GetAgent(ctx, teamID, agentID)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Department != nil {
		a.Department = p.Department
	}
	if p.ModelID != nil {
		a.ModelID = *p.ModelID
	}
	if p.SystemPrompt != nil {
		a.SystemPrompt = *p.SystemPrompt
	}
	if p.Proactive != nil {
		a.Proactive = *p.Proactive
	}
	if p.HeartbeatSeconds != nil {
		a.HeartbeatSeconds = *p.HeartbeatSeconds
	}
	if p.ActiveHoursStart != nil {
		a.ActiveHoursStart = *p.ActiveHoursStart
	}
	if p.ActiveHoursEnd != nil {
		a.ActiveHoursEnd = *p.ActiveHoursEnd
	}
	if p.SkipCredits != nil {
		a.SkipCredits = *p.SkipCredits
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE agents SET name=$1, department=$2, model_id=$3, system_prompt=$4,
		       proactive=$5, heartbeat_seconds=$6, active_hours_start=$7,
		       active_hours_end=$8, skip_credits=$9, updated_at=NOW()
		WHERE id=$10 AND team_id=$11`,
		a.Name, a.Department, a.ModelID, a.SystemPrompt, a.Proactive,
		a.HeartbeatSeconds, a.ActiveHoursStart, a.ActiveHoursEnd, a.SkipCredits,
		agentID, teamID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "update agent")
	}
	return s.GetAgent(ctx, teamID, agentID)
}

func (s *Store) SetAgentStatus(ctx context.Context, teamID, agentID, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE agents SET status=$1, updated_at=NOW() WHERE id=$2 AND team_id=$3`,
		status, agentID, teamID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "set agent status")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFoundf("agent %s", agentID)
	}
	return nil
}

func (s *Store) SetInstalledSkills(ctx context.Context, teamID, agentID string, skills JSONArray) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE agents SET installed_skills=$1, updated_at=NOW() WHERE id=$2 AND team_id=$3`,
		skills, agentID, teamID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "set installed skills")
	}
	return nil
}

func (s *Store) DeleteAgent(ctx context.Context, teamID, agentID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM agents WHERE id=$1 AND team_id=$2`, agentID, teamID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "delete agent")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFoundf("agent %s", agentID)
	}
	return nil
}
