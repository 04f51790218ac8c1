package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/loomctl/loom/pkg/apperr"
)

type CreateApprovalParams struct {
	TeamID       string
	AgentID      string
	ActionType   string
	ActionDetail JSONObject
	RiskLevel    string
}

func (s *Store) CreateApproval(ctx context.Context, p CreateApprovalParams) (*Approval, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO approvals (id, team_id, agent_id, action_type, action_detail, risk_level)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		id, p.TeamID, p.AgentID, p.ActionType, p.ActionDetail, p.RiskLevel)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "create approval")
	}
	return s.GetApproval(ctx, p.TeamID, id)
}

func (s *Store) GetApproval(ctx context.Context, teamID, id string) (*Approval, error) {
	var a Approval
	err := s.db.GetContext(ctx, &a,
		`SELECT * FROM approvals WHERE id = $1 AND team_id = $2`, id, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("approval %s", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "get approval")
	}
	return &a, nil
}

func (s *Store) ListPendingApprovals(ctx context.Context, teamID string) ([]Approval, error) {
	var approvals []Approval
	err := s.db.SelectContext(ctx, &approvals,
		`SELECT * FROM approvals WHERE team_id = $1 AND status = 'pending' ORDER BY created_at`,
		teamID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list pending approvals")
	}
	return approvals, nil
}

// FindStandingApproval looks for a previously approved request of the same
// action_type for the agent. Nothing calls it: pkg/activity's approval gate
// uses FindLatestResolvedApproval.
func (s *Store) FindStandingApproval(ctx context.Context, agentID, actionType string) (*Approval, error) {
	var a Approval
	err := s.db.GetContext(ctx, &a, `
		SELECT * FROM approvals
		WHERE agent_id = $1 AND action_type = $2 AND status = 'approved'
		ORDER BY resolved_at DESC LIMIT 1`, agentID, actionType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "find standing approval")
	}
	return &a, nil
}

// FindLatestResolvedApproval returns the most recently resolved approval
// (approved or rejected) for an agent's action_type, regardless of
// outcome — used to detect a standing rejection so a refused action never
// re-enqueues a fresh approval request.
func (s *Store) FindLatestResolvedApproval(ctx context.Context, agentID, actionType string) (*Approval, error) {
	var a Approval
	err := s.db.GetContext(ctx, &a, `
		SELECT * FROM approvals
		WHERE agent_id = $1 AND action_type = $2 AND status IN ('approved','rejected')
		ORDER BY resolved_at DESC LIMIT 1`, agentID, actionType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "find latest resolved approval")
	}
	return &a, nil
}

// ResolveApproval transitions a pending approval to approved or rejected.
// It refuses to resolve an approval twice.
func (s *Store) ResolveApproval(ctx context.Context, teamID, id, status string) (*Approval, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE approvals SET status=$1, resolved_at=NOW()
		WHERE id=$2 AND team_id=$3 AND status='pending'`, status, id, teamID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "resolve approval")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, getErr := s.GetApproval(ctx, teamID, id); getErr != nil {
			return nil, getErr
		}
		return nil, apperr.Conflictf("approval %s already resolved", id)
	}
	return s.GetApproval(ctx, teamID, id)
}
