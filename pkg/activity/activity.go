// Package activity implements the append-only audit log and the
// pending/approved/rejected approval state machine that gates high-risk
// tool calls: RequireApproval opens a new approval, checks a standing
// approval for an auto-allow, and treats a standing rejection as a
// permanent, non-re-enqueuing refusal.
package activity

import (
	"context"

	"github.com/loomctl/loom/pkg/apperr"
	"github.com/loomctl/loom/pkg/store"
)

type Service struct {
	store *store.Store
}

func New(s *store.Store) *Service {
	return &Service{store: s}
}

func (s *Service) Log(ctx context.Context, teamID string, agentID *string, eventType string, detail map[string]any) error {
	return s.store.AppendActivity(ctx, teamID, agentID, eventType, store.JSONObject(detail))
}

func (s *Service) List(ctx context.Context, teamID string, beforeID int64, limit int) ([]store.ActivityEvent, error) {
	return s.store.ListActivity(ctx, teamID, beforeID, limit)
}

// RequireApproval implements the agent.ApprovalGate interface consumed by
// the ReAct controller.
//
//   - A standing approved resolution for this action_type auto-allows
//     further calls without opening a new request.
//   - A standing rejected resolution permanently refuses further calls
//     without opening a new request — per spec, "does not re-enqueue".
//   - Otherwise a new pending approval is opened and the call is
//     suspended until a human resolves it.
func (s *Service) RequireApproval(ctx context.Context, teamID, agentID, actionType string, detail map[string]any, riskLevel string) (approved bool, waitCreated bool, err error) {
	resolved, err := s.store.FindLatestResolvedApproval(ctx, agentID, actionType)
	if err != nil {
		return false, false, err
	}
	if resolved != nil {
		return resolved.Status == "approved", false, nil
	}

	if _, err := s.store.CreateApproval(ctx, store.CreateApprovalParams{
		TeamID:       teamID,
		AgentID:      agentID,
		ActionType:   actionType,
		ActionDetail: store.JSONObject(detail),
		RiskLevel:    riskLevel,
	}); err != nil {
		return false, false, err
	}
	return false, true, nil
}

func (s *Service) ListPending(ctx context.Context, teamID string) ([]store.Approval, error) {
	return s.store.ListPendingApprovals(ctx, teamID)
}

// Resolve transitions a pending approval to approved or rejected. status
// must be one of those two values; anything else is a programming error
// at the caller, not a domain condition, so it's rejected as InvalidInput.
func (s *Service) Resolve(ctx context.Context, teamID, approvalID, status string) (*store.Approval, error) {
	if status != "approved" && status != "rejected" {
		return nil, apperr.InvalidInputf("status must be approved or rejected, got %q", status)
	}
	return s.store.ResolveApproval(ctx, teamID, approvalID, status)
}
