package main

import (
	"context"
	"encoding/json"

	"github.com/loomctl/loom/pkg/activity"
	"github.com/loomctl/loom/pkg/store"
)

// taskStoreAdapter and goalStoreAdapter bind pkg/tools.TaskStore/GoalStore
// (flat string-returning method sets, for feeding a model's ReAct loop) to
// the team a running agent belongs to.
type taskStoreAdapter struct {
	store  *store.Store
	teamID string
}

func (a taskStoreAdapter) CreateTask(ctx context.Context, title, description, priority string) (string, error) {
	t, err := a.store.CreateTask(ctx, store.CreateTaskParams{
		TeamID:      a.teamID,
		Title:       title,
		Description: description,
		Priority:    priority,
	})
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

func (a taskStoreAdapter) UpdateTaskStatus(ctx context.Context, taskID, status string) error {
	_, err := a.store.UpdateTask(ctx, a.teamID, taskID, store.UpdateTaskParams{Status: &status})
	return err
}

func (a taskStoreAdapter) ListTasks(ctx context.Context, status string) (string, error) {
	tasks, err := a.store.ListTasks(ctx, a.teamID, store.ListTasksFilter{Status: status})
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(tasks)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type goalStoreAdapter struct {
	store  *store.Store
	teamID string
}

func (a goalStoreAdapter) ListGoals(ctx context.Context) (string, error) {
	goals, err := a.store.ListGoals(ctx, a.teamID)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(goals)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// approvalAdapter bridges pkg/activity.Service's (approved, waitCreated, err)
// shape to pkg/tools.ApprovalRequester's single textual observation the
// model sees — the same "errors and pending states are content, not
// control flow" convention the ReAct loop uses everywhere else.
type approvalAdapter struct {
	activity *activity.Service
	teamID   string
	agentID  string
}

func (a approvalAdapter) RequestApproval(ctx context.Context, actionType, justification, riskLevel string) (string, error) {
	detail := map[string]any{"justification": justification}
	approved, waitCreated, err := a.activity.RequireApproval(ctx, a.teamID, a.agentID, actionType, detail, riskLevel)
	if err != nil {
		return "", err
	}
	if waitCreated {
		return "approval requested; action paused until a human resolves it", nil
	}
	if !approved {
		return "approval request was rejected; this action may not be taken", nil
	}
	return "approved", nil
}

// creditLedgerAdapter satisfies pkg/agent.CreditLedger over
// pkg/store.Store's DeductCredits/RefundCredits, which carry the full
// (teamID, agentID, amount, correlationID) signature the controller's
// narrower interface also needs, just under different method names.
type creditLedgerAdapter struct {
	store *store.Store
}

func (a creditLedgerAdapter) Deduct(ctx context.Context, teamID string, agentID *string, amount int64, correlationID string) error {
	return a.store.DeductCredits(ctx, teamID, agentID, amount, correlationID)
}

func (a creditLedgerAdapter) Refund(ctx context.Context, teamID string, agentID *string, amount int64, correlationID string) error {
	return a.store.RefundCredits(ctx, teamID, agentID, amount, correlationID)
}
