// Package heartbeat implements scheduler.Runner: the proactive-agent
// content that runs on every heartbeat tick once the scheduler's gates
// (tenant active, credits, active hours) have passed. It builds the
// structured self-review prompt, runs the ReAct loop, and disposes of the
// result — discarding a no-op answer, otherwise posting it to the agent's
// DM channel and logging an activity event.
package heartbeat

import (
	"context"
	"strings"

	"github.com/loomctl/loom/pkg/agent"
	"github.com/loomctl/loom/pkg/agent/controller"
	"github.com/loomctl/loom/pkg/store"
)

const noOpSentinel = "[no-op]"

const selfReviewPrompt = `This is a scheduled proactive heartbeat, not a user message. Review your
current state and decide whether anything needs doing right now.

Work through these steps in order:
1. Assess: what has changed since your last heartbeat? Check your tasks, goals, and recent messages.
2. Prioritize: of anything outstanding, what matters most right now?
3. Plan: what is the single best next action?
4. Execute: take that action using your tools, or conclude there is nothing to do.

Using the think tool first to reason through steps 1-3 is encouraged before taking any action.

If, after this review, there is truly nothing worth doing or reporting, respond with exactly
"[no-op]" and nothing else, once you are done calling tools. Otherwise your final response should
summarize what you did or decided, suitable for posting to your own activity feed.`

// ChatPoster posts the heartbeat's final answer to the agent's DM channel.
// Narrowed from pkg/chat.Service so this package doesn't depend on it
// directly.
type ChatPoster interface {
	GetOrCreateDM(ctx context.Context, teamID, userID, agentID string) (*store.ChatChannel, error)
	Post(ctx context.Context, teamID, channelID, senderKind string, senderID *string, content string) (*store.ChatMessage, error)
}

// ActivityLogger records the heartbeat_proactive audit event.
type ActivityLogger interface {
	Log(ctx context.Context, teamID string, agentID *string, eventType string, detail map[string]any) error
}

// ExecCtxBuilder constructs the per-run ExecutionContext for an agent —
// supplied by the composition root, which alone knows how to wire the
// model router, tool registry, and credit ledger for a given agent.
type ExecCtxBuilder func(ctx context.Context, a store.Agent) (*agent.ExecutionContext, error)

type Runner struct {
	chat      ChatPoster
	activity  ActivityLogger
	buildExec ExecCtxBuilder
}

func New(chat ChatPoster, activity ActivityLogger, buildExec ExecCtxBuilder) *Runner {
	return &Runner{chat: chat, activity: activity, buildExec: buildExec}
}

// RunHeartbeat implements scheduler.Runner.
func (r *Runner) RunHeartbeat(ctx context.Context, a store.Agent) error {
	execCtx, err := r.buildExec(ctx, a)
	if err != nil {
		return err
	}
	execCtx.SystemPrompt = execCtx.SystemPrompt + "\n\n" + selfReviewPrompt

	result, err := controller.Run(ctx, execCtx)
	if err != nil {
		return err
	}
	if result.Status != agent.ExecutionStatusCompleted {
		return nil
	}

	answer := strings.TrimSpace(result.FinalAnswer)
	if answer == "" || answer == noOpSentinel || strings.Contains(answer, noOpSentinel) {
		return nil
	}

	channel, err := r.chat.GetOrCreateDM(ctx, a.TeamID, a.CreatedBy, a.ID)
	if err != nil {
		return err
	}
	agentID := a.ID
	if _, err := r.chat.Post(ctx, a.TeamID, channel.ID, "agent", &agentID, answer); err != nil {
		return err
	}

	return r.activity.Log(ctx, a.TeamID, &agentID, "heartbeat_proactive", map[string]any{
		"answer":     answer,
		"iterations": result.Iterations,
	})
}
