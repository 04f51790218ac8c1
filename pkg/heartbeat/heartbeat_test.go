package heartbeat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomctl/loom/pkg/agent"
	"github.com/loomctl/loom/pkg/store"
)

type stubChat struct {
	posted  []string
	channel store.ChatChannel
}

func (c *stubChat) GetOrCreateDM(ctx context.Context, teamID, userID, agentID string) (*store.ChatChannel, error) {
	return &c.channel, nil
}

func (c *stubChat) Post(ctx context.Context, teamID, channelID, senderKind string, senderID *string, content string) (*store.ChatMessage, error) {
	c.posted = append(c.posted, content)
	return &store.ChatMessage{ID: int64(len(c.posted))}, nil
}

type stubActivity struct {
	events []string
}

func (a *stubActivity) Log(ctx context.Context, teamID string, agentID *string, eventType string, detail map[string]any) error {
	a.events = append(a.events, eventType)
	return nil
}

type stubModelClient struct {
	text string
}

func (c *stubModelClient) ChatCompletion(ctx context.Context, req agent.ChatRequest) (*agent.ChatResponse, error) {
	return &agent.ChatResponse{Text: c.text}, nil
}

type stubToolExecutor struct{}

func (s *stubToolExecutor) Execute(ctx context.Context, call agent.ToolCall) (*agent.ToolResult, error) {
	return &agent.ToolResult{CallID: call.ID, Name: call.Name}, nil
}

func (s *stubToolExecutor) ListTools(ctx context.Context) ([]agent.ToolDefinition, error) {
	return nil, nil
}

func newExecCtxBuilder(text string) ExecCtxBuilder {
	return func(ctx context.Context, a store.Agent) (*agent.ExecutionContext, error) {
		return &agent.ExecutionContext{
			TeamID:       a.TeamID,
			AgentID:      a.ID,
			SystemPrompt: a.SystemPrompt,
			SkipCredits:  true,
			ModelClient:  &stubModelClient{text: text},
			ToolExecutor: &stubToolExecutor{},
		}, nil
	}
}

func TestRunner_RunHeartbeat_NoOpIsDiscarded(t *testing.T) {
	chat := &stubChat{}
	act := &stubActivity{}
	r := New(chat, act, newExecCtxBuilder("[no-op]"))

	err := r.RunHeartbeat(context.Background(), store.Agent{ID: "a1", TeamID: "t1", CreatedBy: "u1"})
	require.NoError(t, err)

	assert.Empty(t, chat.posted)
	assert.Empty(t, act.events)
}

func TestRunner_RunHeartbeat_PostsAndLogsNonNoOpAnswer(t *testing.T) {
	chat := &stubChat{channel: store.ChatChannel{ID: "ch1"}}
	act := &stubActivity{}
	r := New(chat, act, newExecCtxBuilder("checked the task queue, nothing urgent, filed a summary"))

	err := r.RunHeartbeat(context.Background(), store.Agent{ID: "a1", TeamID: "t1", CreatedBy: "u1"})
	require.NoError(t, err)

	require.Len(t, chat.posted, 1)
	assert.Contains(t, chat.posted[0], "filed a summary")
	require.Len(t, act.events, 1)
	assert.Equal(t, "heartbeat_proactive", act.events[0])
}
