package meeting

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomctl/loom/pkg/agent"
)

type stubClient struct {
	calls []string
	text  string
}

func (c *stubClient) ChatCompletion(ctx context.Context, req agent.ChatRequest) (*agent.ChatResponse, error) {
	c.calls = append(c.calls, req.ModelID)
	return &agent.ChatResponse{Text: c.text}, nil
}

func TestMeeting_SpeakerOrder_AdvisorFirst(t *testing.T) {
	m := New(nil, Params{
		AgentIDs:       []string{"a1", "a2", "a3"},
		AdvisorAgentID: "a2",
	})

	order := m.speakerOrder()
	assert.Equal(t, []string{"a2", "a1", "a3"}, order)
}

func TestMeeting_Run_RoundRobinAndEvents(t *testing.T) {
	m := New(nil, Params{
		AgentIDs:       []string{"a1", "a2"},
		AdvisorAgentID: "a1",
	})
	client := &stubClient{text: "hello"}

	m.Run(context.Background(), client, 4,
		func(agentID string) string { return "model-" + agentID },
		func(speakerID string, transcript []Event) string { return "prompt" })

	require.Equal(t, []string{"model-a1", "model-a2", "model-a1", "model-a2"}, client.calls)

	assert.Equal(t, EventMeetingEnd, m.transcript[len(m.transcript)-1].Type)
	assert.Equal(t, EventTurnStart, m.transcript[0].Type)
	assert.Equal(t, "a1", m.transcript[0].AgentID)
}

func TestMeeting_Run_NoAgents_EmitsMeetingEndOnly(t *testing.T) {
	m := New(nil, Params{})
	client := &stubClient{text: "hello"}

	m.Run(context.Background(), client, 3,
		func(agentID string) string { return "m" },
		func(speakerID string, transcript []Event) string { return "prompt" })

	require.Len(t, m.transcript, 1)
	assert.Equal(t, EventMeetingEnd, m.transcript[0].Type)
}

func TestMeeting_Interject_DrainsBetweenTurns(t *testing.T) {
	m := New(nil, Params{AgentIDs: []string{"a1"}, AdvisorAgentID: "a1"})
	client := &stubClient{text: "hi"}

	m.Interject("hello from a human")

	m.Run(context.Background(), client, 1,
		func(agentID string) string { return "m" },
		func(speakerID string, transcript []Event) string { return "prompt" })

	var sawHumanInjected bool
	for _, ev := range m.transcript {
		if ev.Type == EventHumanInjected && ev.Text == "hello from a human" {
			sawHumanInjected = true
		}
	}
	assert.True(t, sawHumanInjected)
}

func TestMeeting_RaiseHand_YieldsFloor(t *testing.T) {
	m := New(nil, Params{AgentIDs: []string{"a1", "a2"}, AdvisorAgentID: "a1"})
	client := &stubClient{text: "partial thought"}

	m.RaiseHand()
	m.Interject("wait, one thing")

	m.Run(context.Background(), client, 1,
		func(agentID string) string { return "m" },
		func(speakerID string, transcript []Event) string { return "prompt" })

	var sawHumanInjected, sawDelta bool
	for _, ev := range m.transcript {
		if ev.Type == EventHumanInjected {
			sawHumanInjected = true
		}
		if ev.Type == EventDelta {
			sawDelta = true
		}
	}
	assert.True(t, sawHumanInjected)
	assert.False(t, sawDelta, "raised hand should skip the delta event for the interrupted turn")
}

type stubTranscriber struct {
	text string
	err  error
}

func (s *stubTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return s.text, s.err
}

func TestMeeting_InjectVoice_NonEmptyTextEnqueues(t *testing.T) {
	m := New(nil, Params{})
	err := m.InjectVoice(context.Background(), &stubTranscriber{text: "spoken words"}, []byte("audio"))
	require.NoError(t, err)

	m.mu.Lock()
	defer m.mu.Unlock()
	require.Len(t, m.interjects, 1)
	assert.Equal(t, "spoken words", m.interjects[0])
}

func TestMeeting_InjectVoice_EmptyTextDoesNotEnqueue(t *testing.T) {
	m := New(nil, Params{})
	err := m.InjectVoice(context.Background(), &stubTranscriber{text: ""}, []byte("audio"))
	require.NoError(t, err)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.interjects)
}

func TestMeeting_Subject_ScopedPerMeeting(t *testing.T) {
	m1 := New(nil, Params{})
	m2 := New(nil, Params{})
	assert.NotEqual(t, m1.Subject(), m2.Subject())
	assert.Contains(t, m1.Subject(), m1.ID)
}
