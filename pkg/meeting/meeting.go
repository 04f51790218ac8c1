// Package meeting implements the real-time, in-process meeting
// orchestrator: round-robin turn-taking among agents with an advisor
// opening the floor, human interjection and raise-hand interruption, and a
// streamed event feed per meeting published over the event bus. The
// api package subscribes to that subject and re-emits frames over SSE —
// this package knows nothing about HTTP.
package meeting

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loomctl/loom/pkg/agent"
	"github.com/loomctl/loom/pkg/eventbus"
)

type EventType string

const (
	EventTurnStart     EventType = "turn_start"
	EventDelta         EventType = "delta"
	EventTurnEnd       EventType = "turn_end"
	EventHumanInjected EventType = "human_injected"
	EventMeetingEnd    EventType = "meeting_end"
)

type Event struct {
	Type    EventType `json:"type"`
	AgentID string    `json:"agent_id,omitempty"`
	Text    string    `json:"text,omitempty"`
}

// StreamingClient is the model call a meeting makes for each turn: one
// ChatCompletion that returns the whole turn's text. No token deltas are
// streamed.
type StreamingClient interface {
	ChatCompletion(ctx context.Context, req agent.ChatRequest) (*agent.ChatResponse, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

type Params struct {
	TeamID          string
	Type            string
	Title           string
	AgentIDs        []string
	AdvisorAgentID  string
	CompanyName     string
}

// Meeting holds one running meeting's state: the monotonic transcript, the
// round-robin order, and the pending interjection queue. Run starts no goroutine;
// mu guards this state, so Interject and RaiseHand may be called while Run
// is in progress.
type Meeting struct {
	ID     string
	Params Params

	bus     *eventbus.Bus
	subject string

	mu          sync.Mutex
	transcript  []Event
	interjects  []string
	raiseHand   bool
}

func New(bus *eventbus.Bus, p Params) *Meeting {
	id := uuid.NewString()
	return &Meeting{
		ID:      id,
		Params:  p,
		bus:     bus,
		subject: fmt.Sprintf("%s.%s", eventbus.SubjectMeetingTurn, id),
	}
}

// Interject enqueues a human message to be injected between turns.
func (m *Meeting) Interject(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interjects = append(m.interjects, text)
}

// RaiseHand requests the current turn yield the floor at the next safe
// boundary.
func (m *Meeting) RaiseHand() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raiseHand = true
}

// InjectVoice forwards audio to a transcription adapter and, if the result
// is non-empty, enqueues it as an interjection.
func (m *Meeting) InjectVoice(ctx context.Context, transcriber Transcriber, audio []byte) error {
	text, err := transcriber.Transcribe(ctx, audio)
	if err != nil {
		return err
	}
	if text != "" {
		m.Interject(text)
	}
	return nil
}

// Subject is the event-bus subject api subscribes to for this meeting's
// SSE stream.
func (m *Meeting) Subject() string {
	return m.subject
}

func (m *Meeting) publish(ev Event) {
	m.mu.Lock()
	m.transcript = append(m.transcript, ev)
	m.mu.Unlock()

	if m.bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_ = m.bus.Publish(m.subject, payload)
}

func (m *Meeting) drainInterjections() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	drained := m.interjects
	m.interjects = nil
	return drained
}

func (m *Meeting) takeRaiseHand() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	had := m.raiseHand
	m.raiseHand = false
	return had
}

// speakerOrder puts the advisor first, then every other agent in the order
// given.
func (m *Meeting) speakerOrder() []string {
	order := []string{m.Params.AdvisorAgentID}
	for _, id := range m.Params.AgentIDs {
		if id != m.Params.AdvisorAgentID {
			order = append(order, id)
		}
	}
	return order
}

// Run executes the meeting to completion (maxTurns) or until ctx is
// cancelled, invoking client once per agent turn and streaming the result
// as a single delta event (the shape a non-streaming ModelClient permits;
// a truly incremental client would emit multiple EventDelta per turn).
// modelFor resolves a speaking agent's configured model ID — the meeting
// itself only knows agent IDs, not model routing.
func (m *Meeting) Run(ctx context.Context, client StreamingClient, maxTurns int, modelFor func(agentID string) string, systemPrompt func(speakerID string, transcript []Event) string) {
	order := m.speakerOrder()
	if len(order) == 0 {
		m.publish(Event{Type: EventMeetingEnd})
		return
	}

	for turn := 0; turn < maxTurns; turn++ {
		select {
		case <-ctx.Done():
			m.publish(Event{Type: EventMeetingEnd})
			return
		default:
		}

		for _, msg := range m.drainInterjections() {
			m.publish(Event{Type: EventHumanInjected, Text: msg})
		}

		speaker := order[turn%len(order)]
		m.publish(Event{Type: EventTurnStart, AgentID: speaker})

		m.mu.Lock()
		snapshot := append([]Event(nil), m.transcript...)
		m.mu.Unlock()

		resp, err := client.ChatCompletion(ctx, agent.ChatRequest{
			ModelID: modelFor(speaker),
			Messages: []agent.ConversationMessage{
				{Role: agent.RoleSystem, Content: systemPrompt(speaker, snapshot)},
			},
		})
		if err != nil {
			m.publish(Event{Type: EventTurnEnd, AgentID: speaker, Text: "(error generating turn)"})
			continue
		}

		// A true token-streaming client would let raise-hand cut the turn off
		// mid-sentence; client here returns a complete turn, so the
		// approximation is to still publish the full turn then immediately
		// yield the floor to the queued interjection rather than mid-stream.
		if m.takeRaiseHand() {
			m.publish(Event{Type: EventTurnEnd, AgentID: speaker, Text: resp.Text})
			for _, msg := range m.drainInterjections() {
				m.publish(Event{Type: EventHumanInjected, Text: msg})
			}
			continue
		}

		m.publish(Event{Type: EventDelta, AgentID: speaker, Text: resp.Text})
		m.publish(Event{Type: EventTurnEnd, AgentID: speaker})
	}

	m.publish(Event{Type: EventMeetingEnd})
}

// Keepalive sends a ping event every interval until ctx is cancelled — the
// api layer's SSE handler runs this in its own goroutine per subscriber
// connection, not per meeting, so disconnection of one subscriber never
// affects another.
func Keepalive(ctx context.Context, interval time.Duration, send func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			send()
		}
	}
}
