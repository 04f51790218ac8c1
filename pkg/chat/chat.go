// Package chat implements channel messaging, the @[name](kind:id) mention
// grammar, and fire-and-forget dispatch of mention events over the event
// bus so the scheduler can trigger an immediately-awoken agent run.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/loomctl/loom/pkg/eventbus"
	"github.com/loomctl/loom/pkg/store"
)

var mentionPattern = regexp.MustCompile(`@\[([^\]]+)\]\((agent|user|file):([^)]+)\)`)

type Mention struct {
	DisplayName string
	Kind        string // agent, user, or file
	ID          string
}

// ParseMentions extracts every @[name](kind:id) mention from content, in
// order of appearance. Duplicate mentions of the same target still fire
// once each — callers that need de-duplication do it themselves.
func ParseMentions(content string) []Mention {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	mentions := make([]Mention, 0, len(matches))
	for _, m := range matches {
		mentions = append(mentions, Mention{DisplayName: m[1], Kind: m[2], ID: m[3]})
	}
	return mentions
}

type MentionEvent struct {
	TeamID    string `json:"team_id"`
	ChannelID string `json:"channel_id"`
	MessageID int64  `json:"message_id"`
	Kind      string `json:"kind"`
	TargetID  string `json:"target_id"`
}

// Notifier creates the "mention" notification a user-targeted mention
// produces. Kept narrow (rather than depending on *store.Store directly)
// so pkg/chat doesn't need to know about the rest of the store surface.
type Notifier interface {
	CreateNotification(ctx context.Context, teamID, userID, notifType string, channelID *string) (*store.Notification, error)
}

type Service struct {
	store     *store.Store
	bus       *eventbus.Bus
	notifier  Notifier
}

func New(s *store.Store, bus *eventbus.Bus) *Service {
	return &Service{store: s, bus: bus, notifier: s}
}

func (s *Service) GetOrCreateDM(ctx context.Context, teamID, userID, agentID string) (*store.ChatChannel, error) {
	key := fmt.Sprintf("dm:%s:%s", userID, agentID)
	return s.store.GetOrCreateSingletonChannel(ctx, teamID, "dm", key, nil)
}

func (s *Service) GetOrCreateTaskChannel(ctx context.Context, teamID, taskID string) (*store.ChatChannel, error) {
	key := fmt.Sprintf("task:%s", taskID)
	name := "task:" + taskID
	return s.store.GetOrCreateSingletonChannel(ctx, teamID, "task_thread", key, &name)
}

func (s *Service) CreateGroupChannel(ctx context.Context, teamID, name string) (*store.ChatChannel, error) {
	return s.store.CreateGroupChannel(ctx, teamID, name)
}

func (s *Service) ListChannels(ctx context.Context, teamID string) ([]store.ChatChannel, error) {
	return s.store.ListChannels(ctx, teamID)
}

func (s *Service) ListMessages(ctx context.Context, teamID, channelID string, beforeID int64, limit int) ([]store.ChatMessage, error) {
	return s.store.ListMessages(ctx, teamID, channelID, beforeID, limit)
}

// Post stores the message then processes its mentions off the critical
// path: agent mentions publish a trigger event for the scheduler to act on
// (never calling it directly — this is how the chat/scheduler/store wiring
// cycle is broken), user mentions create a notification, and file mentions
// are display-only.
func (s *Service) Post(ctx context.Context, teamID, channelID, senderKind string, senderID *string, content string) (*store.ChatMessage, error) {
	msg, err := s.store.PostMessage(ctx, teamID, channelID, senderKind, senderID, content)
	if err != nil {
		return nil, err
	}

	for _, m := range ParseMentions(content) {
		switch m.Kind {
		case "agent":
			if s.bus == nil {
				continue
			}
			event := MentionEvent{TeamID: teamID, ChannelID: channelID, MessageID: msg.ID, Kind: m.Kind, TargetID: m.ID}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			_ = s.bus.Publish(eventbus.SubjectMention, payload)
		case "user":
			if s.notifier == nil {
				continue
			}
			_, _ = s.notifier.CreateNotification(ctx, teamID, m.ID, "mention", &channelID)
		case "file":
			// display-only, no side effect
		}
	}

	return msg, nil
}

// Bound adapts a Service to one team/agent pair for the tool registry's
// flat SendMessage signature; the channel is passed on each call.
type Bound struct {
	svc            *Service
	TeamID, Agent string
}

func (s *Service) Bind(teamID, agentID string) *Bound {
	return &Bound{svc: s, TeamID: teamID, Agent: agentID}
}

func (b *Bound) SendMessage(ctx context.Context, channelID, content string) error {
	agentID := b.Agent
	_, err := b.svc.Post(ctx, b.TeamID, channelID, "agent", &agentID, content)
	return err
}
