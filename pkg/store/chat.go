package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/loomctl/loom/pkg/apperr"
)

// GetOrCreateSingletonChannel returns the channel for a singleton key (a
// deterministic key such as "dm:<a>:<b>" or "task:<task_id>"), creating it
// if absent. Relies on the partial unique index on (team_id, singleton_key)
// to make concurrent creators converge on one row.
func (s *Store) GetOrCreateSingletonChannel(ctx context.Context, teamID, channelType, singletonKey string, name *string) (*ChatChannel, error) {
	var ch ChatChannel
	err := s.db.GetContext(ctx, &ch,
		`SELECT * FROM chat_channels WHERE team_id = $1 AND singleton_key = $2`,
		teamID, singletonKey)
	if err == nil {
		return &ch, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.Internal, err, "lookup singleton channel")
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_channels (id, team_id, type, singleton_key, name)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (team_id, singleton_key) DO NOTHING`,
		id, teamID, channelType, singletonKey, name)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "create singleton channel")
	}
	err = s.db.GetContext(ctx, &ch,
		`SELECT * FROM chat_channels WHERE team_id = $1 AND singleton_key = $2`,
		teamID, singletonKey)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "reload singleton channel")
	}
	return &ch, nil
}

func (s *Store) CreateGroupChannel(ctx context.Context, teamID, name string) (*ChatChannel, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_channels (id, team_id, type, name) VALUES ($1,$2,'group',$3)`,
		id, teamID, name)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "create group channel")
	}
	return s.GetChannel(ctx, teamID, id)
}

func (s *Store) GetChannel(ctx context.Context, teamID, channelID string) (*ChatChannel, error) {
	var ch ChatChannel
	err := s.db.GetContext(ctx, &ch,
		`SELECT * FROM chat_channels WHERE id = $1 AND team_id = $2`, channelID, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("channel %s", channelID)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "get channel")
	}
	return &ch, nil
}

func (s *Store) ListChannels(ctx context.Context, teamID string) ([]ChatChannel, error) {
	var channels []ChatChannel
	err := s.db.SelectContext(ctx, &channels,
		`SELECT * FROM chat_channels WHERE team_id = $1 ORDER BY created_at`, teamID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list channels")
	}
	return channels, nil
}

func (s *Store) PostMessage(ctx context.Context, teamID, channelID, senderKind string, senderID *string, content string) (*ChatMessage, error) {
	var m ChatMessage
	err := s.db.GetContext(ctx, &m, `
		INSERT INTO chat_messages (team_id, channel_id, sender_kind, sender_id, content)
		VALUES ($1,$2,$3,$4,$5) RETURNING *`,
		teamID, channelID, senderKind, senderID, content)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "post message")
	}
	return &m, nil
}

// ListMessages returns up to limit messages older than beforeID (exclusive),
// newest first — a backward cursor over the BIGSERIAL id per the channel's
// (channel_id, id DESC) index. beforeID of 0 starts from the newest message.
func (s *Store) ListMessages(ctx context.Context, teamID, channelID string, beforeID int64, limit int) ([]ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var messages []ChatMessage
	var err error
	if beforeID > 0 {
		err = s.db.SelectContext(ctx, &messages, `
			SELECT * FROM chat_messages
			WHERE team_id = $1 AND channel_id = $2 AND id < $3
			ORDER BY id DESC LIMIT $4`, teamID, channelID, beforeID, limit)
	} else {
		err = s.db.SelectContext(ctx, &messages, `
			SELECT * FROM chat_messages
			WHERE team_id = $1 AND channel_id = $2
			ORDER BY id DESC LIMIT $3`, teamID, channelID, limit)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list messages")
	}
	return messages, nil
}

func (s *Store) CreateNotification(ctx context.Context, teamID, userID, notifType string, channelID *string) (*Notification, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, team_id, user_id, type, channel_id) VALUES ($1,$2,$3,$4,$5)`,
		id, teamID, userID, notifType, channelID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "create notification")
	}
	var n Notification
	if err := s.db.GetContext(ctx, &n, `SELECT * FROM notifications WHERE id = $1`, id); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "reload notification")
	}
	return &n, nil
}

func (s *Store) ListUnreadNotifications(ctx context.Context, teamID, userID string) ([]Notification, error) {
	var notifs []Notification
	err := s.db.SelectContext(ctx, &notifs, `
		SELECT * FROM notifications
		WHERE team_id = $1 AND user_id = $2 AND read_at IS NULL
		ORDER BY created_at DESC`, teamID, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list unread notifications")
	}
	return notifs, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, teamID, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read_at = NOW() WHERE id = $1 AND team_id = $2 AND read_at IS NULL`,
		id, teamID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "mark notification read")
	}
	return nil
}
