package store

import (
	"context"

	"github.com/loomctl/loom/pkg/apperr"
)

func (s *Store) AppendActivity(ctx context.Context, teamID string, agentID *string, eventType string, detail JSONObject) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity_log (team_id, agent_id, event_type, detail) VALUES ($1,$2,$3,$4)`,
		teamID, agentID, eventType, detail)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "append activity")
	}
	return nil
}

// ListActivity returns up to limit events older than beforeID (exclusive),
// newest first, mirroring the chat message cursor convention.
func (s *Store) ListActivity(ctx context.Context, teamID string, beforeID int64, limit int) ([]ActivityEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var events []ActivityEvent
	var err error
	if beforeID > 0 {
		err = s.db.SelectContext(ctx, &events, `
			SELECT * FROM activity_log WHERE team_id = $1 AND id < $2
			ORDER BY id DESC LIMIT $3`, teamID, beforeID, limit)
	} else {
		err = s.db.SelectContext(ctx, &events, `
			SELECT * FROM activity_log WHERE team_id = $1
			ORDER BY id DESC LIMIT $2`, teamID, limit)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list activity")
	}
	return events, nil
}

func (s *Store) ListActivityForAgent(ctx context.Context, teamID, agentID string, limit int) ([]ActivityEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var events []ActivityEvent
	err := s.db.SelectContext(ctx, &events, `
		SELECT * FROM activity_log WHERE team_id = $1 AND agent_id = $2
		ORDER BY id DESC LIMIT $3`, teamID, agentID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list activity for agent")
	}
	return events, nil
}
