package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/loomctl/loom/pkg/apperr"
)

// CreateTeam creates a team and its creator's admin membership in one
// transaction, satisfying the invariant that a tenant always has ≥1 admin:
// the tenant creator is admin.
func (s *Store) CreateTeam(ctx context.Context, name, creatorUserID string) (*Team, error) {
	team := &Team{ID: uuid.NewString(), Name: name}

	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO teams (id, name) VALUES ($1, $2)`, team.ID, team.Name); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO team_members (team_id, user_id, role) VALUES ($1, $2, 'admin')`,
			team.ID, creatorUserID)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO subscriptions (team_id, active, credit_balance) VALUES ($1, FALSE, 0)`, team.ID)
		return err
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "create team")
	}
	return s.GetTeam(ctx, team.ID)
}

func (s *Store) GetTeam(ctx context.Context, teamID string) (*Team, error) {
	var t Team
	err := s.db.GetContext(ctx, &t, `SELECT * FROM teams WHERE id = $1`, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("team %s", teamID)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "get team")
	}
	return &t, nil
}

// ListTeamsForUser returns the teams a user is a member of — used by the
// team-management endpoints, which are exempt from tenant binding (§4.1).
func (s *Store) ListTeamsForUser(ctx context.Context, userID string) ([]Team, error) {
	var teams []Team
	err := s.db.SelectContext(ctx, &teams,
		`SELECT t.* FROM teams t JOIN team_members m ON m.team_id = t.id WHERE m.user_id = $1 ORDER BY t.created_at`,
		userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list teams for user")
	}
	return teams, nil
}

func (s *Store) DeleteTeam(ctx context.Context, teamID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, teamID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "delete team")
	}
	return nil
}

// GetMembership returns the caller's role in a team, or nil if not a member.
func (s *Store) GetMembership(ctx context.Context, teamID, userID string) (*TeamMember, error) {
	var m TeamMember
	err := s.db.GetContext(ctx, &m,
		`SELECT * FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "get membership")
	}
	return &m, nil
}

func (s *Store) AddMember(ctx context.Context, teamID, userID, role string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO team_members (team_id, user_id, role) VALUES ($1, $2, $3)
		 ON CONFLICT (team_id, user_id) DO UPDATE SET role = EXCLUDED.role`,
		teamID, userID, role)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "add member")
	}
	return nil
}

// RemoveMember removes a member, refusing to drop the tenant's last admin.
func (s *Store) RemoveMember(ctx context.Context, teamID, userID string) error {
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		var m TeamMember
		if err := tx.GetContext(ctx, &m,
			`SELECT * FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFoundf("member %s", userID)
			}
			return apperr.Wrap(apperr.Internal, err, "lookup member")
		}
		if m.Role == "admin" {
			var adminCount int
			if err := tx.GetContext(ctx, &adminCount,
				`SELECT COUNT(*) FROM team_members WHERE team_id = $1 AND role = 'admin'`, teamID); err != nil {
				return apperr.Wrap(apperr.Internal, err, "count admins")
			}
			if adminCount <= 1 {
				return apperr.Conflictf("cannot remove the last admin of a team")
			}
		}
		_, err := tx.ExecContext(ctx,
			`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID)
		return err
	})
}

func (s *Store) GetSubscription(ctx context.Context, teamID string) (*Subscription, error) {
	var sub Subscription
	err := s.db.GetContext(ctx, &sub, `SELECT * FROM subscriptions WHERE team_id = $1`, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return &Subscription{TeamID: teamID}, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "get subscription")
	}
	return &sub, nil
}
