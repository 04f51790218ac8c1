package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/loomctl/loom/pkg/apperr"
)

func (s *Store) CreateGoal(ctx context.Context, teamID, title string, targetDate *time.Time) (*Goal, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO goals (id, team_id, title, target_date) VALUES ($1,$2,$3,$4)`,
		id, teamID, title, targetDate)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "create goal")
	}
	return s.GetGoal(ctx, teamID, id)
}

func (s *Store) GetGoal(ctx context.Context, teamID, goalID string) (*Goal, error) {
	var g Goal
	err := s.db.GetContext(ctx, &g,
		`SELECT * FROM goals WHERE id = $1 AND team_id = $2`, goalID, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("goal %s", goalID)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "get goal")
	}
	return &g, nil
}

func (s *Store) ListGoals(ctx context.Context, teamID string) ([]Goal, error) {
	var goals []Goal
	err := s.db.SelectContext(ctx, &goals,
		`SELECT * FROM goals WHERE team_id = $1 ORDER BY created_at`, teamID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list goals")
	}
	return goals, nil
}

func (s *Store) UpdateGoalStatus(ctx context.Context, teamID, goalID, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE goals SET status=$1, updated_at=NOW() WHERE id=$2 AND team_id=$3`,
		status, goalID, teamID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "update goal status")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFoundf("goal %s", goalID)
	}
	return nil
}

func (s *Store) LinkTask(ctx context.Context, goalID, taskID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO goal_linked_tasks (goal_id, task_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, goalID, taskID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "link task to goal")
	}
	return nil
}

func (s *Store) UnlinkTask(ctx context.Context, goalID, taskID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM goal_linked_tasks WHERE goal_id=$1 AND task_id=$2`, goalID, taskID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "unlink task from goal")
	}
	return nil
}

// GoalProgress reports the fraction of a goal's linked tasks that are done,
// as round(100 * completed / total); a goal with no linked tasks is 0%.
func (s *Store) GoalProgress(ctx context.Context, goalID string) (completed, total int, percent int, err error) {
	err = s.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM goal_linked_tasks WHERE goal_id = $1`, goalID)
	if err != nil {
		return 0, 0, 0, apperr.Wrap(apperr.Internal, err, "count linked tasks")
	}
	if total == 0 {
		return 0, 0, 0, nil
	}
	err = s.db.GetContext(ctx, &completed, `
		SELECT COUNT(*) FROM goal_linked_tasks glt
		JOIN tasks t ON t.id = glt.task_id
		WHERE glt.goal_id = $1 AND t.status = 'done'`, goalID)
	if err != nil {
		return 0, 0, 0, apperr.Wrap(apperr.Internal, err, "count completed linked tasks")
	}
	percent = int(float64(completed)/float64(total)*100 + 0.5)
	return completed, total, percent, nil
}

type CreateMeasurableGoalParams struct {
	TeamID      string
	MetricName  string
	TargetValue float64
	Unit        string
	Deadline    *time.Time
}

func (s *Store) CreateMeasurableGoal(ctx context.Context, p CreateMeasurableGoalParams) (*MeasurableGoal, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO measurable_goals (id, team_id, metric_name, target_value, unit, deadline)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		id, p.TeamID, p.MetricName, p.TargetValue, p.Unit, p.Deadline)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "create measurable goal")
	}
	return s.GetMeasurableGoal(ctx, p.TeamID, id)
}

func (s *Store) GetMeasurableGoal(ctx context.Context, teamID, id string) (*MeasurableGoal, error) {
	var g MeasurableGoal
	err := s.db.GetContext(ctx, &g,
		`SELECT * FROM measurable_goals WHERE id = $1 AND team_id = $2`, id, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("measurable goal %s", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "get measurable goal")
	}
	return &g, nil
}

func (s *Store) ListMeasurableGoals(ctx context.Context, teamID string) ([]MeasurableGoal, error) {
	var goals []MeasurableGoal
	err := s.db.SelectContext(ctx, &goals,
		`SELECT * FROM measurable_goals WHERE team_id = $1 ORDER BY created_at`, teamID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list measurable goals")
	}
	return goals, nil
}

// UpdateMeasurableGoalValue sets the current value and, within the same
// transaction, flips status to 'achieved' once current_value crosses
// target_value.
func (s *Store) UpdateMeasurableGoalValue(ctx context.Context, teamID, id string, current float64) (*MeasurableGoal, error) {
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		var g MeasurableGoal
		if err := tx.GetContext(ctx, &g,
			`SELECT * FROM measurable_goals WHERE id = $1 AND team_id = $2`, id, teamID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFoundf("measurable goal %s", id)
			}
			return err
		}
		status := g.Status
		if current >= g.TargetValue && status == "active" {
			status = "achieved"
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE measurable_goals SET current_value=$1, status=$2, updated_at=NOW()
			 WHERE id=$3 AND team_id=$4`, current, status, id, teamID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetMeasurableGoal(ctx, teamID, id)
}
