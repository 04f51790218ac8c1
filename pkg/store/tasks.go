package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/loomctl/loom/pkg/apperr"
)

type CreateTaskParams struct {
	TeamID          string
	Title           string
	Description     string
	Priority        string
	AssignedAgentID *string
	ParentTaskID    *string
	Deadline        *time.Time
	DependsOn       []string
}

// CreateTask inserts a task and its dependency edges in one transaction.
func (s *Store) CreateTask(ctx context.Context, p CreateTaskParams) (*Task, error) {
	id := uuid.NewString()
	priority := p.Priority
	if priority == "" {
		priority = "medium"
	}
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (id, team_id, title, description, priority,
			                    assigned_agent_id, parent_task_id, deadline)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			id, p.TeamID, p.Title, p.Description, priority,
			p.AssignedAgentID, p.ParentTaskID, p.Deadline); err != nil {
			return err
		}
		for _, dep := range p.DependsOn {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO task_dependencies (task_id, depends_on_id) VALUES ($1, $2)`,
				id, dep); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "create task")
	}
	return s.GetTask(ctx, p.TeamID, id)
}

func (s *Store) GetTask(ctx context.Context, teamID, taskID string) (*Task, error) {
	var t Task
	err := s.db.GetContext(ctx, &t,
		`SELECT * FROM tasks WHERE id = $1 AND team_id = $2`, taskID, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("task %s", taskID)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "get task")
	}
	return &t, nil
}

type ListTasksFilter struct {
	Status          string
	AssignedAgentID string
	ParentTaskID    string
}

func (s *Store) ListTasks(ctx context.Context, teamID string, f ListTasksFilter) ([]Task, error) {
	q := `SELECT * FROM tasks WHERE team_id = $1`
	args := []any{teamID}
	if f.Status != "" {
		args = append(args, f.Status)
		q += " AND status = $" + strconv.Itoa(len(args))
	}
	if f.AssignedAgentID != "" {
		args = append(args, f.AssignedAgentID)
		q += " AND assigned_agent_id = $" + strconv.Itoa(len(args))
	}
	if f.ParentTaskID != "" {
		args = append(args, f.ParentTaskID)
		q += " AND parent_task_id = $" + strconv.Itoa(len(args))
	}
	q += " ORDER BY created_at"

	var tasks []Task
	if err := s.db.SelectContext(ctx, &tasks, q, args...); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list tasks")
	}
	return tasks, nil
}

// DependsOnIDs returns the ids a task is blocked by.
func (s *Store) DependsOnIDs(ctx context.Context, taskID string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		`SELECT depends_on_id FROM task_dependencies WHERE task_id = $1`, taskID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list task dependencies")
	}
	return ids, nil
}

// UnresolvedDependencies returns the subset of a task's dependencies that are
// not yet 'done' — used to gate a transition into in_progress/review.
func (s *Store) UnresolvedDependencies(ctx context.Context, taskID string) ([]Task, error) {
	var tasks []Task
	err := s.db.SelectContext(ctx, &tasks, `
		SELECT t.* FROM tasks t
		JOIN task_dependencies d ON d.depends_on_id = t.id
		WHERE d.task_id = $1 AND t.status != 'done'`, taskID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "unresolved dependencies")
	}
	return tasks, nil
}

type UpdateTaskParams struct {
	Title           *string
	Description     *string
	Status          *string
	Priority        *string
	AssignedAgentID *string
	Deadline        *time.Time
}

func (s *Store) UpdateTask(ctx context.Context, teamID, taskID string, p UpdateTaskParams) (*Task, error) {
	t, err := s.GetTask(ctx, teamID, taskID)
	if err != nil {
		return nil, err
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.AssignedAgentID != nil {
		t.AssignedAgentID = p.AssignedAgentID
	}
	if p.Deadline != nil {
		t.Deadline = p.Deadline
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE tasks SET title=$1, description=$2, status=$3, priority=$4,
		       assigned_agent_id=$5, deadline=$6, updated_at=NOW()
		WHERE id=$7 AND team_id=$8`,
		t.Title, t.Description, t.Status, t.Priority, t.AssignedAgentID, t.Deadline,
		taskID, teamID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "update task")
	}
	return s.GetTask(ctx, teamID, taskID)
}

func (s *Store) DeleteTask(ctx context.Context, teamID, taskID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id=$1 AND team_id=$2`, taskID, teamID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "delete task")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFoundf("task %s", taskID)
	}
	return nil
}
