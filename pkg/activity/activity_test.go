package activity

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomctl/loom/pkg/apperr"
	"github.com/loomctl/loom/pkg/store"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(store.NewFromDB(sqlx.NewDb(db, "postgres"))), mock
}

func approvalRows(id, agentID, actionType, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "team_id", "agent_id", "action_type", "action_detail", "risk_level", "status", "created_at", "resolved_at",
	}).AddRow(id, "team-1", agentID, actionType, []byte(`{}`), "medium", status, time.Now(), time.Now())
}

func TestRequireApproval_StandingApprovedAutoAllowsWithoutNewApproval(t *testing.T) {
	s, mock := newTestService(t)
	mock.ExpectQuery(`SELECT \* FROM approvals`).
		WithArgs("agent-1", "send_message").
		WillReturnRows(approvalRows("approval-1", "agent-1", "send_message", "approved"))

	approved, waitCreated, err := s.RequireApproval(context.Background(), "team-1", "agent-1", "send_message", nil, "medium")
	require.NoError(t, err)
	assert.True(t, approved)
	assert.False(t, waitCreated, "a standing approval must not open a new request")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequireApproval_StandingRejectedPermanentlyRefusesWithoutNewApproval(t *testing.T) {
	s, mock := newTestService(t)
	mock.ExpectQuery(`SELECT \* FROM approvals`).
		WithArgs("agent-1", "delete_task").
		WillReturnRows(approvalRows("approval-1", "agent-1", "delete_task", "rejected"))

	approved, waitCreated, err := s.RequireApproval(context.Background(), "team-1", "agent-1", "delete_task", nil, "high")
	require.NoError(t, err)
	assert.False(t, approved)
	assert.False(t, waitCreated, "a standing rejection must not re-enqueue a fresh approval")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequireApproval_NoStandingResolutionCreatesPendingApproval(t *testing.T) {
	s, mock := newTestService(t)
	mock.ExpectQuery(`SELECT \* FROM approvals`).
		WithArgs("agent-1", "write_file").
		WillReturnError(sql.ErrNoRows)

	mock.ExpectExec(`INSERT INTO approvals`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT \* FROM approvals WHERE id = \$1 AND team_id = \$2`).
		WillReturnRows(approvalRows("approval-2", "agent-1", "write_file", "pending"))

	approved, waitCreated, err := s.RequireApproval(context.Background(), "team-1", "agent-1", "write_file", map[string]any{"path": "x"}, "medium")
	require.NoError(t, err)
	assert.False(t, approved)
	assert.True(t, waitCreated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_RejectsStatusOtherThanApprovedOrRejected(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.Resolve(context.Background(), "team-1", "approval-1", "maybe")
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
}
