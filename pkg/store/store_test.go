package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomctl/loom/pkg/apperr"
)

// newTestStore builds a Store backed by go-sqlmock, matching NewFromDB's
// documented test usage.
func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewFromDB(sqlx.NewDb(db, "postgres")), mock
}

func TestGetSORTable_WrongTeamIsNotFound(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT \* FROM sor_tables WHERE id = \$1 AND team_id = \$2`).
		WithArgs("table-1", "team-other").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetSORTable(context.Background(), "team-other", "table-1")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err), "a row that exists but belongs to another team must read as NotFound")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSORTable_OwnTeamSucceeds(t *testing.T) {
	s, mock := newTestStore(t)

	rows := sqlmock.NewRows([]string{"id", "team_id", "name", "name_lower", "columns", "created_at"}).
		AddRow("table-1", "team-1", "Leads", "leads", []byte(`["name","email"]`), time.Now())
	mock.ExpectQuery(`SELECT \* FROM sor_tables WHERE id = \$1 AND team_id = \$2`).
		WithArgs("table-1", "team-1").
		WillReturnRows(rows)

	table, err := s.GetSORTable(context.Background(), "team-1", "table-1")
	require.NoError(t, err)
	assert.Equal(t, "Leads", table.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSORTableByName_IsCaseInsensitive(t *testing.T) {
	s, mock := newTestStore(t)

	rows := sqlmock.NewRows([]string{"id", "team_id", "name", "name_lower", "columns", "created_at"}).
		AddRow("table-1", "team-1", "Leads", "leads", []byte(`[]`), time.Now())
	mock.ExpectQuery(`SELECT \* FROM sor_tables WHERE team_id = \$1 AND name_lower = \$2`).
		WithArgs("team-1", "leads").
		WillReturnRows(rows)

	table, err := s.GetSORTableByName(context.Background(), "team-1", "LEADS")
	require.NoError(t, err)
	assert.Equal(t, "table-1", table.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSORTable_ZeroRowsAffectedIsNotFound(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec(`DELETE FROM sor_tables WHERE id=\$1 AND team_id=\$2`).
		WithArgs("table-1", "team-other").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeleteSORTable(context.Background(), "team-other", "table-1")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err), "deleting a table id scoped to another team must affect zero rows, surfaced as NotFound")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPermission_NoRowMeansNoAccess(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT \* FROM sor_permissions WHERE agent_id = \$1 AND table_id = \$2`).
		WithArgs("agent-1", "table-1").
		WillReturnError(sql.ErrNoRows)

	perm, err := s.GetPermission(context.Background(), "agent-1", "table-1")
	require.NoError(t, err)
	assert.False(t, perm.CanRead)
	assert.False(t, perm.CanWrite)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveApproval_AlreadyResolvedIsConflict(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec(`UPDATE approvals SET status=\$1, resolved_at=NOW\(\) WHERE id=\$2 AND team_id=\$3 AND status='pending'`).
		WithArgs("approved", "approval-1", "team-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	rows := sqlmock.NewRows([]string{
		"id", "team_id", "agent_id", "action_type", "action_detail", "risk_level", "status", "created_at", "resolved_at",
	}).AddRow("approval-1", "team-1", "agent-1", "send_message", []byte(`{}`), "medium", "approved", time.Now(), time.Now())
	mock.ExpectQuery(`SELECT \* FROM approvals WHERE id = \$1 AND team_id = \$2`).
		WithArgs("approval-1", "team-1").
		WillReturnRows(rows)

	_, err := s.ResolveApproval(context.Background(), "team-1", "approval-1", "approved")
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

var _ driver.Valuer = JSONObject{}
