package sor

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

func expectTableLookup(mock sqlmock.Sqlmock, teamID, name, tableID string) {
	rows := sqlmock.NewRows([]string{"id", "team_id", "name", "name_lower", "columns", "created_at"}).
		AddRow(tableID, teamID, name, name, []byte(`[]`), time.Now())
	mock.ExpectQuery(`SELECT \* FROM sor_tables WHERE team_id = \$1 AND name_lower = \$2`).
		WithArgs(teamID, name).
		WillReturnRows(rows)
}

func expectPermission(mock sqlmock.Sqlmock, agentID, tableID string, canRead, canWrite bool) {
	rows := sqlmock.NewRows([]string{"agent_id", "table_id", "can_read", "can_write"}).
		AddRow(agentID, tableID, canRead, canWrite)
	mock.ExpectQuery(`SELECT \* FROM sor_permissions WHERE agent_id = \$1 AND table_id = \$2`).
		WithArgs(agentID, tableID).
		WillReturnRows(rows)
}

func TestReadRows_WithoutReadPermissionIsNotFound(t *testing.T) {
	s, mock := newTestService(t)
	expectTableLookup(mock, "team-1", "leads", "table-1")
	expectPermission(mock, "agent-1", "table-1", false, false)

	_, err := s.ReadRows(context.Background(), "team-1", "agent-1", "leads")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err), "a missing permission must read as NotFound, never Forbidden")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadRows_WithReadPermissionReturnsRows(t *testing.T) {
	s, mock := newTestService(t)
	expectTableLookup(mock, "team-1", "leads", "table-1")
	expectPermission(mock, "agent-1", "table-1", true, false)

	rowRows := sqlmock.NewRows([]string{"id", "team_id", "table_id", "data", "created_at", "updated_at"}).
		AddRow("row-1", "team-1", "table-1", []byte(`{"name":"Ada"}`), time.Now(), time.Now())
	mock.ExpectQuery(`SELECT \* FROM sor_rows WHERE team_id = \$1 AND table_id = \$2`).
		WithArgs("team-1", "table-1").
		WillReturnRows(rowRows)

	out, err := s.ReadRows(context.Background(), "team-1", "agent-1", "leads")
	require.NoError(t, err)
	assert.Contains(t, out, "Ada")
	assert.Contains(t, out, "row-1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadRows_EmptyTableReportsNoRows(t *testing.T) {
	s, mock := newTestService(t)
	expectTableLookup(mock, "team-1", "leads", "table-1")
	expectPermission(mock, "agent-1", "table-1", true, false)

	mock.ExpectQuery(`SELECT \* FROM sor_rows WHERE team_id = \$1 AND table_id = \$2`).
		WithArgs("team-1", "table-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "team_id", "table_id", "data", "created_at", "updated_at"}))

	out, err := s.ReadRows(context.Background(), "team-1", "agent-1", "leads")
	require.NoError(t, err)
	assert.Equal(t, "(no rows)", out)
}

func TestWriteRow_WithoutWritePermissionIsNotFound(t *testing.T) {
	s, mock := newTestService(t)
	expectTableLookup(mock, "team-1", "leads", "table-1")
	expectPermission(mock, "agent-1", "table-1", true, false)

	_, err := s.WriteRow(context.Background(), "team-1", "agent-1", "leads", map[string]any{"name": "Ada"})
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSORTableByName_MissingTableIsNotFound(t *testing.T) {
	s, mock := newTestService(t)
	mock.ExpectQuery(`SELECT \* FROM sor_tables WHERE team_id = \$1 AND name_lower = \$2`).
		WithArgs("team-1", "leads").
		WillReturnError(sql.ErrNoRows)

	_, err := s.resolveReadable(context.Background(), "team-1", "agent-1", "leads")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
