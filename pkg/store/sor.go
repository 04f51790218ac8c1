package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/loomctl/loom/pkg/apperr"
)

func (s *Store) CreateSORTable(ctx context.Context, teamID, name string, columns JSONArray) (*SORTable, error) {
	id := uuid.NewString()
	nameLower := strings.ToLower(name)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sor_tables (id, team_id, name, name_lower, columns)
		VALUES ($1,$2,$3,$4,$5)`, id, teamID, name, nameLower, columns)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflictf("a table named %q already exists", name)
		}
		return nil, apperr.Wrap(apperr.Internal, err, "create sor table")
	}
	return s.GetSORTable(ctx, teamID, id)
}

func (s *Store) GetSORTable(ctx context.Context, teamID, id string) (*SORTable, error) {
	var t SORTable
	err := s.db.GetContext(ctx, &t,
		`SELECT * FROM sor_tables WHERE id = $1 AND team_id = $2`, id, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("table %s", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "get sor table")
	}
	return &t, nil
}

// GetSORTableByName does a case-insensitive lookup against name_lower, the
// address agents use when referring to tables by name instead of id.
func (s *Store) GetSORTableByName(ctx context.Context, teamID, name string) (*SORTable, error) {
	var t SORTable
	err := s.db.GetContext(ctx, &t,
		`SELECT * FROM sor_tables WHERE team_id = $1 AND name_lower = $2`,
		teamID, strings.ToLower(name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("table %q", name)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "get sor table by name")
	}
	return &t, nil
}

func (s *Store) ListSORTables(ctx context.Context, teamID string) ([]SORTable, error) {
	var tables []SORTable
	err := s.db.SelectContext(ctx, &tables,
		`SELECT * FROM sor_tables WHERE team_id = $1 ORDER BY created_at`, teamID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list sor tables")
	}
	return tables, nil
}

func (s *Store) DeleteSORTable(ctx context.Context, teamID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sor_tables WHERE id=$1 AND team_id=$2`, id, teamID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "delete sor table")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFoundf("table %s", id)
	}
	return nil
}

func (s *Store) CreateSORRow(ctx context.Context, teamID, tableID string, data JSONObject) (*SORRow, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sor_rows (id, team_id, table_id, data) VALUES ($1,$2,$3,$4)`,
		id, teamID, tableID, data)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "create sor row")
	}
	return s.GetSORRow(ctx, teamID, id)
}

func (s *Store) GetSORRow(ctx context.Context, teamID, id string) (*SORRow, error) {
	var r SORRow
	err := s.db.GetContext(ctx, &r,
		`SELECT * FROM sor_rows WHERE id = $1 AND team_id = $2`, id, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("row %s", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "get sor row")
	}
	return &r, nil
}

func (s *Store) ListSORRows(ctx context.Context, teamID, tableID string) ([]SORRow, error) {
	var rows []SORRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM sor_rows WHERE team_id = $1 AND table_id = $2 ORDER BY created_at`,
		teamID, tableID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list sor rows")
	}
	return rows, nil
}

func (s *Store) UpdateSORRow(ctx context.Context, teamID, id string, data JSONObject) (*SORRow, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sor_rows SET data=$1, updated_at=NOW() WHERE id=$2 AND team_id=$3`,
		data, id, teamID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "update sor row")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return nil, apperr.NotFoundf("row %s", id)
	}
	return s.GetSORRow(ctx, teamID, id)
}

func (s *Store) DeleteSORRow(ctx context.Context, teamID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sor_rows WHERE id=$1 AND team_id=$2`, id, teamID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "delete sor row")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFoundf("row %s", id)
	}
	return nil
}

// GetPermission returns an agent's read/write permission on a table, or a
// zero-value (no access) if no row exists.
func (s *Store) GetPermission(ctx context.Context, agentID, tableID string) (SORPermission, error) {
	var p SORPermission
	err := s.db.GetContext(ctx, &p,
		`SELECT * FROM sor_permissions WHERE agent_id = $1 AND table_id = $2`, agentID, tableID)
	if errors.Is(err, sql.ErrNoRows) {
		return SORPermission{AgentID: agentID, TableID: tableID}, nil
	}
	if err != nil {
		return SORPermission{}, apperr.Wrap(apperr.Internal, err, "get sor permission")
	}
	return p, nil
}

func (s *Store) SetPermission(ctx context.Context, agentID, tableID string, canRead, canWrite bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sor_permissions (agent_id, table_id, can_read, can_write)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (agent_id, table_id) DO UPDATE SET can_read=$3, can_write=$4`,
		agentID, tableID, canRead, canWrite)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "set sor permission")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "unique")
}
