// Package sor implements per-agent permission checks on top of the raw
// source-of-record table/row storage in pkg/store: agents only see and
// mutate tables they have been explicitly granted read or write access to,
// and table lookups by name are case-insensitive.
package sor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loomctl/loom/pkg/apperr"
	"github.com/loomctl/loom/pkg/store"
)

type Service struct {
	store *store.Store
}

func New(s *store.Store) *Service {
	return &Service{store: s}
}

func (s *Service) CreateTable(ctx context.Context, teamID, name string, columns []string) (*store.SORTable, error) {
	cols := make(store.JSONArray, len(columns))
	for i, c := range columns {
		cols[i] = c
	}
	return s.store.CreateSORTable(ctx, teamID, name, cols)
}

func (s *Service) ListTables(ctx context.Context, teamID string) ([]store.SORTable, error) {
	return s.store.ListSORTables(ctx, teamID)
}

func (s *Service) DeleteTable(ctx context.Context, teamID, tableID string) error {
	return s.store.DeleteSORTable(ctx, teamID, tableID)
}

// resolveReadable looks up a table by name and checks the agent has read
// access. Ownership mismatches and missing permissions both surface as
// NotFound, never Forbidden, so an agent can't distinguish "doesn't exist"
// from "exists but you can't see it".
func (s *Service) resolveReadable(ctx context.Context, teamID, agentID, tableName string) (*store.SORTable, error) {
	table, err := s.store.GetSORTableByName(ctx, teamID, tableName)
	if err != nil {
		return nil, err
	}
	perm, err := s.store.GetPermission(ctx, agentID, table.ID)
	if err != nil {
		return nil, err
	}
	if !perm.CanRead {
		return nil, apperr.NotFoundf("table %q", tableName)
	}
	return table, nil
}

func (s *Service) resolveWritable(ctx context.Context, teamID, agentID, tableName string) (*store.SORTable, error) {
	table, err := s.store.GetSORTableByName(ctx, teamID, tableName)
	if err != nil {
		return nil, err
	}
	perm, err := s.store.GetPermission(ctx, agentID, table.ID)
	if err != nil {
		return nil, err
	}
	if !perm.CanWrite {
		return nil, apperr.NotFoundf("table %q", tableName)
	}
	return table, nil
}

// ReadRows backs Bound.ReadRows, the tools.SORStore implementation the
// agent runtime binds into its tool registry: it returns the rows rendered as JSON text, since
// tool observations are plain strings fed back into the model.
func (s *Service) ReadRows(ctx context.Context, teamID, agentID, tableName string) (string, error) {
	table, err := s.resolveReadable(ctx, teamID, agentID, tableName)
	if err != nil {
		return "", err
	}
	rows, err := s.store.ListSORRows(ctx, teamID, table.ID)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "(no rows)", nil
	}
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = map[string]any(r.Data)
		out[i]["_id"] = r.ID
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "encode sor rows")
	}
	return string(encoded), nil
}

func (s *Service) WriteRow(ctx context.Context, teamID, agentID, tableName string, data map[string]any) (string, error) {
	table, err := s.resolveWritable(ctx, teamID, agentID, tableName)
	if err != nil {
		return "", err
	}
	row, err := s.store.CreateSORRow(ctx, teamID, table.ID, store.JSONObject(data))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("row %s created", row.ID), nil
}

func (s *Service) UpdateRow(ctx context.Context, teamID, agentID, tableName, rowID string, data map[string]any) error {
	if _, err := s.resolveWritable(ctx, teamID, agentID, tableName); err != nil {
		return err
	}
	_, err := s.store.UpdateSORRow(ctx, teamID, rowID, store.JSONObject(data))
	return err
}

func (s *Service) DeleteRow(ctx context.Context, teamID, agentID, tableName, rowID string) error {
	if _, err := s.resolveWritable(ctx, teamID, agentID, tableName); err != nil {
		return err
	}
	return s.store.DeleteSORRow(ctx, teamID, rowID)
}

func (s *Service) Grant(ctx context.Context, agentID, tableID string, canRead, canWrite bool) error {
	return s.store.SetPermission(ctx, agentID, tableID, canRead, canWrite)
}

// Bound adapts a Service to one team/agent pair, matching the narrow
// SORStore interface the tool registry expects.
type Bound struct {
	svc           *Service
	TeamID, Agent string
}

func (s *Service) Bind(teamID, agentID string) *Bound {
	return &Bound{svc: s, TeamID: teamID, Agent: agentID}
}

func (b *Bound) ReadRows(ctx context.Context, tableName string) (string, error) {
	return b.svc.ReadRows(ctx, b.TeamID, b.Agent, tableName)
}

func (b *Bound) WriteRow(ctx context.Context, tableName string, data map[string]any) (string, error) {
	return b.svc.WriteRow(ctx, b.TeamID, b.Agent, tableName, data)
}
