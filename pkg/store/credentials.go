package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/loomctl/loom/pkg/apperr"
)

// UpsertCredential stores blob as given — callers (pkg/vault) are responsible
// for encrypting it to the enc:/plain: wire format before it reaches here.
func (s *Store) UpsertCredential(ctx context.Context, teamID, serviceID, credType, blob string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (team_id, service_id, cred_type, blob)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (team_id, service_id) DO UPDATE SET
		    cred_type = EXCLUDED.cred_type, blob = EXCLUDED.blob, updated_at = NOW()`,
		teamID, serviceID, credType, blob)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "upsert credential")
	}
	return nil
}

func (s *Store) GetCredential(ctx context.Context, teamID, serviceID string) (*Credential, error) {
	var c Credential
	err := s.db.GetContext(ctx, &c,
		`SELECT * FROM credentials WHERE team_id = $1 AND service_id = $2`, teamID, serviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("credential %s", serviceID)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "get credential")
	}
	return &c, nil
}

func (s *Store) ListCredentials(ctx context.Context, teamID string) ([]Credential, error) {
	var creds []Credential
	err := s.db.SelectContext(ctx, &creds,
		`SELECT * FROM credentials WHERE team_id = $1 ORDER BY service_id`, teamID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list credentials")
	}
	return creds, nil
}

func (s *Store) DeleteCredential(ctx context.Context, teamID, serviceID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE team_id=$1 AND service_id=$2`, teamID, serviceID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "delete credential")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFoundf("credential %s", serviceID)
	}
	return nil
}
