package store

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/loomctl/loom/pkg/apperr"
)

// DeductCredits atomically checks the subscription balance and, if
// sufficient, writes a negative ledger entry and decrements the cached
// balance in one transaction — the invariant balance = sum(ledger) is kept
// by always moving both together. Returns InsufficientCredits if the
// balance would go negative.
func (s *Store) DeductCredits(ctx context.Context, teamID string, agentID *string, amount int64, correlationID string) error {
	if amount <= 0 {
		return apperr.Internalf("deduct amount must be positive, got %d", amount)
	}
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		var balance int64
		if err := tx.GetContext(ctx, &balance,
			`SELECT credit_balance FROM subscriptions WHERE team_id = $1 FOR UPDATE`, teamID); err != nil {
			return apperr.Wrap(apperr.Internal, err, "lock subscription balance")
		}
		if balance < amount {
			return apperr.InsufficientCreditsf("balance %d is less than required %d", balance, amount)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE subscriptions SET credit_balance = credit_balance - $1, updated_at = NOW() WHERE team_id = $2`,
			amount, teamID); err != nil {
			return apperr.Wrap(apperr.Internal, err, "decrement balance")
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO credit_transactions (team_id, agent_id, amount, correlation_id) VALUES ($1,$2,$3,$4)`,
			teamID, agentID, -amount, correlationID)
		if err != nil {
			return apperr.Wrap(apperr.Internal, err, "record deduction")
		}
		return nil
	})
}

// RefundCredits reverses a prior deduction identified by correlationID —
// called when the model call that the deduction paid for fails outright.
func (s *Store) RefundCredits(ctx context.Context, teamID string, agentID *string, amount int64, correlationID string) error {
	if amount <= 0 {
		return apperr.Internalf("refund amount must be positive, got %d", amount)
	}
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE subscriptions SET credit_balance = credit_balance + $1, updated_at = NOW() WHERE team_id = $2`,
			amount, teamID); err != nil {
			return apperr.Wrap(apperr.Internal, err, "increment balance")
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO credit_transactions (team_id, agent_id, amount, correlation_id) VALUES ($1,$2,$3,$4)`,
			teamID, agentID, amount, correlationID)
		if err != nil {
			return apperr.Wrap(apperr.Internal, err, "record refund")
		}
		return nil
	})
}

func (s *Store) AddCredits(ctx context.Context, teamID string, amount int64, correlationID string) error {
	if amount <= 0 {
		return apperr.Internalf("add amount must be positive, got %d", amount)
	}
	return s.RefundCredits(ctx, teamID, nil, amount, correlationID)
}

func (s *Store) ListCreditTransactions(ctx context.Context, teamID string, limit int) ([]CreditTransaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var txns []CreditTransaction
	err := s.db.SelectContext(ctx, &txns,
		`SELECT * FROM credit_transactions WHERE team_id = $1 ORDER BY id DESC LIMIT $2`,
		teamID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list credit transactions")
	}
	return txns, nil
}

// TransactionsByCorrelation finds every ledger entry tied to one correlation
// id, so support tooling can verify a deduction was paired
// with exactly one matching refund or none.
func (s *Store) TransactionsByCorrelation(ctx context.Context, correlationID string) ([]CreditTransaction, error) {
	var txns []CreditTransaction
	err := s.db.SelectContext(ctx, &txns,
		`SELECT * FROM credit_transactions WHERE correlation_id = $1 ORDER BY id`, correlationID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list transactions by correlation")
	}
	return txns, nil
}
