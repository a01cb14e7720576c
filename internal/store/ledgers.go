package store

import (
	"context"
	"fmt"
	"time"

	"github.com/punchamoorthee/fundledger/internal/domain"
	"github.com/punchamoorthee/fundledger/internal/money"
)

type ledgerRepo struct {
	db DBTX
}

// ledgerTable names the table and balance column behind a ledger kind.
func ledgerTable(ref domain.LedgerRef) (table, column string, err error) {
	switch ref.Kind {
	case domain.LedgerFund:
		return "funds", "balance", nil
	case domain.LedgerCampaign:
		return "campaigns", "current_balance", nil
	}
	return "", "", fmt.Errorf("%w: kind %q", domain.ErrInvalidLedger, ref.Kind)
}

func (r ledgerRepo) LockLedger(ctx context.Context, ref domain.LedgerRef) (domain.LedgerState, error) {
	table, column, err := ledgerTable(ref)
	if err != nil {
		return domain.LedgerState{}, err
	}
	state := domain.LedgerState{Ref: ref}
	err = r.db.QueryRow(ctx,
		fmt.Sprintf("SELECT %s, version FROM %s WHERE id = $1 AND deleted_at IS NULL FOR UPDATE", column, table),
		ref.ID,
	).Scan(&state.Balance, &state.Version)
	if err != nil {
		return domain.LedgerState{}, notFound(err, "ledger "+ref.String())
	}
	return state, nil
}

func (r ledgerRepo) WriteLedgerBalance(ctx context.Context, ref domain.LedgerRef, balance money.Money, expectedVersion int64, now time.Time) error {
	if balance.IsNegative() {
		return domain.ErrInsufficientBalance
	}
	table, column, err := ledgerTable(ref)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx,
		fmt.Sprintf("UPDATE %s SET %s = $2, version = version + 1, updated_at = $4 WHERE id = $1 AND version = $3", table, column),
		ref.ID, balance, expectedVersion, now,
	)
	if err != nil {
		return mapError(fmt.Errorf("write %s balance: %w", ref, err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConcurrentUpdate
	}
	return nil
}

func (r ledgerRepo) LedgerBalance(ctx context.Context, ref domain.LedgerRef) (money.Money, error) {
	table, column, err := ledgerTable(ref)
	if err != nil {
		return money.Zero, err
	}
	var balance money.Money
	err = r.db.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 AND deleted_at IS NULL", column, table), ref.ID,
	).Scan(&balance)
	if err != nil {
		return money.Zero, notFound(err, "ledger "+ref.String())
	}
	return balance, nil
}
