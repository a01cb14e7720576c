// Package ledger holds the reconciler, the only writer of fund and campaign balances.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/fundledger/internal/domain"
	"github.com/punchamoorthee/fundledger/internal/money"
)

var mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fundledger_ledger_mutations_total",
	Help: "Balance mutations applied by the reconciler",
}, []string{"direction", "ledger_kind"})

// Reconciler applies credits and debits inside the caller's transaction.
// It must be handed the LedgerRepository bound to that transaction.
type Reconciler struct {
	now func() time.Time
}

func NewReconciler(now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{now: now}
}

// ApplyCredit adds amount to the ledger and returns the new balance.
func (r *Reconciler) ApplyCredit(ctx context.Context, ledgers domain.LedgerRepository, ref domain.LedgerRef, amount money.Money) (money.Money, error) {
	if !amount.IsPositive() {
		return money.Zero, domain.ErrInvalidAmount
	}
	state, err := ledgers.LockLedger(ctx, ref)
	if err != nil {
		return money.Zero, err
	}
	next := state.Balance.Add(amount)
	if err := ledgers.WriteLedgerBalance(ctx, ref, next, state.Version, r.now()); err != nil {
		return money.Zero, fmt.Errorf("credit %s: %w", ref, err)
	}
	mutationsTotal.WithLabelValues("credit", string(ref.Kind)).Inc()
	return next, nil
}

// ApplyDebit subtracts amount after re-checking the balance under the row lock.
// It never writes a negative balance.
func (r *Reconciler) ApplyDebit(ctx context.Context, ledgers domain.LedgerRepository, ref domain.LedgerRef, amount money.Money) (money.Money, error) {
	if !amount.IsPositive() {
		return money.Zero, domain.ErrInvalidAmount
	}
	state, err := ledgers.LockLedger(ctx, ref)
	if err != nil {
		return money.Zero, err
	}
	if state.Balance.LessThan(amount) {
		return state.Balance, fmt.Errorf("%w: %s holds %s, needs %s", domain.ErrInsufficientBalance, ref, state.Balance, amount)
	}
	next := state.Balance.Sub(amount)
	if err := ledgers.WriteLedgerBalance(ctx, ref, next, state.Version, r.now()); err != nil {
		return money.Zero, fmt.Errorf("debit %s: %w", ref, err)
	}
	mutationsTotal.WithLabelValues("debit", string(ref.Kind)).Inc()
	return next, nil
}
