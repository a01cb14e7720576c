package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/fundledger/internal/money"
)

// Repositories are narrow per-aggregate stores. None of them exposes a way to
// set a balance except LedgerRepository, which only the reconciler calls.
// Lookups of missing or soft-deleted rows return ErrNotFound.

type FundRepository interface {
	CreateFund(ctx context.Context, f *Fund) error
	GetFund(ctx context.Context, id uuid.UUID) (*Fund, error)
	GetFundByFamilyTree(ctx context.Context, familyTreeID uuid.UUID) (*Fund, error)
	UpdateFundDetails(ctx context.Context, f *Fund) error
	SoftDeleteFund(ctx context.Context, id uuid.UUID, now time.Time) error
}

type CampaignRepository interface {
	CreateCampaign(ctx context.Context, c *Campaign) error
	GetCampaign(ctx context.Context, id uuid.UUID) (*Campaign, error)
	UpdateCampaignStatus(ctx context.Context, id uuid.UUID, status CampaignStatus, now time.Time) error
	// ListOpenCampaigns returns campaigns whose stored status may still change with time.
	ListOpenCampaigns(ctx context.Context) ([]*Campaign, error)
}

type DonationRepository interface {
	CreateDonation(ctx context.Context, d *Donation) error
	GetDonation(ctx context.Context, id uuid.UUID) (*Donation, error)
	// LockDonation reads the row under a row lock held until the transaction ends.
	LockDonation(ctx context.Context, id uuid.UUID) (*Donation, error)
	LockDonationByOrderCode(ctx context.Context, orderCode int64) (*Donation, error)
	SaveDonation(ctx context.Context, d *Donation) error
	ListDonations(ctx context.Context, f ListFilter) ([]*Donation, error)
}

type ExpenseRepository interface {
	CreateExpense(ctx context.Context, e *Expense) error
	GetExpense(ctx context.Context, id uuid.UUID) (*Expense, error)
	LockExpense(ctx context.Context, id uuid.UUID) (*Expense, error)
	SaveExpense(ctx context.Context, e *Expense) error
	ListExpenses(ctx context.Context, f ListFilter) ([]*Expense, error)
}

type PayOSTransactionRepository interface {
	// EnsurePayOSTransaction inserts t unless a row with the same order code exists.
	// It reports whether a row was inserted.
	EnsurePayOSTransaction(ctx context.Context, t *PayOSTransaction) (bool, error)
	GetPayOSTransaction(ctx context.Context, orderCode int64) (*PayOSTransaction, error)
	LockPayOSTransaction(ctx context.Context, orderCode int64) (*PayOSTransaction, error)
	SavePayOSTransaction(ctx context.Context, t *PayOSTransaction) error
}

type LedgerRepository interface {
	// LockLedger reads balance and version under a row lock.
	LockLedger(ctx context.Context, ref LedgerRef) (LedgerState, error)
	// WriteLedgerBalance stores balance if the row still has expectedVersion and
	// bumps the version. A version mismatch yields ErrConcurrentUpdate.
	WriteLedgerBalance(ctx context.Context, ref LedgerRef, balance money.Money, expectedVersion int64, now time.Time) error
	// LedgerBalance is an unlocked read for display.
	LedgerBalance(ctx context.Context, ref LedgerRef) (money.Money, error)
}

type Repositories interface {
	Funds() FundRepository
	Campaigns() CampaignRepository
	Donations() DonationRepository
	Expenses() ExpenseRepository
	PayOS() PayOSTransactionRepository
	Ledgers() LedgerRepository
}

// UnitOfWork runs fn against repositories bound to one database transaction.
// fn returning an error rolls everything back.
type UnitOfWork interface {
	Repositories
	InTx(ctx context.Context, fn func(Repositories) error) error
}
