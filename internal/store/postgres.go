// Package store implements the domain repositories on Postgres with pgx.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/fundledger/internal/domain"
)

//go:embed schema.sql
var schema string

// Postgres error codes handled explicitly.
const (
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so every repository
// runs unchanged inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	Db *pgxpool.Pool
	repos
}

var _ domain.UnitOfWork = (*Store)(nil)

func NewStore(ctx context.Context, connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return NewStoreFromPool(pool), nil
}

func NewStoreFromPool(pool *pgxpool.Pool) *Store {
	return &Store{Db: pool, repos: repos{db: pool}}
}

func (s *Store) Close() {
	s.Db.Close()
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.Db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// InTx runs fn in a read-committed transaction. Ledger rows are serialized by
// SELECT ... FOR UPDATE plus the version check, not by the isolation level.
func (s *Store) InTx(ctx context.Context, fn func(domain.Repositories) error) error {
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(repos{db: tx}); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(fmt.Errorf("tx commit failed: %w", err))
	}
	return nil
}

type repos struct {
	db DBTX
}

func (r repos) Funds() domain.FundRepository { return fundRepo{db: r.db} }
func (r repos) Campaigns() domain.CampaignRepository { return campaignRepo{db: r.db} }
func (r repos) Donations() domain.DonationRepository { return donationRepo{db: r.db} }
func (r repos) Expenses() domain.ExpenseRepository { return expenseRepo{db: r.db} }
func (r repos) PayOS() domain.PayOSTransactionRepository { return payosRepo{db: r.db} }
func (r repos) Ledgers() domain.LedgerRepository { return ledgerRepo{db: r.db} }

// Idempotency is used outside ledger transactions only.
func (r repos) Idempotency() domain.IdempotencyRepository { return idempotencyRepo{db: r.db} }

// mapError turns transient Postgres failures into domain.ErrRetryable and a
// tripped balance CHECK into domain.ErrInsufficientBalance.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%w: %v", domain.ErrRetryable, err)
	case codeCheckViolation:
		if pgErr.ConstraintName == "funds_balance_check" || pgErr.ConstraintName == "campaigns_current_balance_check" {
			return fmt.Errorf("%w: %v", domain.ErrInsufficientBalance, err)
		}
	}
	return err
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// notFound maps pgx.ErrNoRows to domain.ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return err
}
