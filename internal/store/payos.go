package store

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/fundledger/internal/domain"
)

type payosRepo struct {
	db DBTX
}

const payosColumns = `id, order_code, donation_id, payos_status, reference, webhook_raw_payload,
	completed_at, created_at, updated_at`

func scanPayOS(row interface{ Scan(...any) error }) (*domain.PayOSTransaction, error) {
	var t domain.PayOSTransaction
	var raw []byte
	if err := row.Scan(&t.ID, &t.OrderCode, &t.DonationID, &t.PayOSStatus, &t.Reference, &raw,
		&t.CompletedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		t.WebhookRawPayload = raw
	}
	return &t, nil
}

// nullableJSON keeps an empty payload out of the jsonb column.
func nullableJSON(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

func (r payosRepo) EnsurePayOSTransaction(ctx context.Context, t *domain.PayOSTransaction) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO payos_transactions (id, order_code, donation_id, payos_status, reference, webhook_raw_payload,
			completed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (order_code) DO NOTHING`,
		t.ID, t.OrderCode, t.DonationID, t.PayOSStatus, t.Reference, nullableJSON(t.WebhookRawPayload),
		t.CompletedAt, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert payos transaction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r payosRepo) GetPayOSTransaction(ctx context.Context, orderCode int64) (*domain.PayOSTransaction, error) {
	t, err := scanPayOS(r.db.QueryRow(ctx,
		"SELECT "+payosColumns+" FROM payos_transactions WHERE order_code = $1", orderCode))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("payos order %d", orderCode))
	}
	return t, nil
}

func (r payosRepo) LockPayOSTransaction(ctx context.Context, orderCode int64) (*domain.PayOSTransaction, error) {
	t, err := scanPayOS(r.db.QueryRow(ctx,
		"SELECT "+payosColumns+" FROM payos_transactions WHERE order_code = $1 FOR UPDATE", orderCode))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("payos order %d", orderCode))
	}
	return t, nil
}

func (r payosRepo) SavePayOSTransaction(ctx context.Context, t *domain.PayOSTransaction) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE payos_transactions SET donation_id = $2, payos_status = $3, reference = $4,
			webhook_raw_payload = $5, completed_at = $6, updated_at = $7
		 WHERE order_code = $1`,
		t.OrderCode, t.DonationID, t.PayOSStatus, t.Reference, nullableJSON(t.WebhookRawPayload),
		t.CompletedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update payos transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payos order %d: %w", t.OrderCode, domain.ErrNotFound)
	}
	return nil
}
