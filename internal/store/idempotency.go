package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/fundledger/internal/domain"
)

type idempotencyRepo struct {
	db DBTX
}

func (r idempotencyRepo) ReserveKey(ctx context.Context, key, requestHash string) (*domain.IdempotencyRecord, bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO idempotency_keys (key, request_hash, status) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO NOTHING`,
		key, requestHash, domain.IdempotencyInProgress,
	)
	if err != nil {
		return nil, false, fmt.Errorf("key reservation failed: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil, true, nil
	}

	rec := &domain.IdempotencyRecord{Key: key}
	var status *int32
	err = r.db.QueryRow(ctx,
		"SELECT request_hash, status, response_status, response_body FROM idempotency_keys WHERE key = $1",
		key,
	).Scan(&rec.RequestHash, &rec.Status, &status, &rec.ResponseBody)
	if errors.Is(err, pgx.ErrNoRows) {
		// The holder released the key between the insert and the read.
		return nil, false, domain.ErrIdempotencyConflict
	}
	if err != nil {
		return nil, false, err
	}
	if status != nil {
		rec.ResponseStatus = int(*status)
	}
	return rec, false, nil
}

func (r idempotencyRepo) CompleteKey(ctx context.Context, key string, status int, body []byte) error {
	_, err := r.db.Exec(ctx,
		`UPDATE idempotency_keys SET status = $2, response_status = $3, response_body = $4, updated_at = now()
		 WHERE key = $1`,
		key, domain.IdempotencyCompleted, status, nullableJSON(body),
	)
	if err != nil {
		return fmt.Errorf("idempotency update failed: %w", err)
	}
	return nil
}

func (r idempotencyRepo) ReleaseKey(ctx context.Context, key string) error {
	_, err := r.db.Exec(ctx, "DELETE FROM idempotency_keys WHERE key = $1 AND status = $2", key, domain.IdempotencyInProgress)
	return err
}
