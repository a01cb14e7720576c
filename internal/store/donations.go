package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/punchamoorthee/fundledger/internal/domain"
)

type donationRepo struct {
	db DBTX
}

const donationColumns = `id, fund_id, campaign_id, donor_member_id, donor_name, message, amount, method,
	proof_images, status, pay_order_code, confirmed_by, confirmed_on, confirmation_notes,
	rejected_by, rejected_on, rejection_reason, created_by, created_at, updated_at`

func scanDonation(row interface{ Scan(...any) error }) (*domain.Donation, error) {
	var d domain.Donation
	var fundID, campaignID, createdBy *uuid.UUID
	if err := row.Scan(&d.ID, &fundID, &campaignID, &d.DonorMemberID, &d.DonorName, &d.Message, &d.Amount, &d.Method,
		&d.ProofImages, &d.Status, &d.PayOrderCode, &d.ConfirmedBy, &d.ConfirmedOn, &d.ConfirmationNotes,
		&d.RejectedBy, &d.RejectedOn, &d.RejectionReason, &createdBy, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	ref, err := ledgerFromColumns(fundID, campaignID)
	if err != nil {
		return nil, err
	}
	d.Ledger = ref
	if createdBy != nil {
		d.CreatedBy = *createdBy
	}
	if d.ProofImages == nil {
		d.ProofImages = []string{}
	}
	return &d, nil
}

func (r donationRepo) CreateDonation(ctx context.Context, d *domain.Donation) error {
	fundID, campaignID := ledgerColumns(d.Ledger)
	var createdBy *uuid.UUID
	if d.CreatedBy != uuid.Nil {
		createdBy = &d.CreatedBy
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO donations (id, fund_id, campaign_id, donor_member_id, donor_name, message, amount, method,
			proof_images, status, pay_order_code, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		d.ID, fundID, campaignID, d.DonorMemberID, d.DonorName, d.Message, d.Amount, string(d.Method),
		d.ProofImages, string(d.Status), d.PayOrderCode, createdBy, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "donations_pay_order_code_key") {
			return fmt.Errorf("%w: order code %d already in use", domain.ErrRetryable, *d.PayOrderCode)
		}
		return fmt.Errorf("insert donation: %w", err)
	}
	return nil
}

func (r donationRepo) GetDonation(ctx context.Context, id uuid.UUID) (*domain.Donation, error) {
	d, err := scanDonation(r.db.QueryRow(ctx, "SELECT "+donationColumns+" FROM donations WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err, "donation "+id.String())
	}
	return d, nil
}

func (r donationRepo) LockDonation(ctx context.Context, id uuid.UUID) (*domain.Donation, error) {
	d, err := scanDonation(r.db.QueryRow(ctx, "SELECT "+donationColumns+" FROM donations WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return nil, notFound(err, "donation "+id.String())
	}
	return d, nil
}

func (r donationRepo) LockDonationByOrderCode(ctx context.Context, orderCode int64) (*domain.Donation, error) {
	d, err := scanDonation(r.db.QueryRow(ctx,
		"SELECT "+donationColumns+" FROM donations WHERE pay_order_code = $1 FOR UPDATE", orderCode))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("donation with order %d", orderCode))
	}
	return d, nil
}

// SaveDonation writes the mutable columns. The ledger reference, method and
// order code never change after insert.
func (r donationRepo) SaveDonation(ctx context.Context, d *domain.Donation) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE donations SET donor_name = $2, message = $3, amount = $4, proof_images = $5, status = $6,
			confirmed_by = $7, confirmed_on = $8, confirmation_notes = $9,
			rejected_by = $10, rejected_on = $11, rejection_reason = $12, updated_at = $13
		 WHERE id = $1`,
		d.ID, d.DonorName, d.Message, d.Amount, d.ProofImages, string(d.Status),
		d.ConfirmedBy, d.ConfirmedOn, d.ConfirmationNotes,
		d.RejectedBy, d.RejectedOn, d.RejectionReason, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update donation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("donation %s: %w", d.ID, domain.ErrNotFound)
	}
	return nil
}

func (r donationRepo) ListDonations(ctx context.Context, f domain.ListFilter) ([]*domain.Donation, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+donationColumns+" FROM donations WHERE "+ledgerWhere(f.Ledger)+` = $1
		 AND ($2::text = '' OR status = $2::text)
		 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		f.Ledger.ID, f.Status, f.Limit, f.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	defer rows.Close()

	out := []*domain.Donation{}
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
