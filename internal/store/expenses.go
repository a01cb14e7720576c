package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/punchamoorthee/fundledger/internal/domain"
)

type expenseRepo struct {
	db DBTX
}

const expenseColumns = `id, fund_id, campaign_id, authorized_by, amount, category, description, receipt_images,
	status, approved_by, approved_on, payment_proof_image, approval_notes,
	rejected_by, rejected_on, rejection_reason, created_at, updated_at`

func scanExpense(row interface{ Scan(...any) error }) (*domain.Expense, error) {
	var e domain.Expense
	var fundID, campaignID *uuid.UUID
	if err := row.Scan(&e.ID, &fundID, &campaignID, &e.AuthorizedBy, &e.Amount, &e.Category, &e.Description,
		&e.ReceiptImages, &e.Status, &e.ApprovedBy, &e.ApprovedOn, &e.PaymentProofImage, &e.ApprovalNotes,
		&e.RejectedBy, &e.RejectedOn, &e.RejectionReason, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	ref, err := ledgerFromColumns(fundID, campaignID)
	if err != nil {
		return nil, err
	}
	e.Ledger = ref
	if e.ReceiptImages == nil {
		e.ReceiptImages = []string{}
	}
	return &e, nil
}

func (r expenseRepo) CreateExpense(ctx context.Context, e *domain.Expense) error {
	fundID, campaignID := ledgerColumns(e.Ledger)
	_, err := r.db.Exec(ctx,
		`INSERT INTO expenses (id, fund_id, campaign_id, authorized_by, amount, category, description,
			receipt_images, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, fundID, campaignID, e.AuthorizedBy, e.Amount, e.Category, e.Description,
		e.ReceiptImages, string(e.Status), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

func (r expenseRepo) GetExpense(ctx context.Context, id uuid.UUID) (*domain.Expense, error) {
	e, err := scanExpense(r.db.QueryRow(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err, "expense "+id.String())
	}
	return e, nil
}

func (r expenseRepo) LockExpense(ctx context.Context, id uuid.UUID) (*domain.Expense, error) {
	e, err := scanExpense(r.db.QueryRow(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return nil, notFound(err, "expense "+id.String())
	}
	return e, nil
}

func (r expenseRepo) SaveExpense(ctx context.Context, e *domain.Expense) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE expenses SET amount = $2, category = $3, description = $4, receipt_images = $5, status = $6,
			approved_by = $7, approved_on = $8, payment_proof_image = $9, approval_notes = $10,
			rejected_by = $11, rejected_on = $12, rejection_reason = $13, updated_at = $14
		 WHERE id = $1`,
		e.ID, e.Amount, e.Category, e.Description, e.ReceiptImages, string(e.Status),
		e.ApprovedBy, e.ApprovedOn, e.PaymentProofImage, e.ApprovalNotes,
		e.RejectedBy, e.RejectedOn, e.RejectionReason, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("expense %s: %w", e.ID, domain.ErrNotFound)
	}
	return nil
}

func (r expenseRepo) ListExpenses(ctx context.Context, f domain.ListFilter) ([]*domain.Expense, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE "+ledgerWhere(f.Ledger)+` = $1
		 AND ($2::text = '' OR status = $2::text)
		 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		f.Ledger.ID, f.Status, f.Limit, f.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := []*domain.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
