package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/fundledger/internal/money"
)

type ExpenseStatus string

const (
	ExpensePending  ExpenseStatus = "pending"
	ExpenseApproved ExpenseStatus = "approved"
	ExpenseRejected ExpenseStatus = "rejected"
)

// Expense is a debit request against a fund or campaign.
type Expense struct {
	ID                uuid.UUID     `json:"id"`
	Ledger            LedgerRef     `json:"ledger"`
	AuthorizedBy      uuid.UUID     `json:"authorized_by"`
	Amount            money.Money   `json:"amount"`
	Category          string        `json:"category"`
	Description       string        `json:"description"`
	ReceiptImages     []string      `json:"receipt_images"`
	Status            ExpenseStatus `json:"status"`
	ApprovedBy        *uuid.UUID    `json:"approved_by,omitempty"`
	ApprovedOn        *time.Time    `json:"approved_on,omitempty"`
	PaymentProofImage string        `json:"payment_proof_image,omitempty"`
	ApprovalNotes     string        `json:"approval_notes,omitempty"`
	RejectedBy        *uuid.UUID    `json:"rejected_by,omitempty"`
	RejectedOn        *time.Time    `json:"rejected_on,omitempty"`
	RejectionReason   string        `json:"rejection_reason,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

type NewExpenseParams struct {
	Ledger        LedgerRef
	AuthorizedBy  uuid.UUID
	Amount        money.Money
	Category      string
	Description   string
	ReceiptImages []string
}

func NewExpense(p NewExpenseParams, now time.Time) (*Expense, error) {
	if err := p.Ledger.Validate(); err != nil {
		return nil, err
	}
	if p.AuthorizedBy == uuid.Nil {
		return nil, ErrMissingActor
	}
	if !p.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	receipts := make([]string, 0, len(p.ReceiptImages))
	receipts = append(receipts, p.ReceiptImages...)
	return &Expense{
		ID:            uuid.New(),
		Ledger:        p.Ledger,
		AuthorizedBy:  p.AuthorizedBy,
		Amount:        p.Amount,
		Category:      strings.TrimSpace(p.Category),
		Description:   p.Description,
		ReceiptImages: receipts,
		Status:        ExpensePending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (e *Expense) IsFinal() bool { return e.Status != ExpensePending }

func (e *Expense) AppendReceipts(urls []string, now time.Time) error {
	if e.IsFinal() {
		return fmt.Errorf("%w: expense is %s", ErrInvalidState, e.Status)
	}
	e.ReceiptImages = append(e.ReceiptImages, urls...)
	e.UpdatedAt = now
	return nil
}

// Approve marks the expense Approved. The caller debits the ledger in the same
// transaction and discards this change when the debit is refused.
func (e *Expense) Approve(actor uuid.UUID, notes, paymentProof string, now time.Time) error {
	if e.IsFinal() {
		return fmt.Errorf("%w: expense is %s", ErrAlreadyFinal, e.Status)
	}
	if strings.TrimSpace(paymentProof) == "" {
		return ErrMissingPaymentProof
	}
	e.Status = ExpenseApproved
	e.ApprovedBy = &actor
	e.ApprovedOn = &now
	e.PaymentProofImage = paymentProof
	e.ApprovalNotes = notes
	e.UpdatedAt = now
	return nil
}

func (e *Expense) Reject(actor uuid.UUID, reason string, now time.Time) error {
	if e.IsFinal() {
		return fmt.Errorf("%w: expense is %s", ErrAlreadyFinal, e.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	e.Status = ExpenseRejected
	e.RejectedBy = &actor
	e.RejectedOn = &now
	e.RejectionReason = reason
	e.UpdatedAt = now
	return nil
}

type ExpenseEdit struct {
	Amount      *money.Money
	Category    *string
	Description *string
}

func (e *Expense) Edit(ed ExpenseEdit, now time.Time) error {
	if e.IsFinal() {
		return fmt.Errorf("%w: expense is %s", ErrInvalidState, e.Status)
	}
	if ed.Amount != nil {
		if !ed.Amount.IsPositive() {
			return ErrInvalidAmount
		}
		e.Amount = *ed.Amount
	}
	if ed.Category != nil {
		e.Category = strings.TrimSpace(*ed.Category)
	}
	if ed.Description != nil {
		e.Description = *ed.Description
	}
	e.UpdatedAt = now
	return nil
}
