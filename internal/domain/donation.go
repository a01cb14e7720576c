package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/fundledger/internal/money"
)

type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationCompleted DonationStatus = "completed"
	DonationRejected  DonationStatus = "rejected"
)

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

func (m PaymentMethod) Valid() bool {
	return m == MethodCash || m == MethodBankTransfer
}

// MaxProofImages caps the proof list of a single donation.
const MaxProofImages = 5

// Donation is a credit request against a fund or campaign.
type Donation struct {
	ID                uuid.UUID      `json:"id"`
	Ledger            LedgerRef      `json:"ledger"`
	DonorMemberID     *uuid.UUID     `json:"donor_member_id,omitempty"`
	DonorName         string         `json:"donor_name,omitempty"`
	Message           string         `json:"message,omitempty"`
	Amount            money.Money    `json:"amount"`
	Method            PaymentMethod  `json:"method"`
	ProofImages       []string       `json:"proof_images"`
	Status            DonationStatus `json:"status"`
	PayOrderCode      *int64         `json:"pay_order_code,omitempty"`
	ConfirmedBy       *uuid.UUID     `json:"confirmed_by,omitempty"`
	ConfirmedOn       *time.Time     `json:"confirmed_on,omitempty"`
	ConfirmationNotes string         `json:"confirmation_notes,omitempty"`
	RejectedBy        *uuid.UUID     `json:"rejected_by,omitempty"`
	RejectedOn        *time.Time     `json:"rejected_on,omitempty"`
	RejectionReason   string         `json:"rejection_reason,omitempty"`
	CreatedBy         uuid.UUID      `json:"created_by"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

type NewDonationParams struct {
	Ledger        LedgerRef
	DonorMemberID *uuid.UUID
	DonorName     string
	Message       string
	Amount        money.Money
	Method        PaymentMethod
	CreatedBy     uuid.UUID
}

func NewDonation(p NewDonationParams, now time.Time) (*Donation, error) {
	if err := p.Ledger.Validate(); err != nil {
		return nil, err
	}
	if !p.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !p.Method.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, p.Method)
	}
	if p.Method == MethodBankTransfer && !p.Amount.IsWhole() {
		return nil, fmt.Errorf("%w: bank transfers take whole amounts", ErrInvalidAmount)
	}
	return &Donation{
		ID:            uuid.New(),
		Ledger:        p.Ledger,
		DonorMemberID: p.DonorMemberID,
		DonorName:     strings.TrimSpace(p.DonorName),
		Message:       p.Message,
		Amount:        p.Amount,
		Method:        p.Method,
		ProofImages:   []string{},
		Status:        DonationPending,
		CreatedBy:     p.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (d *Donation) IsFinal() bool { return d.Status != DonationPending }

// AppendProof adds evidence URLs. Existing images are kept.
func (d *Donation) AppendProof(urls []string, now time.Time) error {
	if d.IsFinal() {
		return fmt.Errorf("%w: donation is %s", ErrInvalidState, d.Status)
	}
	if len(d.ProofImages)+len(urls) > MaxProofImages {
		return fmt.Errorf("%w: a donation holds at most %d proof images", ErrTooManyImages, MaxProofImages)
	}
	d.ProofImages = append(d.ProofImages, urls...)
	d.UpdatedAt = now
	return nil
}

// Confirm moves a pending donation to Completed. The caller must credit the ledger
// in the same transaction.
func (d *Donation) Confirm(actor uuid.UUID, notes string, now time.Time) error {
	if d.IsFinal() {
		return fmt.Errorf("%w: donation is %s", ErrAlreadyFinal, d.Status)
	}
	if len(d.ProofImages) == 0 {
		return ErrMissingEvidence
	}
	d.Status = DonationCompleted
	d.ConfirmedBy = &actor
	d.ConfirmedOn = &now
	d.ConfirmationNotes = notes
	d.UpdatedAt = now
	return nil
}

func (d *Donation) Reject(actor uuid.UUID, reason string, now time.Time) error {
	if d.IsFinal() {
		return fmt.Errorf("%w: donation is %s", ErrAlreadyFinal, d.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	d.Status = DonationRejected
	d.RejectedBy = &actor
	d.RejectedOn = &now
	d.RejectionReason = reason
	d.UpdatedAt = now
	return nil
}

// DonationEdit holds the optional fields of a pending-donation edit.
type DonationEdit struct {
	Amount    *money.Money
	DonorName *string
	Message   *string
}

func (d *Donation) Edit(e DonationEdit, now time.Time) error {
	if d.IsFinal() {
		return fmt.Errorf("%w: donation is %s", ErrInvalidState, d.Status)
	}
	if e.Amount != nil {
		if !e.Amount.IsPositive() {
			return ErrInvalidAmount
		}
		// The gateway order was issued for the original amount.
		if d.PayOrderCode != nil && !e.Amount.Equal(d.Amount) {
			return fmt.Errorf("%w: amount of a gateway order cannot change", ErrInvalidState)
		}
		d.Amount = *e.Amount
	}
	if e.DonorName != nil {
		d.DonorName = strings.TrimSpace(*e.DonorName)
	}
	if e.Message != nil {
		d.Message = *e.Message
	}
	d.UpdatedAt = now
	return nil
}
