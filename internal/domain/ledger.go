package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/punchamoorthee/fundledger/internal/money"
)

// LedgerKind tells which table owns a balance.
type LedgerKind string

const (
	LedgerFund     LedgerKind = "fund"
	LedgerCampaign LedgerKind = "campaign"
)

// LedgerRef points at the Fund or Campaign a donation or expense belongs to.
type LedgerRef struct {
	Kind LedgerKind `json:"kind"`
	ID   uuid.UUID  `json:"id"`
}

func FundLedger(id uuid.UUID) LedgerRef     { return LedgerRef{Kind: LedgerFund, ID: id} }
func CampaignLedger(id uuid.UUID) LedgerRef { return LedgerRef{Kind: LedgerCampaign, ID: id} }

// ParseLedgerRef builds a reference from its wire form.
func ParseLedgerRef(kind, id string) (LedgerRef, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return LedgerRef{}, fmt.Errorf("%w: %v", ErrInvalidLedger, err)
	}
	ref := LedgerRef{Kind: LedgerKind(strings.ToLower(kind)), ID: uid}
	return ref, ref.Validate()
}

func (r LedgerRef) Validate() error {
	if r.Kind != LedgerFund && r.Kind != LedgerCampaign {
		return fmt.Errorf("%w: kind %q", ErrInvalidLedger, r.Kind)
	}
	if r.ID == uuid.Nil {
		return fmt.Errorf("%w: empty id", ErrInvalidLedger)
	}
	return nil
}

func (r LedgerRef) String() string { return string(r.Kind) + ":" + r.ID.String() }

// LedgerState is a locked snapshot of a ledger row. Version is bumped on every balance write.
type LedgerState struct {
	Ref     LedgerRef
	Balance money.Money
	Version int64
}

// BankInfo is the receiving account shown to bank-transfer donors.
type BankInfo struct {
	AccountNumber string `json:"account_number" validate:"required,max=32"`
	BankCode      string `json:"bank_code" validate:"required,max=16"`
	BankName      string `json:"bank_name" validate:"max=128"`
	HolderName    string `json:"holder_name" validate:"required,max=128"`
}

func (b *BankInfo) IsZero() bool {
	return b == nil || (b.AccountNumber == "" && b.BankCode == "")
}
