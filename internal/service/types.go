package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/fundledger/internal/domain"
	"github.com/punchamoorthee/fundledger/internal/evidence"
	"github.com/punchamoorthee/fundledger/internal/money"
)

type LedgerBalance struct {
	Ledger  domain.LedgerRef `json:"ledger"`
	Balance money.Money      `json:"balance"`
}

type CreateFundInput struct {
	FamilyTreeID *uuid.UUID
	Name         string
	ManagerIDs   []uuid.UUID
	BankInfo     *domain.BankInfo
	Actor        uuid.UUID
}

type CreateCampaignInput struct {
	FundOwnerID uuid.UUID
	// ManagerID defaults to Actor.
	ManagerID   uuid.UUID
	Name        string
	Description string
	Goal        money.Money
	StartDate   time.Time
	EndDate     time.Time
	BankInfo    *domain.BankInfo
	Actor       uuid.UUID
}

type CreateDonationInput struct {
	Ledger        domain.LedgerRef
	Amount        money.Money
	Method        domain.PaymentMethod
	DonorMemberID *uuid.UUID
	DonorName     string
	Message       string
	// Actor may be nil for anonymous donors.
	Actor uuid.UUID
}

// CreateDonationResult carries the gateway order for bank transfers.
type CreateDonationResult struct {
	Donation    *domain.Donation `json:"donation"`
	OrderCode   *int64           `json:"order_code,omitempty"`
	QRCodeURL   string           `json:"qr_code_url,omitempty"`
	CheckoutURL string           `json:"checkout_url,omitempty"`
}

type CreateExpenseInput struct {
	Ledger      domain.LedgerRef
	Amount      money.Money
	Category    string
	Description string
	Receipts    []evidence.File
	Actor       uuid.UUID
}

// PaymentProof is either an uploaded file or an already stored URL.
type PaymentProof struct {
	File *evidence.File
	URL  string
}

// DonationResult is returned by transitions that may move money.
type DonationResult struct {
	Donation *domain.Donation `json:"donation"`
	Balance  *money.Money     `json:"ledger_balance,omitempty"`
}

type ExpenseResult struct {
	Expense *domain.Expense `json:"expense"`
	Balance *money.Money    `json:"ledger_balance,omitempty"`
}
