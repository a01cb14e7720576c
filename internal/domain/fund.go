package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/fundledger/internal/money"
)

// Fund is the money pool of one family tree.
// Balance is written only by the ledger reconciler.
type Fund struct {
	ID           uuid.UUID   `json:"id"`
	FamilyTreeID *uuid.UUID  `json:"family_tree_id,omitempty"`
	Name         string      `json:"name"`
	Balance      money.Money `json:"balance"`
	Version      int64       `json:"-"`
	BankInfo     *BankInfo   `json:"bank_info,omitempty"`
	ManagerIDs   []uuid.UUID `json:"manager_ids"`
	CreatedBy    uuid.UUID   `json:"created_by"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	DeletedAt    *time.Time  `json:"-"`
}

// NewFund creates an empty fund. The creator is always a manager.
func NewFund(familyTreeID *uuid.UUID, name string, managers []uuid.UUID, bank *BankInfo, creator uuid.UUID, now time.Time) *Fund {
	f := &Fund{
		ID:           uuid.New(),
		FamilyTreeID: familyTreeID,
		Name:         name,
		Balance:      money.Zero,
		BankInfo:     bank,
		CreatedBy:    creator,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.AddManager(creator)
	for _, m := range managers {
		f.AddManager(m)
	}
	return f
}

func (f *Fund) IsManager(member uuid.UUID) bool {
	for _, m := range f.ManagerIDs {
		if m == member {
			return true
		}
	}
	return false
}

// AddManager keeps ManagerIDs a set. It reports whether the member was added.
func (f *Fund) AddManager(member uuid.UUID) bool {
	if member == uuid.Nil || f.IsManager(member) {
		return false
	}
	f.ManagerIDs = append(f.ManagerIDs, member)
	return true
}

func (f *Fund) Ledger() LedgerRef { return FundLedger(f.ID) }
