package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/fundledger/internal/money"
)

type CampaignStatus string

const (
	CampaignUpcoming  CampaignStatus = "upcoming"
	CampaignActive    CampaignStatus = "active"
	CampaignCompleted CampaignStatus = "completed"
	CampaignCancelled CampaignStatus = "cancelled"
)

// Campaign is a time-boxed sub-ledger raising money for one goal.
// CurrentBalance counts completed donations minus approved expenses scoped to it.
type Campaign struct {
	ID             uuid.UUID      `json:"id"`
	FundOwnerID    uuid.UUID      `json:"fund_owner_id"`
	ManagerID      uuid.UUID      `json:"manager_id"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	Goal           money.Money    `json:"goal"`
	CurrentBalance money.Money    `json:"current_balance"`
	Version        int64          `json:"-"`
	StartDate      time.Time      `json:"start_date"`
	EndDate        time.Time      `json:"end_date"`
	Status         CampaignStatus `json:"status"`
	BankInfo       *BankInfo      `json:"bank_info,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      *time.Time     `json:"-"`
}

type NewCampaignParams struct {
	FundOwnerID uuid.UUID
	ManagerID   uuid.UUID
	Name        string
	Description string
	Goal        money.Money
	StartDate   time.Time
	EndDate     time.Time
	BankInfo    *BankInfo
}

func NewCampaign(p NewCampaignParams, now time.Time) (*Campaign, error) {
	if !p.Goal.IsPositive() {
		return nil, fmt.Errorf("%w: goal must be positive", ErrInvalidAmount)
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidCampaign)
	}
	if p.FundOwnerID == uuid.Nil || p.ManagerID == uuid.Nil {
		return nil, fmt.Errorf("%w: owner and manager are required", ErrInvalidCampaign)
	}
	if !p.EndDate.After(p.StartDate) {
		return nil, fmt.Errorf("%w: end date must be after start date", ErrInvalidCampaign)
	}
	c := &Campaign{
		ID:             uuid.New(),
		FundOwnerID:    p.FundOwnerID,
		ManagerID:      p.ManagerID,
		Name:           strings.TrimSpace(p.Name),
		Description:    p.Description,
		Goal:           p.Goal,
		CurrentBalance: money.Zero,
		StartDate:      p.StartDate,
		EndDate:        p.EndDate,
		BankInfo:       p.BankInfo,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	c.Status = c.StatusAt(now)
	return c, nil
}

// StatusAt derives the status at now. Cancelled and Completed are sticky.
func (c *Campaign) StatusAt(now time.Time) CampaignStatus {
	switch c.Status {
	case CampaignCancelled, CampaignCompleted:
		return c.Status
	}
	switch {
	case now.Before(c.StartDate):
		return CampaignUpcoming
	case now.After(c.EndDate):
		return CampaignCompleted
	case c.Goal.IsPositive() && c.CurrentBalance.Cmp(c.Goal) >= 0:
		return CampaignCompleted
	default:
		return CampaignActive
	}
}

// AcceptsDonations reports whether a new donation may be opened at now.
func (c *Campaign) AcceptsDonations(now time.Time) error {
	if s := c.StatusAt(now); s != CampaignActive {
		return fmt.Errorf("%w: campaign is %s", ErrCampaignNotActive, s)
	}
	return nil
}

// AcceptsExpenses reports whether an expense may be filed at now.
func (c *Campaign) AcceptsExpenses(now time.Time) error {
	if s := c.StatusAt(now); s == CampaignUpcoming {
		return fmt.Errorf("%w: campaign is %s", ErrCampaignNotActive, s)
	}
	return nil
}

func (c *Campaign) Cancel(now time.Time) error {
	switch s := c.StatusAt(now); s {
	case CampaignCancelled, CampaignCompleted:
		return fmt.Errorf("%w: campaign is %s", ErrInvalidState, s)
	}
	c.Status = CampaignCancelled
	c.UpdatedAt = now
	return nil
}

// Refresh persists the derived status into Status and reports whether it changed.
func (c *Campaign) Refresh(now time.Time) bool {
	next := c.StatusAt(now)
	if next == c.Status {
		return false
	}
	c.Status = next
	c.UpdatedAt = now
	return true
}

func (c *Campaign) Ledger() LedgerRef { return CampaignLedger(c.ID) }
