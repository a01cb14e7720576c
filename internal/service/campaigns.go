package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/punchamoorthee/fundledger/internal/domain"
	"github.com/punchamoorthee/fundledger/internal/money"
)

// CreateCampaign opens a campaign under the fund of a family tree. The actor
// must manage that fund.
func (s *FundService) CreateCampaign(ctx context.Context, in CreateCampaignInput) (*domain.Campaign, error) {
	if err := s.checkActor(in.Actor); err != nil {
		return nil, err
	}
	manager := in.ManagerID
	if manager == uuid.Nil {
		manager = in.Actor
	}
	if manager == s.system {
		return nil, domain.ErrReservedActor
	}
	c, err := domain.NewCampaign(domain.NewCampaignParams{
		FundOwnerID: in.FundOwnerID,
		ManagerID:   manager,
		Name:        in.Name,
		Description: in.Description,
		Goal:        in.Goal,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		BankInfo:    in.BankInfo,
	}, s.now())
	if err != nil {
		return nil, err
	}

	err = s.uow.InTx(ctx, func(r domain.Repositories) error {
		f, err := r.Funds().GetFundByFamilyTree(ctx, in.FundOwnerID)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: family tree %s has no fund", domain.ErrInvalidCampaign, in.FundOwnerID)
		}
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, r, f.Ledger(), in.Actor); err != nil {
			return err
		}
		return r.Campaigns().CreateCampaign(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[CAMPAIGN] created id=%s tree=%s status=%s goal=%s", c.ID, c.FundOwnerID, c.Status, c.Goal)
	return c, nil
}

// GetCampaign returns the campaign with its status derived at the current time.
func (s *FundService) GetCampaign(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	c, err := s.uow.Campaigns().GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Status = c.StatusAt(s.now())
	return c, nil
}

func (s *FundService) CancelCampaign(ctx context.Context, id, actor uuid.UUID) (*domain.Campaign, error) {
	var out *domain.Campaign
	err := s.uow.InTx(ctx, func(r domain.Repositories) error {
		ref := domain.CampaignLedger(id)
		if err := s.authorize(ctx, r, ref, actor); err != nil {
			return err
		}
		// The ledger lock orders this against confirmations completing the campaign.
		if _, err := r.Ledgers().LockLedger(ctx, ref); err != nil {
			return err
		}
		c, err := r.Campaigns().GetCampaign(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		if err := c.Cancel(now); err != nil {
			return err
		}
		if err := r.Campaigns().UpdateCampaignStatus(ctx, id, c.Status, now); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[CAMPAIGN] cancelled id=%s by=%s", id, actor)
	return out, nil
}

// RefreshCampaignStatuses persists time-driven status changes and reports how
// many campaigns changed.
func (s *FundService) RefreshCampaignStatuses(ctx context.Context) (int, error) {
	open, err := s.uow.Campaigns().ListOpenCampaigns(ctx)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, stale := range open {
		var moved bool
		err := s.uow.InTx(ctx, func(r domain.Repositories) error {
			if _, err := r.Ledgers().LockLedger(ctx, stale.Ledger()); err != nil {
				return err
			}
			c, err := r.Campaigns().GetCampaign(ctx, stale.ID)
			if err != nil {
				return err
			}
			now := s.now()
			if !c.Refresh(now) {
				return nil
			}
			moved = true
			return r.Campaigns().UpdateCampaignStatus(ctx, c.ID, c.Status, now)
		})
		if err != nil {
			return changed, fmt.Errorf("refresh campaign %s: %w", stale.ID, err)
		}
		if moved {
			changed++
		}
	}
	return changed, nil
}

// syncCampaignBalance mirrors a new balance onto the campaign row and completes
// the campaign when its goal is reached. The caller holds the ledger lock.
func (s *FundService) syncCampaignBalance(ctx context.Context, r domain.Repositories, ref domain.LedgerRef, balance money.Money) error {
	if ref.Kind != domain.LedgerCampaign {
		return nil
	}
	c, err := r.Campaigns().GetCampaign(ctx, ref.ID)
	if err != nil {
		return err
	}
	c.CurrentBalance = balance
	now := s.now()
	if !c.Refresh(now) {
		return nil
	}
	log.Printf("[CAMPAIGN] status id=%s status=%s balance=%s goal=%s", c.ID, c.Status, balance, c.Goal)
	return r.Campaigns().UpdateCampaignStatus(ctx, c.ID, c.Status, now)
}
