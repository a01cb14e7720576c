package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/punchamoorthee/fundledger/internal/domain"
)

func (s *FundService) CreateFund(ctx context.Context, in CreateFundInput) (*domain.Fund, error) {
	if err := s.checkActor(in.Actor); err != nil {
		return nil, err
	}
	for _, m := range in.ManagerIDs {
		if m == s.system {
			return nil, domain.ErrReservedActor
		}
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = "Family fund"
	}
	f := domain.NewFund(in.FamilyTreeID, name, in.ManagerIDs, in.BankInfo, in.Actor, s.now())
	if err := s.uow.Funds().CreateFund(ctx, f); err != nil {
		return nil, err
	}
	log.Printf("[FUND] created id=%s tree=%v by=%s", f.ID, in.FamilyTreeID, in.Actor)
	return f, nil
}

func (s *FundService) GetFund(ctx context.Context, id uuid.UUID) (*domain.Fund, error) {
	return s.uow.Funds().GetFund(ctx, id)
}

func (s *FundService) GetFundByFamilyTree(ctx context.Context, familyTreeID uuid.UUID) (*domain.Fund, error) {
	return s.uow.Funds().GetFundByFamilyTree(ctx, familyTreeID)
}

// UpdateFundBankInfo replaces the receiving account; nil clears it.
func (s *FundService) UpdateFundBankInfo(ctx context.Context, id uuid.UUID, bank *domain.BankInfo, actor uuid.UUID) (*domain.Fund, error) {
	var out *domain.Fund
	err := s.uow.InTx(ctx, func(r domain.Repositories) error {
		f, err := r.Funds().GetFund(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, r, f.Ledger(), actor); err != nil {
			return err
		}
		if bank.IsZero() {
			bank = nil
		}
		f.BankInfo = bank
		f.UpdatedAt = s.now()
		if err := r.Funds().UpdateFundDetails(ctx, f); err != nil {
			return err
		}
		out = f
		return nil
	})
	return out, err
}

func (s *FundService) AddFundManager(ctx context.Context, id, member, actor uuid.UUID) (*domain.Fund, error) {
	if member == uuid.Nil {
		return nil, fmt.Errorf("%w: manager id is required", domain.ErrMissingActor)
	}
	if member == s.system {
		return nil, domain.ErrReservedActor
	}
	var out *domain.Fund
	err := s.uow.InTx(ctx, func(r domain.Repositories) error {
		f, err := r.Funds().GetFund(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, r, f.Ledger(), actor); err != nil {
			return err
		}
		out = f
		if !f.AddManager(member) {
			return nil
		}
		f.UpdatedAt = s.now()
		return r.Funds().UpdateFundDetails(ctx, f)
	})
	return out, err
}

// DeleteFund soft-deletes an empty fund. Its donations and expenses stay readable.
func (s *FundService) DeleteFund(ctx context.Context, id, actor uuid.UUID) error {
	return s.uow.InTx(ctx, func(r domain.Repositories) error {
		if err := s.authorize(ctx, r, domain.FundLedger(id), actor); err != nil {
			return err
		}
		state, err := r.Ledgers().LockLedger(ctx, domain.FundLedger(id))
		if err != nil {
			return err
		}
		if !state.Balance.IsZero() {
			return fmt.Errorf("%w: fund still holds %s", domain.ErrInvalidState, state.Balance)
		}
		if err := r.Funds().SoftDeleteFund(ctx, id, s.now()); err != nil {
			return err
		}
		log.Printf("[FUND] deleted id=%s by=%s", id, actor)
		return nil
	})
}
