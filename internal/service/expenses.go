package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/punchamoorthee/fundledger/internal/domain"
	"github.com/punchamoorthee/fundledger/internal/evidence"
)

// CreateExpense files a pending debit request. Receipts are optional at creation.
func (s *FundService) CreateExpense(ctx context.Context, in CreateExpenseInput) (*domain.Expense, error) {
	if in.Actor == s.system {
		return nil, domain.ErrReservedActor
	}
	now := s.now()
	e, err := domain.NewExpense(domain.NewExpenseParams{
		Ledger:       in.Ledger,
		AuthorizedBy: in.Actor,
		Amount:       in.Amount,
		Category:     in.Category,
		Description:  in.Description,
	}, now)
	if err != nil {
		return nil, err
	}

	owner, err := s.loadOwner(ctx, s.uow, in.Ledger)
	if err != nil {
		return nil, err
	}
	if owner.campaign != nil {
		if err := owner.campaign.AcceptsExpenses(now); err != nil {
			return nil, err
		}
	}

	if len(in.Receipts) > 0 {
		urls, err := s.evidence.Store(ctx, "expenses/"+e.ID.String(), in.Receipts)
		if err != nil {
			return nil, err
		}
		if err := e.AppendReceipts(urls, now); err != nil {
			return nil, err
		}
	}

	if err := s.uow.Expenses().CreateExpense(ctx, e); err != nil {
		return nil, err
	}
	log.Printf("[EXPENSE] created id=%s ledger=%s amount=%s by=%s", e.ID, e.Ledger, e.Amount, in.Actor)
	return e, nil
}

func (s *FundService) GetExpense(ctx context.Context, id uuid.UUID) (*domain.Expense, error) {
	return s.uow.Expenses().GetExpense(ctx, id)
}

func (s *FundService) ListExpenses(ctx context.Context, f domain.ListFilter) ([]*domain.Expense, error) {
	if err := f.Ledger.Validate(); err != nil {
		return nil, err
	}
	return s.uow.Expenses().ListExpenses(ctx, f)
}

func (s *FundService) AttachExpenseReceipts(ctx context.Context, id uuid.UUID, files []evidence.File) ([]string, error) {
	current, err := s.uow.Expenses().GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsFinal() {
		return nil, fmt.Errorf("%w: expense is %s", domain.ErrInvalidState, current.Status)
	}

	urls, err := s.evidence.Store(ctx, "expenses/"+id.String(), files)
	if err != nil {
		return nil, err
	}

	var receipts []string
	err = s.uow.InTx(ctx, func(r domain.Repositories) error {
		e, err := r.Expenses().LockExpense(ctx, id)
		if err != nil {
			return err
		}
		if err := e.AppendReceipts(urls, s.now()); err != nil {
			return err
		}
		if err := r.Expenses().SaveExpense(ctx, e); err != nil {
			return err
		}
		receipts = e.ReceiptImages
		return nil
	})
	if err != nil {
		log.Printf("[EXPENSE] receipts rejected after upload id=%s orphaned=%d err=%v", id, len(urls), err)
		return nil, err
	}
	return receipts, nil
}

// ApproveExpense debits the ledger and marks the expense Approved in one
// transaction. The balance check happens under the ledger row lock, so two
// concurrent approvals can never both pass against the same funds.
func (s *FundService) ApproveExpense(ctx context.Context, id, actor uuid.UUID, notes string, proof PaymentProof) (*ExpenseResult, error) {
	current, err := s.uow.Expenses().GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsFinal() {
		return nil, fmt.Errorf("%w: expense is %s", domain.ErrAlreadyFinal, current.Status)
	}
	// Non-managers never reach the blob store; the tx checks again under lock.
	if err := s.authorize(ctx, s.uow, current.Ledger, actor); err != nil {
		return nil, err
	}

	proofURL := strings.TrimSpace(proof.URL)
	if proof.File != nil {
		urls, err := s.evidence.Store(ctx, "expenses/"+id.String()+"/payment", []evidence.File{*proof.File})
		if err != nil {
			return nil, err
		}
		proofURL = urls[0]
	}

	var out *ExpenseResult
	err = s.uow.InTx(ctx, func(r domain.Repositories) error {
		e, err := r.Expenses().LockExpense(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, r, e.Ledger, actor); err != nil {
			return err
		}
		if err := e.Approve(actor, notes, proofURL, s.now()); err != nil {
			return err
		}
		balance, err := s.recon.ApplyDebit(ctx, r.Ledgers(), e.Ledger, e.Amount)
		if err != nil {
			return err
		}
		if err := r.Expenses().SaveExpense(ctx, e); err != nil {
			return err
		}
		if err := s.syncCampaignBalance(ctx, r, e.Ledger, balance); err != nil {
			return err
		}
		out = &ExpenseResult{Expense: e, Balance: &balance}
		return nil
	})
	if err != nil {
		log.Printf("[EXPENSE] approval refused id=%s by=%s err=%v", id, actor, err)
		return nil, err
	}
	log.Printf("[EXPENSE] approved id=%s ledger=%s amount=%s by=%s balance=%s", id, out.Expense.Ledger, out.Expense.Amount, actor, out.Balance)
	return out, nil
}

func (s *FundService) RejectExpense(ctx context.Context, id, actor uuid.UUID, reason string) (*ExpenseResult, error) {
	var out *domain.Expense
	err := s.uow.InTx(ctx, func(r domain.Repositories) error {
		e, err := r.Expenses().LockExpense(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, r, e.Ledger, actor); err != nil {
			return err
		}
		if err := e.Reject(actor, reason, s.now()); err != nil {
			return err
		}
		out = e
		return r.Expenses().SaveExpense(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[EXPENSE] rejected id=%s by=%s", id, actor)
	return &ExpenseResult{Expense: out}, nil
}

// UpdateExpense edits a pending expense. Its author or a ledger manager may edit.
func (s *FundService) UpdateExpense(ctx context.Context, id, actor uuid.UUID, edit domain.ExpenseEdit) (*domain.Expense, error) {
	var out *domain.Expense
	err := s.uow.InTx(ctx, func(r domain.Repositories) error {
		e, err := r.Expenses().LockExpense(ctx, id)
		if err != nil {
			return err
		}
		if err := s.checkActor(actor); err != nil {
			return err
		}
		if actor != e.AuthorizedBy {
			if err := s.authorize(ctx, r, e.Ledger, actor); err != nil {
				return err
			}
		}
		if err := e.Edit(edit, s.now()); err != nil {
			return err
		}
		out = e
		return r.Expenses().SaveExpense(ctx, e)
	})
	return out, err
}
