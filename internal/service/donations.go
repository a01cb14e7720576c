package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/punchamoorthee/fundledger/internal/domain"
	"github.com/punchamoorthee/fundledger/internal/evidence"
	"github.com/punchamoorthee/fundledger/internal/payos"
)

// CreateDonation records a pending donation. Bank transfers get a gateway
// order first; the donation and its PayOS transaction row are then written in
// one transaction so the webhook can always find them.
func (s *FundService) CreateDonation(ctx context.Context, in CreateDonationInput) (*CreateDonationResult, error) {
	if in.Actor == s.system {
		return nil, domain.ErrReservedActor
	}
	now := s.now()
	d, err := domain.NewDonation(domain.NewDonationParams{
		Ledger:        in.Ledger,
		DonorMemberID: in.DonorMemberID,
		DonorName:     in.DonorName,
		Message:       in.Message,
		Amount:        in.Amount,
		Method:        in.Method,
		CreatedBy:     in.Actor,
	}, now)
	if err != nil {
		return nil, err
	}

	owner, err := s.loadOwner(ctx, s.uow, in.Ledger)
	if err != nil {
		return nil, err
	}
	if owner.campaign != nil {
		if err := owner.campaign.AcceptsDonations(now); err != nil {
			return nil, err
		}
	}

	res := &CreateDonationResult{Donation: d}
	if d.Method == domain.MethodBankTransfer && s.gateway != nil {
		order, err := s.gateway.GenerateOrder(ctx, payos.OrderRequest{
			Amount:      d.Amount,
			Description: orderDescription(d.ID),
			BuyerName:   d.DonorName,
			Bank:        owner.bank(),
		})
		if err != nil {
			return nil, fmt.Errorf("generate order: %w", err)
		}
		code := order.OrderCode
		d.PayOrderCode = &code
		res.OrderCode = &code
		res.QRCodeURL = order.QRCodeURL
		res.CheckoutURL = order.CheckoutURL
	}

	err = s.uow.InTx(ctx, func(r domain.Repositories) error {
		if err := r.Donations().CreateDonation(ctx, d); err != nil {
			return err
		}
		if d.PayOrderCode == nil {
			return nil
		}
		inserted, err := r.PayOS().EnsurePayOSTransaction(ctx, domain.NewPayOSTransaction(*d.PayOrderCode, &d.ID, domain.PayOSStatusPending, now))
		if err != nil {
			return err
		}
		if !inserted {
			return fmt.Errorf("%w: order code %d already recorded", domain.ErrRetryable, *d.PayOrderCode)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[DONATION] created id=%s ledger=%s amount=%s method=%s order_code=%v", d.ID, d.Ledger, d.Amount, d.Method, orderCodeLog(d.PayOrderCode))
	return res, nil
}

// orderDescription fits the gateway's 25 character transfer note.
func orderDescription(id uuid.UUID) string {
	return "FL " + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:12])
}

func orderCodeLog(code *int64) interface{} {
	if code == nil {
		return "-"
	}
	return *code
}

func (s *FundService) GetDonation(ctx context.Context, id uuid.UUID) (*domain.Donation, error) {
	return s.uow.Donations().GetDonation(ctx, id)
}

func (s *FundService) ListDonations(ctx context.Context, f domain.ListFilter) ([]*domain.Donation, error) {
	if err := f.Ledger.Validate(); err != nil {
		return nil, err
	}
	return s.uow.Donations().ListDonations(ctx, f)
}

// AttachDonationProof uploads images and appends their URLs. It returns the
// full proof list.
func (s *FundService) AttachDonationProof(ctx context.Context, id uuid.UUID, files []evidence.File) ([]string, error) {
	current, err := s.uow.Donations().GetDonation(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsFinal() {
		return nil, fmt.Errorf("%w: donation is %s", domain.ErrInvalidState, current.Status)
	}
	if len(current.ProofImages)+len(files) > domain.MaxProofImages {
		return nil, fmt.Errorf("%w: a donation holds at most %d proof images", domain.ErrTooManyImages, domain.MaxProofImages)
	}

	urls, err := s.evidence.Store(ctx, "donations/"+id.String(), files)
	if err != nil {
		return nil, err
	}

	var proofs []string
	err = s.uow.InTx(ctx, func(r domain.Repositories) error {
		d, err := r.Donations().LockDonation(ctx, id)
		if err != nil {
			return err
		}
		if err := d.AppendProof(urls, s.now()); err != nil {
			return err
		}
		if err := r.Donations().SaveDonation(ctx, d); err != nil {
			return err
		}
		proofs = d.ProofImages
		return nil
	})
	if err != nil {
		log.Printf("[DONATION] proof rejected after upload id=%s orphaned=%d err=%v", id, len(urls), err)
		return nil, err
	}
	return proofs, nil
}

// ConfirmDonation completes a pending donation and credits its ledger.
func (s *FundService) ConfirmDonation(ctx context.Context, id, actor uuid.UUID, notes string) (*DonationResult, error) {
	var out *DonationResult
	err := s.uow.InTx(ctx, func(r domain.Repositories) error {
		d, err := r.Donations().LockDonation(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, r, d.Ledger, actor); err != nil {
			return err
		}
		out, err = s.confirmLocked(ctx, r, d, actor, notes)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[DONATION] confirmed id=%s ledger=%s amount=%s by=%s balance=%s", id, out.Donation.Ledger, out.Donation.Amount, actor, out.Balance)
	return out, nil
}

// confirmLocked runs the transition and the credit. d must be locked by the caller's transaction.
func (s *FundService) confirmLocked(ctx context.Context, r domain.Repositories, d *domain.Donation, actor uuid.UUID, notes string) (*DonationResult, error) {
	if err := d.Confirm(actor, notes, s.now()); err != nil {
		return nil, err
	}
	balance, err := s.recon.ApplyCredit(ctx, r.Ledgers(), d.Ledger, d.Amount)
	if err != nil {
		return nil, err
	}
	if err := r.Donations().SaveDonation(ctx, d); err != nil {
		return nil, err
	}
	if err := s.syncCampaignBalance(ctx, r, d.Ledger, balance); err != nil {
		return nil, err
	}
	return &DonationResult{Donation: d, Balance: &balance}, nil
}

func (s *FundService) RejectDonation(ctx context.Context, id, actor uuid.UUID, reason string) (*DonationResult, error) {
	var out *domain.Donation
	err := s.uow.InTx(ctx, func(r domain.Repositories) error {
		d, err := r.Donations().LockDonation(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, r, d.Ledger, actor); err != nil {
			return err
		}
		if err := d.Reject(actor, reason, s.now()); err != nil {
			return err
		}
		out = d
		return r.Donations().SaveDonation(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[DONATION] rejected id=%s by=%s", id, actor)
	return &DonationResult{Donation: out}, nil
}

// UpdateDonation edits a pending donation. Its creator or a ledger manager may edit.
func (s *FundService) UpdateDonation(ctx context.Context, id, actor uuid.UUID, edit domain.DonationEdit) (*domain.Donation, error) {
	var out *domain.Donation
	err := s.uow.InTx(ctx, func(r domain.Repositories) error {
		d, err := r.Donations().LockDonation(ctx, id)
		if err != nil {
			return err
		}
		if err := s.checkActor(actor); err != nil {
			return err
		}
		if actor != d.CreatedBy {
			if err := s.authorize(ctx, r, d.Ledger, actor); err != nil {
				return err
			}
		}
		if err := d.Edit(edit, s.now()); err != nil {
			return err
		}
		out = d
		return r.Donations().SaveDonation(ctx, d)
	})
	return out, err
}
