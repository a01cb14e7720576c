// Package service runs the fund ledger workflows: donation and expense approval,
// campaign lifecycle and PayOS reconciliation. Every balance change goes through
// the ledger reconciler inside the same transaction as the state transition.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/fundledger/internal/domain"
	"github.com/punchamoorthee/fundledger/internal/evidence"
	"github.com/punchamoorthee/fundledger/internal/ledger"
	"github.com/punchamoorthee/fundledger/internal/payos"
)

// DefaultSystemActor confirms donations on behalf of the payment gateway when no
// actor is configured.
var DefaultSystemActor = uuid.NewSHA1(uuid.NameSpaceURL, []byte("fundledger:payos-webhook"))

// PaymentGateway is the part of the PayOS adapter the service needs.
type PaymentGateway interface {
	GenerateOrder(ctx context.Context, req payos.OrderRequest) (*payos.Order, error)
	VerifyWebhook(raw []byte, signature string) (*payos.PaymentEvent, error)
}

type Options struct {
	// SystemActor is recorded as the confirmer of gateway-confirmed donations.
	SystemActor uuid.UUID
	Now         func() time.Time
}

type FundService struct {
	uow      domain.UnitOfWork
	recon    *ledger.Reconciler
	evidence *evidence.Gate
	gateway  PaymentGateway
	system   uuid.UUID
	now      func() time.Time
}

// New wires the service. gateway may be nil, in which case bank transfers get
// no QR code and webhooks are ignored.
func New(uow domain.UnitOfWork, gate *evidence.Gate, gateway PaymentGateway, opts Options) *FundService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SystemActor == uuid.Nil {
		opts.SystemActor = DefaultSystemActor
	}
	return &FundService{
		uow:      uow,
		recon:    ledger.NewReconciler(opts.Now),
		evidence: gate,
		gateway:  gateway,
		system:   opts.SystemActor,
		now:      opts.Now,
	}
}

// SystemActor is the id recorded on gateway-driven confirmations.
func (s *FundService) SystemActor() uuid.UUID { return s.system }

// ledgerOwner is the fund or campaign behind a ledger reference.
type ledgerOwner struct {
	fund     *domain.Fund
	campaign *domain.Campaign
	// parent is the fund of the campaign's family tree, if one exists.
	parent *domain.Fund
}

func (o *ledgerOwner) bank() *domain.BankInfo {
	if o.campaign != nil {
		if !o.campaign.BankInfo.IsZero() {
			return o.campaign.BankInfo
		}
		if o.parent != nil {
			return o.parent.BankInfo
		}
		return nil
	}
	return o.fund.BankInfo
}

func (o *ledgerOwner) isManager(actor uuid.UUID) bool {
	if o.fund != nil && o.fund.IsManager(actor) {
		return true
	}
	if o.campaign != nil && o.campaign.ManagerID == actor {
		return true
	}
	return o.parent != nil && o.parent.IsManager(actor)
}

func (s *FundService) loadOwner(ctx context.Context, r domain.Repositories, ref domain.LedgerRef) (*ledgerOwner, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if ref.Kind == domain.LedgerFund {
		f, err := r.Funds().GetFund(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		return &ledgerOwner{fund: f}, nil
	}
	c, err := r.Campaigns().GetCampaign(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	o := &ledgerOwner{campaign: c}
	parent, err := r.Funds().GetFundByFamilyTree(ctx, c.FundOwnerID)
	switch {
	case err == nil:
		o.parent = parent
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}
	return o, nil
}

// checkActor refuses a missing actor and the gateway's system id. Gateway
// confirmations bypass it through ConfirmByOrderCode.
func (s *FundService) checkActor(actor uuid.UUID) error {
	switch actor {
	case uuid.Nil:
		return domain.ErrMissingActor
	case s.system:
		return domain.ErrReservedActor
	}
	return nil
}

// authorize checks that actor manages the ledger.
func (s *FundService) authorize(ctx context.Context, r domain.Repositories, ref domain.LedgerRef, actor uuid.UUID) error {
	if err := s.checkActor(actor); err != nil {
		return err
	}
	owner, err := s.loadOwner(ctx, r, ref)
	if err != nil {
		return err
	}
	if !owner.isManager(actor) {
		return fmt.Errorf("%w: %s on %s", domain.ErrNotManager, actor, ref)
	}
	return nil
}

// LedgerBalance is an unlocked read suitable for display.
func (s *FundService) LedgerBalance(ctx context.Context, ref domain.LedgerRef) (LedgerBalance, error) {
	if err := ref.Validate(); err != nil {
		return LedgerBalance{}, err
	}
	bal, err := s.uow.Ledgers().LedgerBalance(ctx, ref)
	if err != nil {
		return LedgerBalance{}, err
	}
	return LedgerBalance{Ledger: ref, Balance: bal}, nil
}
