package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/fundledger/internal/domain"
)

// WebhookResult is the internal outcome of a gateway notification. Callers
// acknowledge every result the same way.
type WebhookResult string

const (
	WebhookProcessed WebhookResult = "processed"
	WebhookDuplicate WebhookResult = "duplicate"
	WebhookIgnored   WebhookResult = "ignored"
	WebhookInvalid   WebhookResult = "invalid_signature"
	WebhookFailed    WebhookResult = "failed"
)

const receiptFolder = "payos-receipts"

var webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fundledger_webhook_events_total",
	Help: "PayOS webhook deliveries by outcome",
}, []string{"result"})

// PaymentConfirmation is a verified paid event for one order.
type PaymentConfirmation struct {
	OrderCode int64
	// Amount is the paid amount in whole units; zero skips the amount check.
	Amount     int64
	Reference  string
	Status     string
	Raw        []byte
	ReceiptURL string
}

// HandlePayOSWebhook verifies and applies one webhook delivery. A non-nil error
// means the delivery should be retried by the sender; everything else, including
// a bad signature, is reported through the result only.
func (s *FundService) HandlePayOSWebhook(ctx context.Context, raw []byte, signature string) (WebhookResult, error) {
	res, err := s.handleWebhook(ctx, raw, signature)
	if err != nil {
		res = WebhookFailed
	}
	webhookEvents.WithLabelValues(string(res)).Inc()
	return res, err
}

func (s *FundService) handleWebhook(ctx context.Context, raw []byte, signature string) (WebhookResult, error) {
	if s.gateway == nil {
		log.Printf("[WEBHOOK] result=ignored reason=gateway_disabled")
		return WebhookIgnored, nil
	}
	evt, err := s.gateway.VerifyWebhook(raw, signature)
	if err != nil {
		log.Printf("[WEBHOOK] result=invalid_signature err=%v", err)
		return WebhookInvalid, nil
	}

	if !evt.Paid() {
		res, err := s.recordUnpaid(ctx, evt.OrderCode, evt.Status(), evt.Reference, raw)
		log.Printf("[WEBHOOK] order_code=%d status=%s result=%s", evt.OrderCode, evt.Status(), res)
		return res, err
	}

	// Cheap pre-checks keep unknown and replayed orders away from the blob store.
	t, err := s.uow.PayOS().GetPayOSTransaction(ctx, evt.OrderCode)
	if errors.Is(err, domain.ErrNotFound) {
		log.Printf("[WEBHOOK] order_code=%d result=ignored reason=unknown_order", evt.OrderCode)
		return WebhookIgnored, nil
	}
	if err != nil {
		return WebhookFailed, err
	}
	if t.IsCompleted() {
		log.Printf("[WEBHOOK] order_code=%d result=duplicate", evt.OrderCode)
		return WebhookDuplicate, nil
	}

	receipt, err := s.evidence.Archive(ctx, receiptFolder, fmt.Sprintf("%d.json", evt.OrderCode), raw)
	if err != nil {
		return WebhookFailed, fmt.Errorf("%w: archive receipt: %v", domain.ErrRetryable, err)
	}

	res, err := s.ConfirmByOrderCode(ctx, PaymentConfirmation{
		OrderCode:  evt.OrderCode,
		Amount:     evt.Amount,
		Reference:  evt.Reference,
		Status:     evt.Status(),
		Raw:        raw,
		ReceiptURL: receipt,
	})
	log.Printf("[WEBHOOK] order_code=%d amount=%d reference=%s result=%s", evt.OrderCode, evt.Amount, evt.Reference, res)
	return res, err
}

// ConfirmByOrderCode applies a paid event exactly once. Replays, and orders whose
// donation was already completed by a manager, are no-ops.
func (s *FundService) ConfirmByOrderCode(ctx context.Context, pc PaymentConfirmation) (WebhookResult, error) {
	result := WebhookIgnored
	err := s.uow.InTx(ctx, func(r domain.Repositories) error {
		t, err := r.PayOS().LockPayOSTransaction(ctx, pc.OrderCode)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if t.IsCompleted() {
			result = WebhookDuplicate
			return nil
		}

		now := s.now()
		t.PayOSStatus = pc.Status
		t.Reference = pc.Reference
		t.WebhookRawPayload = pc.Raw
		t.UpdatedAt = now

		d, err := r.Donations().LockDonationByOrderCode(ctx, pc.OrderCode)
		if errors.Is(err, domain.ErrNotFound) {
			return r.PayOS().SavePayOSTransaction(ctx, t)
		}
		if err != nil {
			return err
		}

		switch d.Status {
		case domain.DonationCompleted:
			t.CompletedAt = &now
			result = WebhookDuplicate
			return r.PayOS().SavePayOSTransaction(ctx, t)
		case domain.DonationRejected:
			log.Printf("[WEBHOOK] order_code=%d paid for rejected donation id=%s, needs manual review", pc.OrderCode, d.ID)
			return r.PayOS().SavePayOSTransaction(ctx, t)
		}

		if pc.Amount != 0 && (!d.Amount.IsWhole() || d.Amount.Units() != pc.Amount) {
			log.Printf("[WEBHOOK] order_code=%d amount mismatch paid=%d expected=%s donation=%s", pc.OrderCode, pc.Amount, d.Amount, d.ID)
			return r.PayOS().SavePayOSTransaction(ctx, t)
		}

		if pc.ReceiptURL != "" && len(d.ProofImages) < domain.MaxProofImages {
			if err := d.AppendProof([]string{pc.ReceiptURL}, now); err != nil {
				return err
			}
		}
		notes := fmt.Sprintf("Confirmed by PayOS order %d", pc.OrderCode)
		if pc.Reference != "" {
			notes += " ref " + pc.Reference
		}
		if _, err := s.confirmLocked(ctx, r, d, s.system, notes); err != nil {
			return err
		}
		t.CompletedAt = &now
		if err := r.PayOS().SavePayOSTransaction(ctx, t); err != nil {
			return err
		}
		result = WebhookProcessed
		return nil
	})
	if err != nil {
		return WebhookFailed, err
	}
	return result, nil
}

// recordUnpaid stores bookkeeping for non-paid notifications. No money moves.
func (s *FundService) recordUnpaid(ctx context.Context, orderCode int64, status, reference string, raw []byte) (WebhookResult, error) {
	err := s.uow.InTx(ctx, func(r domain.Repositories) error {
		t, err := r.PayOS().LockPayOSTransaction(ctx, orderCode)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil || t.IsCompleted() {
			return err
		}
		t.PayOSStatus = status
		if reference != "" {
			t.Reference = reference
		}
		t.WebhookRawPayload = raw
		t.UpdatedAt = s.now()
		return r.PayOS().SavePayOSTransaction(ctx, t)
	})
	if err != nil {
		return WebhookFailed, err
	}
	return WebhookIgnored, nil
}
