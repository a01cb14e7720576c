package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Gateway status values recorded on PayOSTransaction.PayOSStatus.
const (
	PayOSStatusPending = "PENDING"
	PayOSStatusPaid    = "PAID"
)

// PayOSTransaction is the idempotency record of one gateway order.
// CompletedAt is set exactly once, when the paid event has been applied.
type PayOSTransaction struct {
	ID                uuid.UUID       `json:"id"`
	OrderCode         int64           `json:"order_code"`
	DonationID        *uuid.UUID      `json:"donation_id,omitempty"`
	PayOSStatus       string          `json:"payos_status"`
	Reference         string          `json:"reference,omitempty"`
	WebhookRawPayload json.RawMessage `json:"webhook_raw_payload,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func NewPayOSTransaction(orderCode int64, donationID *uuid.UUID, status string, now time.Time) *PayOSTransaction {
	return &PayOSTransaction{
		ID:          uuid.New(),
		OrderCode:   orderCode,
		DonationID:  donationID,
		PayOSStatus: status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (t *PayOSTransaction) IsCompleted() bool { return t.CompletedAt != nil }
