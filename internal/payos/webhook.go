package payos

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/punchamoorthee/fundledger/internal/domain"
)

// CodeSuccess is the PayOS result code for a successful payment.
const CodeSuccess = "00"

type webhookBody struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

type webhookData struct {
	OrderCode           int64  `json:"orderCode"`
	Amount              int64  `json:"amount"`
	Description         string `json:"description"`
	AccountNumber       string `json:"accountNumber"`
	Reference           string `json:"reference"`
	TransactionDateTime string `json:"transactionDateTime"`
	Currency            string `json:"currency"`
	PaymentLinkID       string `json:"paymentLinkId"`
	Code                string `json:"code"`
	Desc                string `json:"desc"`
}

// PaymentEvent is a verified webhook notification.
type PaymentEvent struct {
	OrderCode           int64
	Amount              int64
	Description         string
	Reference           string
	TransactionDateTime string
	PaymentLinkID       string
	Code                string
	Desc                string
	Success             bool
	Raw                 []byte
}

// Paid reports a positive payment confirmation. Nothing else may move money.
func (e *PaymentEvent) Paid() bool {
	return e.Success && e.Code == CodeSuccess
}

// Status is the bookkeeping value stored on the transaction record.
func (e *PaymentEvent) Status() string {
	if e.Paid() {
		return domain.PayOSStatusPaid
	}
	return "CODE_" + e.Code
}

// VerifyWebhook checks the HMAC over the data object and parses the event.
// An explicit signature (from a header) wins over the one embedded in the body.
func VerifyWebhook(checksumKey string, raw []byte, signature string) (*PaymentEvent, error) {
	if checksumKey == "" {
		return nil, fmt.Errorf("%w: checksum key not configured", domain.ErrInvalidSignature)
	}
	var body webhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: malformed body", domain.ErrInvalidSignature)
	}
	if len(body.Data) == 0 || string(body.Data) == "null" {
		return nil, fmt.Errorf("%w: missing data", domain.ErrInvalidSignature)
	}
	sig := strings.TrimSpace(signature)
	if sig == "" {
		sig = body.Signature
	}
	if sig == "" {
		return nil, fmt.Errorf("%w: unsigned", domain.ErrInvalidSignature)
	}
	canonical, err := canonicalData(body.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	if !signaturesEqual(hmacHex(checksumKey, canonical), sig) {
		return nil, domain.ErrInvalidSignature
	}

	var data webhookData
	if err := json.Unmarshal(body.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	code := data.Code
	if code == "" {
		code = body.Code
	}
	return &PaymentEvent{
		OrderCode:           data.OrderCode,
		Amount:              data.Amount,
		Description:         data.Description,
		Reference:           data.Reference,
		TransactionDateTime: data.TransactionDateTime,
		PaymentLinkID:       data.PaymentLinkID,
		Code:                code,
		Desc:                data.Desc,
		Success:             body.Success || body.Code == CodeSuccess,
		Raw:                 raw,
	}, nil
}
