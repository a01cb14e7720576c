package payos

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/punchamoorthee/fundledger/internal/domain"
	"github.com/punchamoorthee/fundledger/internal/money"
)

// maxDescription is the PayOS limit for transfer descriptions.
const maxDescription = 25

type OrderRequest struct {
	Amount      money.Money
	Description string
	BuyerName   string
	// Bank is the receiving account used when no PayOS client is configured.
	Bank *domain.BankInfo
}

type Order struct {
	OrderCode     int64  `json:"order_code"`
	QRCodeURL     string `json:"qr_code_url"`
	QRPayload     string `json:"qr_payload,omitempty"`
	CheckoutURL   string `json:"checkout_url,omitempty"`
	PaymentLinkID string `json:"payment_link_id,omitempty"`
}

// OrderCodeSource hands out strictly increasing millisecond-based order codes
// within one process. Collisions across instances surface as unique violations.
type OrderCodeSource struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewOrderCodeSource(now func() time.Time) *OrderCodeSource {
	if now == nil {
		now = time.Now
	}
	return &OrderCodeSource{now: now}
}

func (s *OrderCodeSource) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := s.now().UnixMilli()
	if code <= s.last {
		code = s.last + 1
	}
	s.last = code
	return code
}

// Adapter is the ledger's only contact point with PayOS.
type Adapter struct {
	client      *Client
	checksumKey string
	codes       *OrderCodeSource
}

// NewAdapter builds an adapter; client may be nil, in which case orders are
// plain VietQR transfers to the ledger's own bank account.
func NewAdapter(client *Client, checksumKey string, codes *OrderCodeSource) *Adapter {
	if codes == nil {
		codes = NewOrderCodeSource(nil)
	}
	return &Adapter{client: client, checksumKey: checksumKey, codes: codes}
}

func (a *Adapter) GenerateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if !req.Amount.IsPositive() || !req.Amount.IsWhole() {
		return nil, fmt.Errorf("%w: gateway orders take whole positive amounts", domain.ErrInvalidAmount)
	}
	code := a.codes.Next()
	desc := truncate(req.Description, maxDescription)

	if a.client == nil {
		if req.Bank.IsZero() {
			return nil, fmt.Errorf("%w: ledger has no receiving bank account", domain.ErrInvalidState)
		}
		return &Order{
			OrderCode: code,
			QRCodeURL: VietQRImageURL(req.Bank.BankCode, req.Bank.AccountNumber, req.Bank.HolderName, req.Amount.Units(), desc),
		}, nil
	}

	link, err := a.client.CreatePaymentLink(ctx, code, req.Amount.Units(), desc, req.BuyerName)
	if err != nil {
		return nil, err
	}
	return &Order{
		OrderCode:     code,
		QRCodeURL:     VietQRImageURL(link.Bin, link.AccountNumber, link.AccountName, link.Amount, link.Description),
		QRPayload:     link.QRCode,
		CheckoutURL:   link.CheckoutURL,
		PaymentLinkID: link.PaymentLinkID,
	}, nil
}

func (a *Adapter) VerifyWebhook(raw []byte, signature string) (*PaymentEvent, error) {
	return VerifyWebhook(a.checksumKey, raw, signature)
}

// VietQRImageURL renders a transfer QR through the public img.vietqr.io service.
func VietQRImageURL(bankID, accountNumber, accountName string, amount int64, info string) string {
	q := url.Values{}
	if amount > 0 {
		q.Set("amount", fmt.Sprintf("%d", amount))
	}
	if info != "" {
		q.Set("addInfo", info)
	}
	if accountName != "" {
		q.Set("accountName", accountName)
	}
	u := fmt.Sprintf("https://img.vietqr.io/image/%s-%s-compact2.png", url.PathEscape(bankID), url.PathEscape(accountNumber))
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
