// Package payos talks to the PayOS bank-transfer gateway: payment-link creation,
// order codes and webhook verification.
package payos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/punchamoorthee/fundledger/internal/domain"
)

const (
	DefaultBaseURL = "https://api-merchant.payos.vn"

	// codeOrderExists is returned when an order code was already used.
	codeOrderExists = "231"
)

type Config struct {
	ClientID    string
	APIKey      string
	ChecksumKey string
	BaseURL     string
	ReturnURL   string
	CancelURL   string
	Timeout     time.Duration
}

// Enabled reports whether payment links can be created.
func (c Config) Enabled() bool {
	return c.ClientID != "" && c.APIKey != "" && c.ChecksumKey != ""
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: httpClient}
}

type PaymentRequest struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	BuyerName   string `json:"buyerName,omitempty"`
	CancelURL   string `json:"cancelUrl"`
	ReturnURL   string `json:"returnUrl"`
	Signature   string `json:"signature"`
}

type PaymentLink struct {
	Bin           string `json:"bin"`
	AccountNumber string `json:"accountNumber"`
	AccountName   string `json:"accountName"`
	Amount        int64  `json:"amount"`
	Description   string `json:"description"`
	OrderCode     int64  `json:"orderCode"`
	Currency      string `json:"currency"`
	PaymentLinkID string `json:"paymentLinkId"`
	Status        string `json:"status"`
	CheckoutURL   string `json:"checkoutUrl"`
	QRCode        string `json:"qrCode"`
}

type apiResponse struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

// CreatePaymentLink registers an order with PayOS. Timeouts, transport errors,
// 5xx responses and order-code collisions are reported as domain.ErrRetryable.
func (c *Client) CreatePaymentLink(ctx context.Context, orderCode, amount int64, description, buyerName string) (*PaymentLink, error) {
	req := PaymentRequest{
		OrderCode:   orderCode,
		Amount:      amount,
		Description: description,
		BuyerName:   buyerName,
		CancelURL:   c.cfg.CancelURL,
		ReturnURL:   c.cfg.ReturnURL,
	}
	req.Signature = paymentRequestSignature(c.cfg.ChecksumKey, req.Amount, req.CancelURL, req.Description, req.OrderCode, req.ReturnURL)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/v2/payment-requests", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-client-id", c.cfg.ClientID)
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if isTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: payos timeout: %v", domain.ErrRetryable, err)
		}
		return nil, fmt.Errorf("%w: payos request: %v", domain.ErrRetryable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read payos response: %v", domain.ErrRetryable, err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: payos status %d", domain.ErrRetryable, resp.StatusCode)
	}

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode payos response (status %d): %w", resp.StatusCode, err)
	}
	switch out.Code {
	case CodeSuccess:
	case codeOrderExists:
		return nil, fmt.Errorf("%w: order code %d already used", domain.ErrRetryable, orderCode)
	default:
		return nil, fmt.Errorf("payos rejected order %d: %s %s", orderCode, out.Code, out.Desc)
	}

	var link PaymentLink
	if err := json.Unmarshal(out.Data, &link); err != nil {
		return nil, fmt.Errorf("decode payment link: %w", err)
	}
	return &link, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
