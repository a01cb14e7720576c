package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/punchamoorthee/fundledger/internal/domain"
	"github.com/punchamoorthee/fundledger/internal/evidence"
	"github.com/punchamoorthee/fundledger/internal/money"
	"github.com/punchamoorthee/fundledger/internal/service"
)

// stubLedger implements the calls a test needs; anything else panics through
// the nil embedded interface.
type stubLedger struct {
	FundLedger

	confirm     func(id, actor uuid.UUID, notes string) (*service.DonationResult, error)
	approve     func(id, actor uuid.UUID, notes string, proof service.PaymentProof) (*service.ExpenseResult, error)
	attachProof func(id uuid.UUID, files []evidence.File) ([]string, error)
	create      func(in service.CreateDonationInput) (*service.CreateDonationResult, error)
	list        func(f domain.ListFilter) ([]*domain.Donation, error)
	webhook     func(raw []byte, sig string) (service.WebhookResult, error)
}

func (s *stubLedger) ConfirmDonation(_ context.Context, id, actor uuid.UUID, notes string) (*service.DonationResult, error) {
	return s.confirm(id, actor, notes)
}

func (s *stubLedger) ApproveExpense(_ context.Context, id, actor uuid.UUID, notes string, proof service.PaymentProof) (*service.ExpenseResult, error) {
	return s.approve(id, actor, notes, proof)
}

func (s *stubLedger) AttachDonationProof(_ context.Context, id uuid.UUID, files []evidence.File) ([]string, error) {
	return s.attachProof(id, files)
}

func (s *stubLedger) CreateDonation(_ context.Context, in service.CreateDonationInput) (*service.CreateDonationResult, error) {
	return s.create(in)
}

func (s *stubLedger) ListDonations(_ context.Context, f domain.ListFilter) ([]*domain.Donation, error) {
	return s.list(f)
}

func (s *stubLedger) HandlePayOSWebhook(_ context.Context, raw []byte, sig string) (service.WebhookResult, error) {
	return s.webhook(raw, sig)
}

func (s *stubLedger) SystemActor() uuid.UUID { return service.DefaultSystemActor }

func newRouter(svc FundLedger) *mux.Router {
	return newRouterWithKeys(svc, nil)
}

func newRouterWithKeys(svc FundLedger, keys domain.IdempotencyRepository) *mux.Router {
	r := mux.NewRouter()
	NewHandler(svc, keys).Routes(r)
	return r
}

func do(t *testing.T, r http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var body map[string]interface{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("response is not JSON: %q", rec.Body.String())
		}
	}
	return rec, body
}

func TestConfirmDonationHandler(t *testing.T) {
	id, actor := uuid.New(), uuid.New()
	balance := money.New(500_000)
	stub := &stubLedger{confirm: func(gotID, gotActor uuid.UUID, notes string) (*service.DonationResult, error) {
		if gotID != id || gotActor != actor || notes != "seen on statement" {
			t.Errorf("service got id=%s actor=%s notes=%q", gotID, gotActor, notes)
		}
		return &service.DonationResult{
			Donation: &domain.Donation{ID: id, Status: domain.DonationCompleted},
			Balance:  &balance,
		}, nil
	}}

	req := httptest.NewRequest("POST", "/api/v1/donations/"+id.String()+"/confirm", strings.NewReader(`{"notes":"seen on statement"}`))
	req.Header.Set(ActorHeader, actor.String())
	rec, body := do(t, newRouter(stub), req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %v", rec.Code, body)
	}
	if body["ledger_balance"] != 500000.0 {
		t.Errorf("ledger_balance: %v", body["ledger_balance"])
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("missing request id")
	}
}

func TestServiceErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		want string
	}{
		{"insufficient balance", fmt.Errorf("debit: %w", domain.ErrInsufficientBalance), http.StatusUnprocessableEntity, "insufficient_balance"},
		{"missing proof", domain.ErrMissingPaymentProof, http.StatusUnprocessableEntity, "missing_payment_proof"},
		{"already final", domain.ErrAlreadyFinal, http.StatusConflict, "already_final"},
		{"not manager", domain.ErrNotManager, http.StatusForbidden, "not_manager"},
		{"not found", domain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"retryable", domain.ErrRetryable, http.StatusServiceUnavailable, "retryable"},
		{"internal", errors.New("pq: connection reset"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubLedger{approve: func(uuid.UUID, uuid.UUID, string, service.PaymentProof) (*service.ExpenseResult, error) {
				return nil, tt.err
			}}
			req := httptest.NewRequest("POST", "/api/v1/expenses/"+uuid.NewString()+"/approve",
				strings.NewReader(`{"payment_proof_url":"https://blob.test/a.png"}`))
			req.Header.Set(ActorHeader, uuid.NewString())
			rec, body := do(t, newRouter(stub), req)

			if rec.Code != tt.code || body["code"] != tt.want {
				t.Errorf("got %d %v, want %d %s", rec.Code, body, tt.code, tt.want)
			}
			if tt.code == http.StatusInternalServerError && strings.Contains(rec.Body.String(), "connection reset") {
				t.Error("internal error leaked")
			}
		})
	}
}

func TestBadActorHeader(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/v1/donations/"+uuid.NewString()+"/confirm", nil)
	req.Header.Set(ActorHeader, "not-a-uuid")
	rec, _ := do(t, newRouter(&stubLedger{}), req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d", rec.Code)
	}
}

func TestSystemActorHeaderIsRefused(t *testing.T) {
	called := false
	stub := &stubLedger{
		confirm: func(uuid.UUID, uuid.UUID, string) (*service.DonationResult, error) {
			called = true
			return nil, nil
		},
		approve: func(uuid.UUID, uuid.UUID, string, service.PaymentProof) (*service.ExpenseResult, error) {
			called = true
			return nil, nil
		},
	}
	r := newRouter(stub)
	for _, path := range []string{
		"/api/v1/donations/" + uuid.NewString() + "/confirm",
		"/api/v1/expenses/" + uuid.NewString() + "/approve",
	} {
		req := httptest.NewRequest("POST", path, strings.NewReader(`{"payment_proof_url":"https://example.invalid/p.png"}`))
		req.Header.Set(ActorHeader, service.DefaultSystemActor.String())
		rec, body := do(t, r, req)
		if rec.Code != http.StatusForbidden || body["code"] != "reserved_actor" {
			t.Errorf("%s: status %d body %v", path, rec.Code, body)
		}
	}
	if called {
		t.Error("service reached with the system actor id")
	}
}

func TestCreateDonationValidation(t *testing.T) {
	called := false
	stub := &stubLedger{create: func(service.CreateDonationInput) (*service.CreateDonationResult, error) {
		called = true
		return nil, nil
	}}
	body := `{"ledger_kind":"fund","ledger_id":"` + uuid.NewString() + `","amount":1000,"method":"crypto"}`
	rec, resp := do(t, newRouter(stub), httptest.NewRequest("POST", "/api/v1/donations", strings.NewReader(body)))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d: %v", rec.Code, resp)
	}
	fields, _ := resp["fields"].(map[string]interface{})
	if fields["method"] != "oneof" {
		t.Errorf("fields: %v", resp["fields"])
	}
	if called {
		t.Error("service reached with invalid input")
	}
}

func TestCreateDonationHandler(t *testing.T) {
	ledgerID := uuid.New()
	code := int64(1772355600001)
	stub := &stubLedger{create: func(in service.CreateDonationInput) (*service.CreateDonationResult, error) {
		if in.Ledger != domain.CampaignLedger(ledgerID) || !in.Amount.Equal(money.MustParse("250000.5")) || in.Method != domain.MethodBankTransfer {
			t.Errorf("input: %+v", in)
		}
		if in.Actor != uuid.Nil {
			t.Errorf("anonymous donor got actor %s", in.Actor)
		}
		return &service.CreateDonationResult{
			Donation:  &domain.Donation{ID: uuid.New(), Status: domain.DonationPending},
			OrderCode: &code,
			QRCodeURL: "https://img.vietqr.io/image/970422-0001002003-compact2.png",
		}, nil
	}}
	body := `{"ledger_kind":"campaign","ledger_id":"` + ledgerID.String() + `","amount":"250000.50","method":"bank_transfer","donor_name":"Tran Thi C"}`
	rec, resp := do(t, newRouter(stub), httptest.NewRequest("POST", "/api/v1/donations", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %v", rec.Code, resp)
	}
	if resp["order_code"] != float64(code) || resp["qr_code_url"] == "" {
		t.Errorf("response: %v", resp)
	}
	if !strings.HasPrefix(rec.Header().Get("Location"), "/api/v1/donations/") {
		t.Errorf("location: %q", rec.Header().Get("Location"))
	}
}

func TestListDonationsQuery(t *testing.T) {
	ledgerID := uuid.New()
	stub := &stubLedger{list: func(f domain.ListFilter) ([]*domain.Donation, error) {
		if f.Ledger != domain.FundLedger(ledgerID) || f.Status != "pending" || f.Limit != domain.MaxPageSize || f.Offset != 10 {
			t.Errorf("filter: %+v", f)
		}
		return []*domain.Donation{}, nil
	}}
	r := newRouter(stub)

	rec, _ := do(t, r, httptest.NewRequest("GET", "/api/v1/donations?ledger_kind=fund&ledger_id="+ledgerID.String()+"&status=pending&limit=1000&offset=10", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status %d", rec.Code)
	}
	rec, _ = do(t, r, httptest.NewRequest("GET", "/api/v1/donations?ledger_kind=tree&ledger_id="+ledgerID.String(), nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad ledger kind: status %d", rec.Code)
	}
	rec, _ = do(t, r, httptest.NewRequest("GET", "/api/v1/donations?ledger_kind=fund&ledger_id="+ledgerID.String()+"&limit=ten", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: status %d", rec.Code)
	}
}

func multipartBody(t *testing.T, field string, names []string, values map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range values {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, name := range names {
		part, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		part.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf, mw.FormDataContentType()
}

func TestAttachDonationProofMultipart(t *testing.T) {
	id := uuid.New()
	stub := &stubLedger{attachProof: func(gotID uuid.UUID, files []evidence.File) ([]string, error) {
		if gotID != id || len(files) != 2 {
			t.Fatalf("got %s with %d files", gotID, len(files))
		}
		for _, f := range files {
			if f.Size != 4 || len(f.Data) != 4 {
				t.Errorf("file %q: size=%d data=%d", f.Name, f.Size, len(f.Data))
			}
		}
		return []string{"https://blob.test/a.jpg", "https://blob.test/b.png"}, nil
	}}
	body, ct := multipartBody(t, imagesField, []string{"a.jpg", "b.png"}, nil)
	req := httptest.NewRequest("POST", "/api/v1/donations/"+id.String()+"/proofs", body)
	req.Header.Set("Content-Type", ct)
	rec, resp := do(t, newRouter(stub), req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %v", rec.Code, resp)
	}
	if urls, _ := resp["proof_images"].([]interface{}); len(urls) != 2 {
		t.Errorf("proof_images: %v", resp["proof_images"])
	}
}

func TestApproveExpenseMultipart(t *testing.T) {
	stub := &stubLedger{approve: func(_, _ uuid.UUID, notes string, proof service.PaymentProof) (*service.ExpenseResult, error) {
		if notes != "paid the carpenter" || proof.File == nil || proof.File.Name != "transfer.png" {
			t.Errorf("notes=%q proof=%+v", notes, proof)
		}
		return &service.ExpenseResult{Expense: &domain.Expense{Status: domain.ExpenseApproved}}, nil
	}}
	body, ct := multipartBody(t, paymentProofField, []string{"transfer.png"}, map[string]string{"notes": "paid the carpenter"})
	req := httptest.NewRequest("POST", "/api/v1/expenses/"+uuid.NewString()+"/approve", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set(ActorHeader, uuid.NewString())
	rec, resp := do(t, newRouter(stub), req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %v", rec.Code, resp)
	}
}

func TestWebhookResponsesAreGeneric(t *testing.T) {
	for _, res := range []service.WebhookResult{service.WebhookProcessed, service.WebhookDuplicate, service.WebhookIgnored, service.WebhookInvalid} {
		stub := &stubLedger{webhook: func(raw []byte, sig string) (service.WebhookResult, error) {
			if string(raw) != `{"data":{}}` || sig != "abc" {
				t.Errorf("raw=%q sig=%q", raw, sig)
			}
			return res, nil
		}}
		req := httptest.NewRequest("POST", "/api/v1/payos/webhook", strings.NewReader(`{"data":{}}`))
		req.Header.Set(SignatureHeader, "abc")
		rec, _ := do(t, newRouter(stub), req)
		if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"success":true}` {
			t.Errorf("%s: %d %s", res, rec.Code, rec.Body.String())
		}
	}

	stub := &stubLedger{webhook: func([]byte, string) (service.WebhookResult, error) {
		return service.WebhookFailed, domain.ErrRetryable
	}}
	rec, _ := do(t, newRouter(stub), httptest.NewRequest("POST", "/api/v1/payos/webhook", strings.NewReader(`{}`)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("retryable failure: status %d", rec.Code)
	}
}

type memKeys struct {
	mu   sync.Mutex
	recs map[string]*domain.IdempotencyRecord
}

func (m *memKeys) ReserveKey(_ context.Context, key, hash string) (*domain.IdempotencyRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.recs[key]; ok {
		cp := *rec
		return &cp, false, nil
	}
	m.recs[key] = &domain.IdempotencyRecord{Key: key, RequestHash: hash, Status: domain.IdempotencyInProgress}
	return nil, true, nil
}

func (m *memKeys) CompleteKey(_ context.Context, key string, status int, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.recs[key]
	rec.Status = domain.IdempotencyCompleted
	rec.ResponseStatus = status
	rec.ResponseBody = append([]byte(nil), body...)
	return nil
}

func (m *memKeys) ReleaseKey(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, key)
	return nil
}

func TestIdempotentDonationCreate(t *testing.T) {
	calls := 0
	fail := true
	stub := &stubLedger{create: func(service.CreateDonationInput) (*service.CreateDonationResult, error) {
		calls++
		if fail {
			return nil, domain.ErrRetryable
		}
		return &service.CreateDonationResult{Donation: &domain.Donation{ID: uuid.New(), Status: domain.DonationPending}}, nil
	}}
	r := newRouterWithKeys(stub, &memKeys{recs: map[string]*domain.IdempotencyRecord{}})
	body := `{"ledger_kind":"fund","ledger_id":"` + uuid.NewString() + `","amount":1000,"method":"cash"}`
	post := func(payload string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/v1/donations", strings.NewReader(payload))
		req.Header.Set(IdempotencyKeyHeader, "donate-1")
		rec, _ := do(t, r, req)
		return rec
	}

	if rec := post(body); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("first attempt: %d", rec.Code)
	}
	// A failed attempt releases the key.
	fail = false
	first := post(body)
	if first.Code != http.StatusCreated {
		t.Fatalf("retry: %d %s", first.Code, first.Body.String())
	}

	replay := post(body)
	if replay.Code != http.StatusCreated || replay.Header().Get(ReplayedHeader) != "true" {
		t.Errorf("replay: %d replayed=%q", replay.Code, replay.Header().Get(ReplayedHeader))
	}
	if replay.Body.String() != first.Body.String() {
		t.Errorf("replayed body differs:\n%s\n%s", replay.Body.String(), first.Body.String())
	}
	if calls != 2 {
		t.Errorf("service called %d times, want 2", calls)
	}

	other := post(strings.Replace(body, "1000", "2000", 1))
	if other.Code != http.StatusUnprocessableEntity {
		t.Errorf("same key, different body: %d", other.Code)
	}
}
