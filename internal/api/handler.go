package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/fundledger/internal/domain"
	"github.com/punchamoorthee/fundledger/internal/evidence"
	"github.com/punchamoorthee/fundledger/internal/service"
)

// Metrics
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundledger_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fundledger_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

const (
	ActorHeader     = "X-Actor-ID"
	RequestIDHeader = "X-Request-ID"
	// SignatureHeader optionally carries the webhook signature outside the body.
	SignatureHeader = "X-PayOS-Signature"

	maxJSONBody    = 1 << 20
	maxWebhookBody = 1 << 20
)

// FundLedger is the service surface the handlers drive.
type FundLedger interface {
	CreateFund(ctx context.Context, in service.CreateFundInput) (*domain.Fund, error)
	GetFund(ctx context.Context, id uuid.UUID) (*domain.Fund, error)
	GetFundByFamilyTree(ctx context.Context, familyTreeID uuid.UUID) (*domain.Fund, error)
	UpdateFundBankInfo(ctx context.Context, id uuid.UUID, bank *domain.BankInfo, actor uuid.UUID) (*domain.Fund, error)
	AddFundManager(ctx context.Context, id, member, actor uuid.UUID) (*domain.Fund, error)
	DeleteFund(ctx context.Context, id, actor uuid.UUID) error
	LedgerBalance(ctx context.Context, ref domain.LedgerRef) (service.LedgerBalance, error)

	CreateCampaign(ctx context.Context, in service.CreateCampaignInput) (*domain.Campaign, error)
	GetCampaign(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)
	CancelCampaign(ctx context.Context, id, actor uuid.UUID) (*domain.Campaign, error)

	CreateDonation(ctx context.Context, in service.CreateDonationInput) (*service.CreateDonationResult, error)
	GetDonation(ctx context.Context, id uuid.UUID) (*domain.Donation, error)
	ListDonations(ctx context.Context, f domain.ListFilter) ([]*domain.Donation, error)
	AttachDonationProof(ctx context.Context, id uuid.UUID, files []evidence.File) ([]string, error)
	ConfirmDonation(ctx context.Context, id, actor uuid.UUID, notes string) (*service.DonationResult, error)
	RejectDonation(ctx context.Context, id, actor uuid.UUID, reason string) (*service.DonationResult, error)
	UpdateDonation(ctx context.Context, id, actor uuid.UUID, edit domain.DonationEdit) (*domain.Donation, error)

	CreateExpense(ctx context.Context, in service.CreateExpenseInput) (*domain.Expense, error)
	GetExpense(ctx context.Context, id uuid.UUID) (*domain.Expense, error)
	ListExpenses(ctx context.Context, f domain.ListFilter) ([]*domain.Expense, error)
	AttachExpenseReceipts(ctx context.Context, id uuid.UUID, files []evidence.File) ([]string, error)
	ApproveExpense(ctx context.Context, id, actor uuid.UUID, notes string, proof service.PaymentProof) (*service.ExpenseResult, error)
	RejectExpense(ctx context.Context, id, actor uuid.UUID, reason string) (*service.ExpenseResult, error)
	UpdateExpense(ctx context.Context, id, actor uuid.UUID, edit domain.ExpenseEdit) (*domain.Expense, error)

	HandlePayOSWebhook(ctx context.Context, raw []byte, signature string) (service.WebhookResult, error)
	SystemActor() uuid.UUID
}

type Handler struct {
	svc      FundLedger
	keys     domain.IdempotencyRepository
	validate *validator.Validate
	system   uuid.UUID
}

// NewHandler builds the handlers. keys may be nil, which disables
// Idempotency-Key support.
func NewHandler(svc FundLedger, keys domain.IdempotencyRepository) *Handler {
	v := validator.New()
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{svc: svc, keys: keys, validate: v, system: svc.SystemActor()}
}

// Routes registers the v1 API on r.
func (h *Handler) Routes(r *mux.Router) {
	r.Use(requestLogger, instrument)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/funds", h.CreateFundHandler).Methods("POST")
	v1.HandleFunc("/funds/{id}", h.GetFundHandler).Methods("GET")
	v1.HandleFunc("/funds/{id}", h.DeleteFundHandler).Methods("DELETE")
	v1.HandleFunc("/funds/{id}/bank-info", h.UpdateFundBankInfoHandler).Methods("PUT")
	v1.HandleFunc("/funds/{id}/managers", h.AddFundManagerHandler).Methods("POST")
	v1.HandleFunc("/family-trees/{treeId}/fund", h.GetFamilyTreeFundHandler).Methods("GET")
	v1.HandleFunc("/ledgers/{kind}/{id}/balance", h.GetLedgerBalanceHandler).Methods("GET")

	v1.HandleFunc("/campaigns", h.CreateCampaignHandler).Methods("POST")
	v1.HandleFunc("/campaigns/{id}", h.GetCampaignHandler).Methods("GET")
	v1.HandleFunc("/campaigns/{id}/cancel", h.CancelCampaignHandler).Methods("POST")

	v1.HandleFunc("/donations", h.idempotent(h.CreateDonationHandler)).Methods("POST")
	v1.HandleFunc("/donations", h.ListDonationsHandler).Methods("GET")
	v1.HandleFunc("/donations/{id}", h.GetDonationHandler).Methods("GET")
	v1.HandleFunc("/donations/{id}", h.UpdateDonationHandler).Methods("PATCH")
	v1.HandleFunc("/donations/{id}/proofs", h.AttachDonationProofHandler).Methods("POST")
	v1.HandleFunc("/donations/{id}/confirm", h.ConfirmDonationHandler).Methods("POST")
	v1.HandleFunc("/donations/{id}/reject", h.RejectDonationHandler).Methods("POST")

	v1.HandleFunc("/expenses", h.idempotent(h.CreateExpenseHandler)).Methods("POST")
	v1.HandleFunc("/expenses", h.ListExpensesHandler).Methods("GET")
	v1.HandleFunc("/expenses/{id}", h.GetExpenseHandler).Methods("GET")
	v1.HandleFunc("/expenses/{id}", h.UpdateExpenseHandler).Methods("PATCH")
	v1.HandleFunc("/expenses/{id}/receipts", h.AttachExpenseReceiptsHandler).Methods("POST")
	v1.HandleFunc("/expenses/{id}/approve", h.ApproveExpenseHandler).Methods("POST")
	v1.HandleFunc("/expenses/{id}/reject", h.RejectExpenseHandler).Methods("POST")

	v1.HandleFunc("/payos/webhook", h.PayOSWebhookHandler).Methods("POST")
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusRecorder captures the status code for metrics and access logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(r.Method, endpoint))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		timer.ObserveDuration()
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("[HTTP] request_id=%s method=%s path=%s status=%d duration=%s", id, r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// actorFrom reads the acting member. A missing header yields uuid.Nil and the
// service decides whether an actor is required. The gateway's system id is
// never accepted from a caller.
func (h *Handler) actorFrom(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get(ActorHeader)
	if raw == "" {
		return uuid.Nil, true
	}
	actor, err := uuid.Parse(raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid X-Actor-ID header")
		return uuid.Nil, false
	}
	if actor == h.system {
		log.Printf("[HTTP] request_id=%s refused reserved actor id", w.Header().Get(RequestIDHeader))
		respondWithServiceError(w, domain.ErrReservedActor)
		return uuid.Nil, false
	}
	return actor, true
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)[name])
}

// decodeJSON reads and validates a request body. An empty body leaves dst untouched.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return false
	}
	return h.validateStruct(w, dst)
}

func (h *Handler) validateStruct(w http.ResponseWriter, v interface{}) bool {
	err := h.validate.Struct(v)
	if err == nil {
		return true
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		respondWithError(w, http.StatusBadRequest, "Invalid input")
		return false
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	respondWithJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
		"error":  "Validation failed",
		"code":   "invalid_input",
		"fields": fields,
	})
	return false
}

func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindInvariant:
		return http.StatusUnprocessableEntity
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindExternal:
		return http.StatusServiceUnavailable
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondWithServiceError reports a precise reason for business errors and hides
// internal ones.
func respondWithServiceError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Printf("[HTTP] internal error: %v", err)
		respondWithJSON(w, code, map[string]string{"error": "Internal Server Error", "code": "internal"})
		return
	}
	respondWithJSON(w, code, map[string]string{"error": err.Error(), "code": domain.CodeOf(err)})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
