package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/fundledger/internal/domain"
	"github.com/punchamoorthee/fundledger/internal/evidence"
	"github.com/punchamoorthee/fundledger/internal/money"
)

type createFundRequest struct {
	FamilyTreeID *uuid.UUID       `json:"family_tree_id"`
	Name         string           `json:"name" validate:"max=200"`
	ManagerIDs   []uuid.UUID      `json:"manager_ids" validate:"max=50"`
	BankInfo     *domain.BankInfo `json:"bank_info"`
}

type bankInfoRequest struct {
	BankInfo *domain.BankInfo `json:"bank_info"`
}

type addManagerRequest struct {
	MemberID uuid.UUID `json:"member_id" validate:"required"`
}

type createCampaignRequest struct {
	FundOwnerID uuid.UUID        `json:"fund_owner_id" validate:"required"`
	ManagerID   uuid.UUID        `json:"manager_id"`
	Name        string           `json:"name" validate:"required,max=200"`
	Description string           `json:"description" validate:"max=2000"`
	Goal        money.Money      `json:"goal"`
	StartDate   time.Time        `json:"start_date"`
	EndDate     time.Time        `json:"end_date"`
	BankInfo    *domain.BankInfo `json:"bank_info"`
}

type createDonationRequest struct {
	LedgerKind    string      `json:"ledger_kind" validate:"required,oneof=fund campaign"`
	LedgerID      string      `json:"ledger_id" validate:"required,uuid"`
	Amount        money.Money `json:"amount"`
	Method        string      `json:"method" validate:"required,oneof=cash bank_transfer"`
	DonorMemberID *uuid.UUID  `json:"donor_member_id"`
	DonorName     string      `json:"donor_name" validate:"max=200"`
	Message       string      `json:"message" validate:"max=1000"`
}

type updateDonationRequest struct {
	Amount    *money.Money `json:"amount"`
	DonorName *string      `json:"donor_name" validate:"omitempty,max=200"`
	Message   *string      `json:"message" validate:"omitempty,max=1000"`
}

type createExpenseRequest struct {
	LedgerKind  string      `json:"ledger_kind" validate:"required,oneof=fund campaign"`
	LedgerID    string      `json:"ledger_id" validate:"required,uuid"`
	Amount      money.Money `json:"amount"`
	Category    string      `json:"category" validate:"max=100"`
	Description string      `json:"description" validate:"max=2000"`
}

type updateExpenseRequest struct {
	Amount      *money.Money `json:"amount"`
	Category    *string      `json:"category" validate:"omitempty,max=100"`
	Description *string      `json:"description" validate:"omitempty,max=2000"`
}

type notesRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

type approveRequest struct {
	Notes           string `json:"notes" validate:"max=2000"`
	PaymentProofURL string `json:"payment_proof_url" validate:"omitempty,url"`
}

// listFilter builds a ledger filter from ?ledger_kind=&ledger_id=&status=&limit=&offset=.
func listFilter(r *http.Request) (domain.ListFilter, error) {
	q := r.URL.Query()
	ref, err := domain.ParseLedgerRef(q.Get("ledger_kind"), q.Get("ledger_id"))
	if err != nil {
		return domain.ListFilter{}, err
	}
	opts := []domain.ListOption{domain.WithStatus(q.Get("status"))}
	limit, offset := 0, 0
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return domain.ListFilter{}, fmt.Errorf("invalid limit %q", v)
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			return domain.ListFilter{}, fmt.Errorf("invalid offset %q", v)
		}
	}
	opts = append(opts, domain.WithPage(limit, offset))
	return domain.NewListFilter(ref, opts...), nil
}

const (
	imagesField       = "images"
	paymentProofField = "payment_proof"

	// maxUploadBody bounds a multipart request: a full batch plus form overhead.
	maxUploadBody = evidence.MaxImagesPerUpload*evidence.MaxFileSize + 1<<20
	maxFormMemory = 8 << 20
)

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// parseMultipart reads the form and writes the error response itself.
func parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	err := r.ParseMultipartForm(maxFormMemory)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondWithError(w, http.StatusRequestEntityTooLarge, "Upload too large")
		return false
	}
	respondWithError(w, http.StatusBadRequest, "Malformed multipart body")
	return false
}

// readFiles loads the files of one form field. Oversized files are passed on
// with their declared size only so the evidence gate can refuse them.
func readFiles(r *http.Request, field string) ([]evidence.File, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[field]
	files := make([]evidence.File, 0, len(headers))
	for _, fh := range headers {
		f := evidence.File{Name: fh.Filename, Size: fh.Size}
		if fh.Size <= evidence.MaxFileSize && len(headers) <= evidence.MaxImagesPerUpload {
			data, err := readPart(fh)
			if err != nil {
				return nil, err
			}
			f.Data = data
		}
		files = append(files, f)
	}
	return files, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}
