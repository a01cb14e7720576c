package api

import (
	"net/http"

	"github.com/punchamoorthee/fundledger/internal/domain"
	"github.com/punchamoorthee/fundledger/internal/service"
)

func (h *Handler) CreateExpenseHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFrom(w, r)
	if !ok {
		return
	}

	var (
		req createExpenseRequest
		in  service.CreateExpenseInput
	)
	if isMultipart(r) {
		// Receipts may ride along with the form fields.
		if !parseMultipart(w, r) {
			return
		}
		req = createExpenseRequest{
			LedgerKind:  r.FormValue("ledger_kind"),
			LedgerID:    r.FormValue("ledger_id"),
			Category:    r.FormValue("category"),
			Description: r.FormValue("description"),
		}
		if err := req.Amount.UnmarshalJSON([]byte(r.FormValue("amount"))); err != nil {
			respondWithServiceError(w, domain.ErrInvalidAmount)
			return
		}
		if !h.validateStruct(w, &req) {
			return
		}
		files, err := readFiles(r, imagesField)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Unreadable upload")
			return
		}
		in.Receipts = files
	} else if !h.decodeJSON(w, r, &req) {
		return
	}

	ref, err := domain.ParseLedgerRef(req.LedgerKind, req.LedgerID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	in.Ledger = ref
	in.Amount = req.Amount
	in.Category = req.Category
	in.Description = req.Description
	in.Actor = actor

	e, err := h.svc.CreateExpense(r.Context(), in)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/expenses/"+e.ID.String())
	respondWithJSON(w, http.StatusCreated, e)
}

func (h *Handler) ListExpensesHandler(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		respondWithQueryError(w, err)
		return
	}
	list, err := h.svc.ListExpenses(r.Context(), f)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"expenses": list,
		"limit":    f.Limit,
		"offset":   f.Offset,
	})
}

func (h *Handler) GetExpenseHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid expense id")
		return
	}
	e, err := h.svc.GetExpense(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, e)
}

func (h *Handler) UpdateExpenseHandler(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.idAndActor(w, r)
	if !ok {
		return
	}
	var req updateExpenseRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	e, err := h.svc.UpdateExpense(r.Context(), id, actor, domain.ExpenseEdit{
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
	})
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, e)
}

func (h *Handler) AttachExpenseReceiptsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid expense id")
		return
	}
	if !parseMultipart(w, r) {
		return
	}
	files, err := readFiles(r, imagesField)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Unreadable upload")
		return
	}
	urls, err := h.svc.AttachExpenseReceipts(r.Context(), id, files)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string][]string{"receipt_images": urls})
}

// ApproveExpenseHandler accepts either a multipart form carrying the transfer
// screenshot or JSON referencing an already stored one.
func (h *Handler) ApproveExpenseHandler(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.idAndActor(w, r)
	if !ok {
		return
	}

	var (
		req   approveRequest
		proof service.PaymentProof
	)
	if isMultipart(r) {
		if !parseMultipart(w, r) {
			return
		}
		req.Notes = r.FormValue("notes")
		req.PaymentProofURL = r.FormValue("payment_proof_url")
		if !h.validateStruct(w, &req) {
			return
		}
		files, err := readFiles(r, paymentProofField)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Unreadable upload")
			return
		}
		if len(files) > 1 {
			respondWithServiceError(w, domain.ErrTooManyImages)
			return
		}
		if len(files) == 1 {
			proof.File = &files[0]
		}
	} else if !h.decodeJSON(w, r, &req) {
		return
	}
	proof.URL = req.PaymentProofURL

	res, err := h.svc.ApproveExpense(r.Context(), id, actor, req.Notes, proof)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (h *Handler) RejectExpenseHandler(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.idAndActor(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.RejectExpense(r.Context(), id, actor, req.Reason)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}
