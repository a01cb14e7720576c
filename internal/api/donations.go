package api

import (
	"net/http"

	"github.com/punchamoorthee/fundledger/internal/domain"
	"github.com/punchamoorthee/fundledger/internal/service"
)

func (h *Handler) CreateDonationHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFrom(w, r)
	if !ok {
		return
	}
	var req createDonationRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	ref, err := domain.ParseLedgerRef(req.LedgerKind, req.LedgerID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	res, err := h.svc.CreateDonation(r.Context(), service.CreateDonationInput{
		Ledger:        ref,
		Amount:        req.Amount,
		Method:        domain.PaymentMethod(req.Method),
		DonorMemberID: req.DonorMemberID,
		DonorName:     req.DonorName,
		Message:       req.Message,
		Actor:         actor,
	})
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/donations/"+res.Donation.ID.String())
	respondWithJSON(w, http.StatusCreated, res)
}

func (h *Handler) ListDonationsHandler(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		respondWithQueryError(w, err)
		return
	}
	list, err := h.svc.ListDonations(r.Context(), f)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"donations": list,
		"limit":     f.Limit,
		"offset":    f.Offset,
	})
}

func (h *Handler) GetDonationHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid donation id")
		return
	}
	d, err := h.svc.GetDonation(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, d)
}

func (h *Handler) UpdateDonationHandler(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.idAndActor(w, r)
	if !ok {
		return
	}
	var req updateDonationRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	d, err := h.svc.UpdateDonation(r.Context(), id, actor, domain.DonationEdit{
		Amount:    req.Amount,
		DonorName: req.DonorName,
		Message:   req.Message,
	})
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, d)
}

func (h *Handler) AttachDonationProofHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid donation id")
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
	urls, err := h.svc.AttachDonationProof(r.Context(), id, files)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string][]string{"proof_images": urls})
}

func (h *Handler) ConfirmDonationHandler(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.idAndActor(w, r)
	if !ok {
		return
	}
	var req notesRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.ConfirmDonation(r.Context(), id, actor, req.Notes)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (h *Handler) RejectDonationHandler(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.idAndActor(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.RejectDonation(r.Context(), id, actor, req.Reason)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

// respondWithQueryError answers 400 for unparsable paging and the domain status otherwise.
func respondWithQueryError(w http.ResponseWriter, err error) {
	if domain.KindOf(err) == domain.KindInternal {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithServiceError(w, err)
}
