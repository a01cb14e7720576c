package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/punchamoorthee/fundledger/internal/domain"
	"github.com/punchamoorthee/fundledger/internal/service"
)

func (h *Handler) CreateFundHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFrom(w, r)
	if !ok {
		return
	}
	var req createFundRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	fund, err := h.svc.CreateFund(r.Context(), service.CreateFundInput{
		FamilyTreeID: req.FamilyTreeID,
		Name:         req.Name,
		ManagerIDs:   req.ManagerIDs,
		BankInfo:     req.BankInfo,
		Actor:        actor,
	})
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/funds/"+fund.ID.String())
	respondWithJSON(w, http.StatusCreated, fund)
}

func (h *Handler) GetFundHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid fund id")
		return
	}
	fund, err := h.svc.GetFund(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, fund)
}

func (h *Handler) GetFamilyTreeFundHandler(w http.ResponseWriter, r *http.Request) {
	tree, err := pathID(r, "treeId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid family tree id")
		return
	}
	fund, err := h.svc.GetFundByFamilyTree(r.Context(), tree)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, fund)
}

func (h *Handler) UpdateFundBankInfoHandler(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.idAndActor(w, r)
	if !ok {
		return
	}
	var req bankInfoRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	fund, err := h.svc.UpdateFundBankInfo(r.Context(), id, req.BankInfo, actor)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, fund)
}

func (h *Handler) AddFundManagerHandler(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.idAndActor(w, r)
	if !ok {
		return
	}
	var req addManagerRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	fund, err := h.svc.AddFundManager(r.Context(), id, req.MemberID, actor)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, fund)
}

func (h *Handler) DeleteFundHandler(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.idAndActor(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteFund(r.Context(), id, actor); err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetLedgerBalanceHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ref, err := domain.ParseLedgerRef(vars["kind"], vars["id"])
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	bal, err := h.svc.LedgerBalance(r.Context(), ref)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, bal)
}

func (h *Handler) CreateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFrom(w, r)
	if !ok {
		return
	}
	var req createCampaignRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	c, err := h.svc.CreateCampaign(r.Context(), service.CreateCampaignInput{
		FundOwnerID: req.FundOwnerID,
		ManagerID:   req.ManagerID,
		Name:        req.Name,
		Description: req.Description,
		Goal:        req.Goal,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		BankInfo:    req.BankInfo,
		Actor:       actor,
	})
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/campaigns/"+c.ID.String())
	respondWithJSON(w, http.StatusCreated, c)
}

func (h *Handler) GetCampaignHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid campaign id")
		return
	}
	c, err := h.svc.GetCampaign(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

func (h *Handler) CancelCampaignHandler(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.idAndActor(w, r)
	if !ok {
		return
	}
	c, err := h.svc.CancelCampaign(r.Context(), id, actor)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

// idAndActor parses the {id} path variable and the actor header, answering 400
// on either failure.
func (h *Handler) idAndActor(w http.ResponseWriter, r *http.Request) (id, actor uuid.UUID, ok bool) {
	pid, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id")
		return id, actor, false
	}
	a, ok := h.actorFrom(w, r)
	if !ok {
		return id, actor, false
	}
	return pid, a, true
}
