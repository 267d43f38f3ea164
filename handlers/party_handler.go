package handlers

import (
	"net/http"
	"strconv"

	"github.com/nurbekov/courtside/middleware"
	"github.com/nurbekov/courtside/models"
	"github.com/nurbekov/courtside/services"
)

type PartyHandler struct {
	partyService services.PartyService
	billService  services.BillService
}

func NewPartyHandler(ps services.PartyService, bs services.BillService) *PartyHandler {
	return &PartyHandler{partyService: ps, billService: bs}
}

func (h *PartyHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input services.PartyInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	party, err := h.partyService.Create(r.Context(), userID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"party": party}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PartyHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	partyID, err := idParam(r, "partyID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	party, err := h.partyService.GetByID(r.Context(), partyID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"party": party}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PartyHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var status *models.PartyStatus
	if raw := q.Get("status"); raw != "" {
		s := models.PartyStatus(raw)
		status = &s
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	parties, err := h.partyService.List(r.Context(), status, limit, offset)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"parties": parties}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PartyHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	partyID, err := idParam(r, "partyID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.PartyInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	party, err := h.partyService.Update(r.Context(), partyID, userID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"party": party}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PartyHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	partyID, err := idParam(r, "partyID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Confirm bool `json:"confirm"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.partyService.Cancel(r.Context(), partyID, userID, input.Confirm); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Bill returns the cost split for a party. shuttles_used comes from the
// query string so the host can recompute while toggling the count.
func (h *PartyHandler) Bill(w http.ResponseWriter, r *http.Request) {
	partyID, err := idParam(r, "partyID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	shuttlesUsed, _ := strconv.Atoi(r.URL.Query().Get("shuttles_used"))

	breakdown, err := h.billService.Split(r.Context(), partyID, shuttlesUsed)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"bill": breakdown}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
