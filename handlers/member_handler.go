package handlers

import (
	"net/http"

	"github.com/nurbekov/courtside/middleware"
	"github.com/nurbekov/courtside/models"
	"github.com/nurbekov/courtside/services"
)

type MemberHandler struct {
	memberService services.MemberService
}

func NewMemberHandler(ms services.MemberService) *MemberHandler {
	return &MemberHandler{memberService: ms}
}

func (h *MemberHandler) Join(w http.ResponseWriter, r *http.Request) {
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
		Level models.SkillLevel `json:"level"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	member, err := h.memberService.Join(r.Context(), partyID, userID, input.Level)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"member": member}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MemberHandler) Leave(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	partyID, err := idParam(r, "partyID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := idParam(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.memberService.Leave(r.Context(), partyID, userID, actorID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	partyID, err := idParam(r, "partyID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	members, err := h.memberService.ListByParty(r.Context(), partyID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"members": members}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MemberHandler) SetLevel(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	partyID, err := idParam(r, "partyID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := idParam(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Level models.SkillLevel `json:"level"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.memberService.SetLevel(r.Context(), partyID, userID, actorID, input.Level); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
