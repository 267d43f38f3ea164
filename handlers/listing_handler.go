package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/nurbekov/courtside/middleware"
	"github.com/nurbekov/courtside/models"
	"github.com/nurbekov/courtside/services"
)

type ListingHandler struct {
	listingService services.ListingService
}

func NewListingHandler(ls services.ListingService) *ListingHandler {
	return &ListingHandler{listingService: ls}
}

func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input services.ListingInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	listing, err := h.listingService.Create(r.Context(), userID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"listing": listing}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ListingHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	listingID, err := idParam(r, "listingID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	listing, err := h.listingService.GetByID(r.Context(), listingID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"listing": listing}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ListingHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var status *models.ListingStatus
	if raw := q.Get("status"); raw != "" {
		s := models.ListingStatus(raw)
		status = &s
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	listings, err := h.listingService.List(r.Context(), status, limit, offset)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"listings": listings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	listingID, err := idParam(r, "listingID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.ListingInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	listing, err := h.listingService.Update(r.Context(), listingID, userID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"listing": listing}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ListingHandler) MarkSold(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	listingID, err := idParam(r, "listingID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	listing, err := h.listingService.MarkSold(r.Context(), listingID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"listing": listing}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	listingID, err := idParam(r, "listingID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.listingService.Delete(r.Context(), listingID, userID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ListingHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	listingID, err := idParam(r, "listingID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		badRequestResponse(w, r, errors.New("request is not a valid multipart form"))
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		badRequestResponse(w, r, errors.New("photo file is required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType != "image/jpeg" && contentType != "image/png" && contentType != "image/webp" {
		badRequestResponse(w, r, errors.New("photo must be a jpeg, png or webp image"))
		return
	}

	listing, err := h.listingService.UploadPhoto(r.Context(), listingID, userID, contentType, file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"listing": listing}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
