package handlers

import (
	"net/http"

	"github.com/nurbekov/courtside/middleware"
	"github.com/nurbekov/courtside/models"
	"github.com/nurbekov/courtside/services"
)

// SessionHandler exposes the court rotation controls. Every mutation is
// host-gated inside the service; the handler only plumbs identity and
// parameters through.
type SessionHandler struct {
	sessionService services.SessionService
}

func NewSessionHandler(ss services.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: ss}
}

func (h *SessionHandler) withIdentity(w http.ResponseWriter, r *http.Request) (userID, partyID int, ok bool) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return 0, 0, false
	}
	partyID, err = idParam(r, "partyID")
	if err != nil {
		badRequestResponse(w, r, err)
		return 0, 0, false
	}
	return userID, partyID, true
}

func (h *SessionHandler) writeRoom(w http.ResponseWriter, r *http.Request, room *models.Room, err error) {
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"room": room}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, partyID, ok := h.withIdentity(w, r)
	if !ok {
		return
	}

	var input struct {
		CourtCount int `json:"court_count"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.sessionService.StartSession(r.Context(), partyID, userID, input.CourtCount)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"room": room}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	userID, partyID, ok := h.withIdentity(w, r)
	if !ok {
		return
	}

	var input struct {
		Confirm bool `json:"confirm"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.sessionService.StopSession(r.Context(), partyID, userID, input.Confirm); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetState is open to any viewer; no auth required.
func (h *SessionHandler) GetState(w http.ResponseWriter, r *http.Request) {
	partyID, err := idParam(r, "partyID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	state, err := h.sessionService.GetState(r.Context(), partyID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"session": state}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SessionHandler) AutoAssign(w http.ResponseWriter, r *http.Request) {
	userID, partyID, ok := h.withIdentity(w, r)
	if !ok {
		return
	}

	var input struct {
		Algorithm models.AssignAlgorithm `json:"algorithm"`
		Confirm   bool                   `json:"confirm"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.sessionService.AutoAssign(r.Context(), partyID, userID, input.Algorithm, input.Confirm)
	h.writeRoom(w, r, room, err)
}

func (h *SessionHandler) FillCourt(w http.ResponseWriter, r *http.Request) {
	userID, partyID, ok := h.withIdentity(w, r)
	if !ok {
		return
	}
	courtID, err := idParam(r, "courtID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.sessionService.FillCourt(r.Context(), partyID, userID, courtID)
	h.writeRoom(w, r, room, err)
}

func (h *SessionHandler) StartMatch(w http.ResponseWriter, r *http.Request) {
	userID, partyID, ok := h.withIdentity(w, r)
	if !ok {
		return
	}
	courtID, err := idParam(r, "courtID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.sessionService.StartMatch(r.Context(), partyID, userID, courtID)
	h.writeRoom(w, r, room, err)
}

func (h *SessionHandler) FinishMatch(w http.ResponseWriter, r *http.Request) {
	userID, partyID, ok := h.withIdentity(w, r)
	if !ok {
		return
	}
	courtID, err := idParam(r, "courtID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	// Scores arrive as freeform strings from the score pad; anything that
	// does not parse counts as zero.
	var input struct {
		Score1 string `json:"score1"`
		Score2 string `json:"score2"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.sessionService.FinishMatch(r.Context(), partyID, userID, courtID, input.Score1, input.Score2)
	h.writeRoom(w, r, room, err)
}

func (h *SessionHandler) SwapPlayers(w http.ResponseWriter, r *http.Request) {
	userID, partyID, ok := h.withIdentity(w, r)
	if !ok {
		return
	}
	courtID, err := idParam(r, "courtID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.sessionService.SwapPlayers(r.Context(), partyID, userID, courtID)
	h.writeRoom(w, r, room, err)
}

func (h *SessionHandler) Substitute(w http.ResponseWriter, r *http.Request) {
	userID, partyID, ok := h.withIdentity(w, r)
	if !ok {
		return
	}
	courtID, err := idParam(r, "courtID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		CourtPlayerID string `json:"court_player_id"`
		QueuePlayerID string `json:"queue_player_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.sessionService.Substitute(r.Context(), partyID, userID, courtID, input.CourtPlayerID, input.QueuePlayerID)
	h.writeRoom(w, r, room, err)
}

func (h *SessionHandler) SwapQueue(w http.ResponseWriter, r *http.Request) {
	userID, partyID, ok := h.withIdentity(w, r)
	if !ok {
		return
	}

	var input struct {
		PlayerA string `json:"player_a"`
		PlayerB string `json:"player_b"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.sessionService.SwapQueue(r.Context(), partyID, userID, input.PlayerA, input.PlayerB)
	h.writeRoom(w, r, room, err)
}

func (h *SessionHandler) TogglePause(w http.ResponseWriter, r *http.Request) {
	userID, partyID, ok := h.withIdentity(w, r)
	if !ok {
		return
	}

	var input struct {
		PlayerID string `json:"player_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.sessionService.TogglePause(r.Context(), partyID, userID, input.PlayerID)
	h.writeRoom(w, r, room, err)
}

func (h *SessionHandler) SetCourtCount(w http.ResponseWriter, r *http.Request) {
	userID, partyID, ok := h.withIdentity(w, r)
	if !ok {
		return
	}

	var input struct {
		Count int `json:"count"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.sessionService.SetCourtCount(r.Context(), partyID, userID, input.Count)
	h.writeRoom(w, r, room, err)
}

func (h *SessionHandler) RenameCourt(w http.ResponseWriter, r *http.Request) {
	userID, partyID, ok := h.withIdentity(w, r)
	if !ok {
		return
	}
	courtID, err := idParam(r, "courtID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Name string `json:"name"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.sessionService.RenameCourt(r.Context(), partyID, userID, courtID, input.Name)
	h.writeRoom(w, r, room, err)
}

func (h *SessionHandler) SetRotationMode(w http.ResponseWriter, r *http.Request) {
	userID, partyID, ok := h.withIdentity(w, r)
	if !ok {
		return
	}

	var input struct {
		Mode models.RotationMode `json:"mode"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.sessionService.SetRotationMode(r.Context(), partyID, userID, input.Mode)
	h.writeRoom(w, r, room, err)
}

func (h *SessionHandler) SetAlgorithm(w http.ResponseWriter, r *http.Request) {
	userID, partyID, ok := h.withIdentity(w, r)
	if !ok {
		return
	}

	var input struct {
		Algorithm models.AssignAlgorithm `json:"algorithm"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.sessionService.SetAlgorithm(r.Context(), partyID, userID, input.Algorithm)
	h.writeRoom(w, r, room, err)
}

func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	userID, partyID, ok := h.withIdentity(w, r)
	if !ok {
		return
	}

	var input struct {
		Confirm bool `json:"confirm"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.sessionService.ResetSession(r.Context(), partyID, userID, input.Confirm)
	h.writeRoom(w, r, room, err)
}

func (h *SessionHandler) RefreshPlayers(w http.ResponseWriter, r *http.Request) {
	userID, partyID, ok := h.withIdentity(w, r)
	if !ok {
		return
	}

	var input struct {
		Confirm bool `json:"confirm"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.sessionService.RefreshPlayers(r.Context(), partyID, userID, input.Confirm)
	h.writeRoom(w, r, room, err)
}

func (h *SessionHandler) AddGuest(w http.ResponseWriter, r *http.Request) {
	userID, partyID, ok := h.withIdentity(w, r)
	if !ok {
		return
	}

	var input struct {
		Name  string            `json:"name"`
		Level models.SkillLevel `json:"level"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.sessionService.AddGuest(r.Context(), partyID, userID, input.Name, input.Level)
	h.writeRoom(w, r, room, err)
}

func (h *SessionHandler) RemovePlayer(w http.ResponseWriter, r *http.Request) {
	userID, partyID, ok := h.withIdentity(w, r)
	if !ok {
		return
	}

	var input struct {
		PlayerID string `json:"player_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.sessionService.RemovePlayer(r.Context(), partyID, userID, input.PlayerID)
	h.writeRoom(w, r, room, err)
}

// Rankings is open to any viewer.
func (h *SessionHandler) Rankings(w http.ResponseWriter, r *http.Request) {
	partyID, err := idParam(r, "partyID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	rankings, err := h.sessionService.Rankings(r.Context(), partyID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"rankings": rankings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
