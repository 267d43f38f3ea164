package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/nurbekov/courtside/feed"
	"github.com/nurbekov/courtside/matchmaking"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the frontend origin once it is deployed.
		return true
	},
}

type WebSocketHandler struct {
	hub    *matchmaking.Hub
	logger *slog.Logger
}

func NewWebSocketHandler(hub *matchmaking.Hub, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, logger: logger}
}

// ServeWs attaches a read-only viewer to a party room. Clients connect to
// /ws/parties/{partyID}; every room snapshot published on the change feed
// is pushed down this socket.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	partyID, err := idParam(r, "partyID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		h.logger.Error("websocket upgrade failed", "party_id", partyID, "error", err)
		return
	}

	client := &matchmaking.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: feed.RoomKey(partyID),
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
