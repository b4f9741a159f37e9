package handlers

import (
	"net/http"

	"voyanceBack/internal/models"
	"voyanceBack/internal/ws"
)

type WSHandler struct {
	Hub *ws.Hub
}

// Serve upgrades an authenticated agent or client to the realtime channel.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var participant string
	switch p.Role {
	case models.RoleAgent:
		participant = ws.AgentKey(p.AgentID)
	case models.RoleClient:
		participant = ws.ClientKey(p.ClientID)
	default:
		writeError(w, r, models.ErrForbidden)
		return
	}
	h.Hub.ServeWS(w, r, participant)
}
