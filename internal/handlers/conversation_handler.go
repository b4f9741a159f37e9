package handlers

import (
	"context"
	"net/http"

	"voyanceBack/internal/models"
	"voyanceBack/internal/services"
)

type ConversationHandler struct {
	Service *services.ConversationService
}

func (h *ConversationHandler) Start(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.StartConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	conv, err := h.Service.Start(r.Context(), p, req.VoyantID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

type conversationOp func(ctx context.Context, p models.Principal, id int) (models.Conversation, error)

func (h *ConversationHandler) apply(w http.ResponseWriter, r *http.Request, op conversationOp) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	conv, err := op(r.Context(), p, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *ConversationHandler) Tick(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.Service.Tick)
}

func (h *ConversationHandler) End(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.Service.End)
}

func (h *ConversationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.Service.Cancel)
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.Service.Get)
}

// Active returns the caller's active conversation, or null.
func (h *ConversationHandler) Active(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	conv, err := h.Service.Active(r.Context(), p.ClientID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Mine lists the conversations of the calling client or agent.
func (h *ConversationHandler) Mine(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var convs []models.Conversation
	switch p.Role {
	case models.RoleClient:
		convs, err = h.Service.ListForClient(r.Context(), p.ClientID)
	case models.RoleAgent:
		convs, err = h.Service.ListForAgent(r.Context(), p.AgentID)
	default:
		err = models.ErrForbidden
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}
