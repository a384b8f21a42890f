package server

import (
	"net/http"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/permission"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/storage"
)

type messageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())

	var (
		conversations []*storage.Conversation
		err           error
	)
	if permission.Has(actor, permission.CapLiveAgentSupport) {
		conversations, err = s.storage.GetConversations(r.Context())
	} else {
		conversations, err = s.storage.GetUserConversations(r.Context(), actor.ID)
	}
	if err != nil {
		s.fail(w, "listConversations", err)
		return
	}
	respondJSON(w, http.StatusOK, conversations)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conversation, err := s.storage.GetConversation(r.Context(), pathID(r))
	if err == nil {
		err = canView(actorFrom(r.Context()), conversation.UserID, permission.CapLiveAgentSupport)
	}
	if err != nil {
		s.fail(w, "getConversation", err)
		return
	}
	respondJSON(w, http.StatusOK, conversation)
}

func (s *Server) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conversation, err := s.storage.StartConversation(r.Context(), actorFrom(r.Context()).ID, req.Text)
	if err != nil {
		s.fail(w, "startConversation", err)
		return
	}
	metrics.SupportMessagesTotal.Inc()
	respondJSON(w, http.StatusCreated, conversation)
}

func (s *Server) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conversation, err := s.storage.AddMessage(r.Context(), actorFrom(r.Context()).ID, pathID(r), req.Text)
	if err != nil {
		s.fail(w, "addMessage", err)
		return
	}
	metrics.SupportMessagesTotal.Inc()
	respondJSON(w, http.StatusCreated, conversation)
}

func (s *Server) handleUpdateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AssignTo        *string `json:"assign_to"`
		Status          *string `json:"status"`
		ExpectedVersion int64   `json:"expected_version"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	upd := storage.ConversationUpdate{
		AssignTo:        req.AssignTo,
		ExpectedVersion: req.ExpectedVersion,
	}
	if req.Status != nil {
		status := storage.ConversationStatus(*req.Status)
		upd.Status = &status
	}

	conversation, err := s.storage.UpdateConversation(r.Context(), actorFrom(r.Context()).ID, pathID(r), upd)
	if err != nil {
		s.fail(w, "updateConversation", err)
		return
	}
	respondJSON(w, http.StatusOK, conversation)
}
