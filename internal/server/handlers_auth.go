package server

import (
	"errors"
	"net/http"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/auth"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/permission"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/storage"
)

type sessionResponse struct {
	Session auth.Session    `json:"session"`
	Role    permission.Role `json:"role"`
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, role, err := s.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, "signIn", err)
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse{Session: session, Role: role})
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		FullName string `json:"full_name"`
		Phone    string `json:"phone"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, role, err := s.auth.SignUp(r.Context(), storage.SignUpInput{
		Email:    req.Email,
		FullName: req.FullName,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		s.fail(w, "signUp", err)
		return
	}
	respondJSON(w, http.StatusCreated, sessionResponse{Session: session, Role: role})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	// Basic-auth callers may never have opened a session.
	if err := s.auth.SignOut(actor.ID); err != nil && !errors.Is(err, auth.ErrNoSession) {
		s.fail(w, "signOut", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Signed out"})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, actorFrom(r.Context()))
}

func (s *Server) handleGetCapabilities(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"role":         actor.Role,
		"capabilities": permission.CapabilitiesOf(actor).List(),
	})
}
