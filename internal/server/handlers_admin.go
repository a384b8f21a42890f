package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/auth"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/permission"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/storage"
)

const defaultActivityLimit = 50

func requireAdmin(actor *storage.User) error {
	if !permission.IsAdmin(actor) {
		return fmt.Errorf("%w: admin only", storage.ErrUnauthorized)
	}
	return nil
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(actorFrom(r.Context())); err != nil {
		s.fail(w, "listUsers", err)
		return
	}
	users, err := s.storage.GetUsers(r.Context())
	if err != nil {
		s.fail(w, "listUsers", err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (s *Server) handleListAssistants(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(actorFrom(r.Context())); err != nil {
		s.fail(w, "listAssistants", err)
		return
	}
	assistants, err := s.storage.GetAssistants(r.Context())
	if err != nil {
		s.fail(w, "listAssistants", err)
		return
	}
	respondJSON(w, http.StatusOK, assistants)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName        *string `json:"full_name"`
		Phone           *string `json:"phone"`
		AvatarURL       *string `json:"avatar_url"`
		ExpectedVersion int64   `json:"expected_version"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := s.storage.UpdateProfile(r.Context(), actorFrom(r.Context()).ID, pathID(r), storage.ProfileUpdate{
		FullName:        req.FullName,
		Phone:           req.Phone,
		AvatarURL:       req.AvatarURL,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		s.fail(w, "updateProfile", err)
		return
	}
	if _, err := s.auth.Refresh(r.Context(), user.ID); err != nil && !errors.Is(err, auth.ErrNoSession) {
		s.logger.Warn("failed to refresh session", zap.String("user_id", user.ID), zap.Error(err))
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleCreateAssistant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string   `json:"email"`
		FullName string   `json:"full_name"`
		Tasks    []string `json:"tasks"`
		Password string   `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := s.storage.CreateAssistant(r.Context(), actorFrom(r.Context()).ID, storage.AssistantInput{
		Email:    req.Email,
		FullName: req.FullName,
		Tasks:    permission.NormaliseCapabilities(req.Tasks),
		Password: req.Password,
	})
	if err != nil {
		s.fail(w, "createAssistant", err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (s *Server) handleToggleAssistant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeBody(r, &req); err != nil || req.Enabled == nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := s.storage.ToggleAssistantStatus(r.Context(), actorFrom(r.Context()).ID, pathID(r), *req.Enabled)
	if err != nil {
		s.fail(w, "toggleAssistant", err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateAssistantTasks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tasks []string `json:"tasks"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := s.storage.UpdateAssistantTasks(r.Context(), actorFrom(r.Context()).ID, pathID(r),
		permission.NormaliseCapabilities(req.Tasks))
	if err != nil {
		s.fail(w, "updateAssistantTasks", err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleSetAvailability(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := s.storage.SetAssistantAvailability(r.Context(), actorFrom(r.Context()).ID, pathID(r),
		storage.AssistantStatus(req.Status))
	if err != nil {
		s.fail(w, "setAssistantAvailability", err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	password, err := s.storage.ResetPassword(r.Context(), actorFrom(r.Context()).ID, pathID(r))
	if err != nil {
		s.fail(w, "resetPassword", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"password": password})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if err := s.storage.DeleteUser(r.Context(), actorFrom(r.Context()).ID, id); err != nil {
		s.fail(w, "deleteUser", err)
		return
	}
	// The account is gone either way; a stale session only fails to resolve.
	if err := s.auth.SignOut(id); err != nil && !errors.Is(err, auth.ErrNoSession) {
		s.logger.Error("failed to end session of deleted user", zap.String("user_id", id), zap.Error(err))
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}

func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(actorFrom(r.Context())); err != nil {
		s.fail(w, "listActivity", err)
		return
	}
	limit := defaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var err error
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid value for 'limit' parameter")
			return
		}
	}

	events, err := s.storage.GetActivity(r.Context(), limit)
	if err != nil {
		s.fail(w, "listActivity", err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

func (s *Server) handleGetKPIs(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(actorFrom(r.Context())); err != nil {
		s.fail(w, "getKPIs", err)
		return
	}
	kpis, err := s.storage.GetKPIs(r.Context())
	if err != nil {
		s.fail(w, "getKPIs", err)
		return
	}

	revenue, _ := kpis.Revenue.Float64()
	for name, v := range map[string]float64{
		"total_orders":        float64(kpis.TotalOrders),
		"revenue":             revenue,
		"pending_escalations": float64(kpis.PendingEscalations),
		"pending_requests":    float64(kpis.PendingRequests),
		"total_banners":       float64(kpis.TotalBanners),
		"total_products":      float64(kpis.TotalProducts),
		"total_users":         float64(kpis.TotalUsers),
		"online_assistants":   float64(kpis.OnlineAssistants),
		"busy_assistants":     float64(kpis.BusyAssistants),
		"offline_assistants":  float64(kpis.OfflineAssistants),
	} {
		metrics.KPI.WithLabelValues(name).Set(v)
	}
	respondJSON(w, http.StatusOK, kpis)
}
