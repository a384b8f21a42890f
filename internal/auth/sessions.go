package auth

import (
	"sync"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/permission"
)

// Session is the signed-in principal as seen by clients.
type Session struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type entry struct {
	session Session
	role    permission.Role
}

// Registry holds active sessions. A session and its role are stored in one
// entry so they are always replaced together.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	logger  *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		entries: make(map[string]entry),
		logger:  logger,
	}
}

func (r *Registry) Get(id string) (Session, permission.Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, found := r.entries[id]
	if !found {
		return Session{}, "", false
	}
	return e.session, e.role, true
}

func (r *Registry) Set(s Session, role permission.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[s.ID] = entry{session: s, role: role}
	metrics.ActiveSessions.Set(float64(len(r.entries)))
	r.logger.Debug("session stored", zap.String("user_id", s.ID), zap.String("role", string(role)))
}

func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.entries[id]; !found {
		return false
	}
	delete(r.entries, id)
	metrics.ActiveSessions.Set(float64(len(r.entries)))
	r.logger.Debug("session removed", zap.String("user_id", id))
	return true
}

func (r *Registry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
