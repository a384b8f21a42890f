package server

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/auth"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/storage"
)

type actorKey struct{}

func withActor(ctx context.Context, u *storage.User) context.Context {
	return context.WithValue(ctx, actorKey{}, u)
}

// actorFrom returns the authenticated user, or nil on anonymous requests.
func actorFrom(ctx context.Context) *storage.User {
	u, _ := ctx.Value(actorKey{}).(*storage.User)
	return u
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="giftstore"`)
	respondError(w, http.StatusUnauthorized, message)
}

// basicAuthMiddleware resolves the caller from HTTP Basic credentials. When
// mustAuth is false, requests without credentials pass through anonymously.
func (s *Server) basicAuthMiddleware(next http.Handler, mustAuth bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, password, ok := r.BasicAuth()
		if !ok {
			if mustAuth {
				unauthorized(w, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		u, err := s.auth.Authenticate(r.Context(), email, password)
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			unauthorized(w, err.Error())
			return
		case errors.Is(err, auth.ErrAccountDisabled):
			respondError(w, http.StatusForbidden, err.Error())
			return
		case err != nil:
			s.logger.Error("failed to authenticate request", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "Internal error")
			return
		}

		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), u)))
	})
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrConflict), errors.Is(err, storage.ErrBanned):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrAccountDisabled):
		return http.StatusForbidden
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail writes err as a JSON error and counts it against the operation.
// Unexpected errors are logged and hidden from the client.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	metrics.OperationErrorsTotal.WithLabelValues(op).Inc()
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("operation failed", zap.String("operation", op), zap.Error(err))
		respondError(w, status, "Internal error")
		return
	}
	s.logger.Debug("operation rejected", zap.String("operation", op), zap.Int("status", status), zap.Error(err))
	respondError(w, status, err.Error())
}
