package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/permission"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("Invalid email or password")
	ErrAccountDisabled    = errors.New("Account disabled. Contact admin.")
	ErrNoSession          = errors.New("no active session")
)

// UserStore is the part of the store the adapter depends on.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (*storage.User, error)
	GetUser(ctx context.Context, id string) (*storage.User, error)
	VerifyPassword(ctx context.Context, userID, password string) (bool, error)
	SignUp(ctx context.Context, in storage.SignUpInput) (*storage.User, error)
}

type Adapter struct {
	store    UserStore
	sessions *Registry
	logger   *zap.Logger
}

func NewAdapter(store UserStore, logger *zap.Logger) *Adapter {
	return &Adapter{
		store:    store,
		sessions: NewRegistry(logger),
		logger:   logger,
	}
}

func sessionOf(u *storage.User) Session {
	return Session{ID: u.ID, Email: u.Email, FullName: u.FullName}
}

// VerifyCredentials resolves an account by email and checks its password.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (a *Adapter) VerifyCredentials(ctx context.Context, email, password string) (*storage.User, error) {
	u, err := a.store.FindUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		metrics.AuthFailuresTotal.WithLabelValues("unknown_email").Inc()
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	ok, err := a.store.VerifyPassword(ctx, u.ID, password)
	if errors.Is(err, storage.ErrNotFound) {
		metrics.AuthFailuresTotal.WithLabelValues("no_credential").Inc()
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		metrics.AuthFailuresTotal.WithLabelValues("wrong_password").Inc()
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Authenticate is VerifyCredentials plus the disabled-assistant check. It
// does not touch the session registry.
func (a *Adapter) Authenticate(ctx context.Context, email, password string) (*storage.User, error) {
	u, err := a.VerifyCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if u.IsAssistant() && !u.AssistantEnabled {
		metrics.AuthFailuresTotal.WithLabelValues("disabled").Inc()
		return nil, ErrAccountDisabled
	}
	return u, nil
}

func (a *Adapter) SignIn(ctx context.Context, email, password string) (Session, permission.Role, error) {
	u, err := a.Authenticate(ctx, email, password)
	if err != nil {
		a.logger.Info("sign in rejected", zap.String("email", email), zap.Error(err))
		return Session{}, "", err
	}
	s := sessionOf(u)
	a.sessions.Set(s, u.Role)
	a.logger.Info("signed in", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return s, u.Role, nil
}

// SignUp registers a customer and signs them in.
func (a *Adapter) SignUp(ctx context.Context, in storage.SignUpInput) (Session, permission.Role, error) {
	u, err := a.store.SignUp(ctx, in)
	if err != nil {
		return Session{}, "", err
	}
	s := sessionOf(u)
	a.sessions.Set(s, u.Role)
	a.logger.Info("signed up", zap.String("user_id", u.ID))
	return s, u.Role, nil
}

func (a *Adapter) SignOut(sessionID string) error {
	if !a.sessions.Delete(sessionID) {
		return ErrNoSession
	}
	return nil
}

func (a *Adapter) Session(sessionID string) (Session, bool) {
	s, _, ok := a.sessions.Get(sessionID)
	return s, ok
}

func (a *Adapter) RoleOf(sessionID string) (permission.Role, bool) {
	_, role, ok := a.sessions.Get(sessionID)
	return role, ok
}

// Refresh reloads the session from the store after a profile change. A
// session whose account is gone is dropped.
func (a *Adapter) Refresh(ctx context.Context, sessionID string) (Session, error) {
	if _, _, ok := a.sessions.Get(sessionID); !ok {
		return Session{}, ErrNoSession
	}
	u, err := a.store.GetUser(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		a.sessions.Delete(sessionID)
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}
	s := sessionOf(u)
	a.sessions.Set(s, u.Role)
	return s, nil
}
