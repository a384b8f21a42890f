package storage

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/permission"
)

const (
	resetPasswordLength  = 8
	resetPasswordCharset = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789"
)

type SignUpInput struct {
	Email    string
	FullName string
	Phone    string
	Password string
}

type AssistantInput struct {
	Email    string
	FullName string
	Tasks    []permission.Capability
	Password string
}

type ProfileUpdate struct {
	FullName        *string
	Phone           *string
	AvatarURL       *string
	ExpectedVersion int64
}

// avatarURL derives a stable placeholder avatar from the display name.
func avatarURL(name string) string {
	return "https://ui-avatars.com/api/?background=random&name=" + url.QueryEscape(strings.TrimSpace(name))
}

func (s *Store) hashPassword(password string) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

func validateAccount(email, fullName string) error {
	if !strings.Contains(email, "@") {
		return fmt.Errorf("%w: invalid email %q", ErrInvalidInput, email)
	}
	if strings.TrimSpace(fullName) == "" {
		return fmt.Errorf("%w: full name is required", ErrInvalidInput)
	}
	return nil
}

func validateTasks(tasks []permission.Capability) ([]permission.Capability, error) {
	raw := make([]string, len(tasks))
	for i, t := range tasks {
		if _, ok := permission.ParseCapability(string(t)); !ok {
			return nil, fmt.Errorf("%w: unknown task %q", ErrInvalidInput, t)
		}
		raw[i] = string(t)
	}
	return permission.NormaliseCapabilities(raw), nil
}

// emailTaken must be called with the lock held.
func (s *Store) emailTaken(email string) bool {
	for _, u := range s.users {
		if u.Email == email {
			return true
		}
	}
	return false
}

// SignUp registers a customer account.
func (s *Store) SignUp(ctx context.Context, in SignUpInput) (*User, error) {
	email := normaliseEmail(in.Email)
	if err := validateAccount(email, in.FullName); err != nil {
		return nil, err
	}
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	var out *User
	err = s.mutate(ctx, func() (*ActivityEvent, error) {
		if _, ok := s.banned[email]; ok {
			return nil, fmt.Errorf("%w: %s", ErrBanned, email)
		}
		if s.emailTaken(email) {
			return nil, fmt.Errorf("%w: email %s already registered", ErrConflict, email)
		}
		now := s.clock()
		u := &User{
			ID:        s.newID(),
			Email:     email,
			FullName:  strings.TrimSpace(in.FullName),
			Phone:     strings.TrimSpace(in.Phone),
			AvatarURL: avatarURL(in.FullName),
			Role:      permission.RoleUser,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.users[u.ID] = u
		s.credentials[u.ID] = hash
		out = cloneUser(u)
		return s.event(u, ActivityUserRegistered, u.ID, "New customer %s registered", u.FullName), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	var out *User
	err := s.read(ctx, func() error {
		u, ok := s.users[id]
		if !ok {
			return fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		out = cloneUser(u)
		return nil
	})
	return out, err
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	email = normaliseEmail(email)
	var out *User
	err := s.read(ctx, func() error {
		for _, u := range s.users {
			if u.Email == email {
				out = cloneUser(u)
				return nil
			}
		}
		return fmt.Errorf("user %s: %w", email, ErrNotFound)
	})
	return out, err
}

// GetUsers returns every account, newest first.
func (s *Store) GetUsers(ctx context.Context) ([]*User, error) {
	var out []*User
	err := s.read(ctx, func() error {
		out = make([]*User, 0, len(s.users))
		for _, u := range s.users {
			out = append(out, cloneUser(u))
		}
		return nil
	})
	sortUsers(out)
	return out, err
}

func (s *Store) GetAssistants(ctx context.Context) ([]*User, error) {
	var out []*User
	err := s.read(ctx, func() error {
		for _, u := range s.users {
			if u.IsAssistant() {
				out = append(out, cloneUser(u))
			}
		}
		return nil
	})
	sortUsers(out)
	return out, err
}

// UpdateProfile edits display fields. Users may edit themselves; admins may
// edit anyone.
func (s *Store) UpdateProfile(ctx context.Context, actorID, id string, upd ProfileUpdate) (*User, error) {
	if upd.FullName != nil && strings.TrimSpace(*upd.FullName) == "" {
		return nil, fmt.Errorf("%w: full name is required", ErrInvalidInput)
	}

	var out *User
	err := s.mutate(ctx, func() (*ActivityEvent, error) {
		actor, err := s.actor(actorID)
		if err != nil {
			return nil, err
		}
		if actor.ID != id && !permission.IsAdmin(actor) {
			return nil, fmt.Errorf("%w: cannot edit another profile", ErrUnauthorized)
		}
		u, ok := s.users[id]
		if !ok {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		if err := checkVersion(upd.ExpectedVersion, u.Version); err != nil {
			return nil, err
		}
		if upd.FullName != nil {
			u.FullName = strings.TrimSpace(*upd.FullName)
		}
		if upd.Phone != nil {
			u.Phone = strings.TrimSpace(*upd.Phone)
		}
		if upd.AvatarURL != nil {
			u.AvatarURL = strings.TrimSpace(*upd.AvatarURL)
		}
		u.Version++
		u.UpdatedAt = s.clock()
		out = cloneUser(u)
		return s.event(actor, ActivityUserUpdated, u.ID, "Profile of %s updated", u.FullName), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAssistant provisions a staff account. New assistants start offline
// and enabled.
func (s *Store) CreateAssistant(ctx context.Context, actorID string, in AssistantInput) (*User, error) {
	email := normaliseEmail(in.Email)
	if err := validateAccount(email, in.FullName); err != nil {
		return nil, err
	}
	tasks, err := validateTasks(in.Tasks)
	if err != nil {
		return nil, err
	}
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	var out *User
	err = s.mutate(ctx, func() (*ActivityEvent, error) {
		actor, err := s.authorizeAdmin(actorID)
		if err != nil {
			return nil, err
		}
		if s.emailTaken(email) {
			return nil, fmt.Errorf("%w: email %s already registered", ErrConflict, email)
		}
		now := s.clock()
		u := &User{
			ID:               s.newID(),
			Email:            email,
			FullName:         strings.TrimSpace(in.FullName),
			AvatarURL:        avatarURL(in.FullName),
			Role:             permission.RoleAssistant,
			AssistantTasks:   tasks,
			AssistantStatus:  AssistantOffline,
			AssistantEnabled: true,
			Version:          1,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		s.users[u.ID] = u
		s.credentials[u.ID] = hash
		delete(s.banned, email)
		out = cloneUser(u)
		return s.event(actor, ActivityAssistantCreated, u.ID, "Assistant %s created", u.FullName), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// assistant must be called with the lock held.
func (s *Store) assistant(id string) (*User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if !u.IsAssistant() {
		return nil, fmt.Errorf("%w: user %s is not an assistant", ErrInvalidInput, id)
	}
	return u, nil
}

func (s *Store) UpdateAssistantTasks(ctx context.Context, actorID, id string, tasks []permission.Capability) (*User, error) {
	normalised, err := validateTasks(tasks)
	if err != nil {
		return nil, err
	}

	var out *User
	err = s.mutate(ctx, func() (*ActivityEvent, error) {
		actor, err := s.authorizeAdmin(actorID)
		if err != nil {
			return nil, err
		}
		u, err := s.assistant(id)
		if err != nil {
			return nil, err
		}
		u.AssistantTasks = normalised
		u.Version++
		u.UpdatedAt = s.clock()
		out = cloneUser(u)
		return s.event(actor, ActivityAssistantUpdated, u.ID, "Tasks of assistant %s updated", u.FullName), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ToggleAssistantStatus enables or disables an assistant account. Presence
// (online/busy/offline) is left alone.
func (s *Store) ToggleAssistantStatus(ctx context.Context, actorID, id string, enabled bool) (*User, error) {
	var out *User
	err := s.mutate(ctx, func() (*ActivityEvent, error) {
		actor, err := s.authorizeAdmin(actorID)
		if err != nil {
			return nil, err
		}
		u, err := s.assistant(id)
		if err != nil {
			return nil, err
		}
		u.AssistantEnabled = enabled
		u.Version++
		u.UpdatedAt = s.clock()
		out = cloneUser(u)
		verb := "disabled"
		if enabled {
			verb = "enabled"
		}
		return s.event(actor, ActivityAssistantUpdated, u.ID, "Assistant %s %s", u.FullName, verb), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetAssistantAvailability changes presence. Assistants set their own; admins
// may set anyone's.
func (s *Store) SetAssistantAvailability(ctx context.Context, actorID, id string, status AssistantStatus) (*User, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown assistant status %q", ErrInvalidInput, status)
	}

	var out *User
	err := s.mutate(ctx, func() (*ActivityEvent, error) {
		actor, err := s.actor(actorID)
		if err != nil {
			return nil, err
		}
		if actor.ID != id && !permission.IsAdmin(actor) {
			return nil, fmt.Errorf("%w: cannot change another assistant's availability", ErrUnauthorized)
		}
		u, err := s.assistant(id)
		if err != nil {
			return nil, err
		}
		now := s.clock()
		u.AssistantStatus = status
		u.LastActive = &now
		u.Version++
		u.UpdatedAt = now
		out = cloneUser(u)
		return s.event(actor, ActivityAssistantStatusChanged, u.ID, "Assistant %s is now %s", u.FullName, status), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func randomCredential() (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(resetPasswordCharset)))
	for i := 0; i < resetPasswordLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(resetPasswordCharset[n.Int64()])
	}
	return b.String(), nil
}

// ResetPassword issues a fresh random credential. Only its hash is retained,
// so the returned value must be shown to the operator once.
func (s *Store) ResetPassword(ctx context.Context, actorID, id string) (string, error) {
	credential, err := randomCredential()
	if err != nil {
		return "", fmt.Errorf("failed to generate credential: %w", err)
	}
	hash, err := s.hashPassword(credential)
	if err != nil {
		return "", err
	}

	err = s.mutate(ctx, func() (*ActivityEvent, error) {
		actor, err := s.authorizeAdmin(actorID)
		if err != nil {
			return nil, err
		}
		u, ok := s.users[id]
		if !ok {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		s.credentials[u.ID] = hash
		return s.event(actor, ActivityPasswordReset, u.ID, "Password reset for %s", u.FullName), nil
	})
	if err != nil {
		return "", err
	}
	return credential, nil
}

// DeleteUser removes an account. Removing a customer is a ban: the email can
// no longer be used to sign up. Conversations assigned to a removed assistant
// return to the unassigned queue.
func (s *Store) DeleteUser(ctx context.Context, actorID, id string) error {
	return s.mutate(ctx, func() (*ActivityEvent, error) {
		actor, err := s.authorizeAdmin(actorID)
		if err != nil {
			return nil, err
		}
		if actor.ID == id {
			return nil, fmt.Errorf("%w: admins cannot delete themselves", ErrInvalidInput)
		}
		u, ok := s.users[id]
		if !ok {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		delete(s.users, id)
		delete(s.credentials, id)

		if u.IsAssistant() {
			now := s.clock()
			for _, c := range s.conversations {
				if c.AssignedTo == id && c.Status == ConversationAssigned {
					c.AssignedTo = ""
					c.Status = ConversationUnassigned
					c.Version++
					c.UpdatedAt = now
				}
			}
			return s.event(actor, ActivityAssistantDeleted, id, "Assistant %s deleted", u.FullName), nil
		}

		s.banned[u.Email] = struct{}{}
		return s.event(actor, ActivityUserBanned, id, "User %s banned and deleted", u.FullName), nil
	})
}

// VerifyPassword compares the password against the stored credential.
func (s *Store) VerifyPassword(ctx context.Context, userID, password string) (bool, error) {
	var hash []byte
	err := s.read(ctx, func() error {
		h, ok := s.credentials[userID]
		if !ok {
			return fmt.Errorf("credential for %s: %w", userID, ErrNotFound)
		}
		hash = h
		return nil
	})
	if err != nil {
		return false, err
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}
