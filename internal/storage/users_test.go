package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/permission"
)

func TestStore_SignUp(t *testing.T) {
	t.Parallel()

	t.Run("registers a customer", func(t *testing.T) {
		s, _ := newTestStore(t, Options{})
		ctx := context.Background()

		u, err := s.SignUp(ctx, SignUpInput{Email: " New@Mail.com ", FullName: "Noor", Password: "secret"})

		require.NoError(t, err)
		assert.Equal(t, "new@mail.com", u.Email)
		assert.Equal(t, permission.RoleUser, u.Role)
		assert.Equal(t, int64(1), u.Version)
		assert.Contains(t, u.AvatarURL, "name=Noor")

		ok, err := s.VerifyPassword(ctx, u.ID, "secret")
		require.NoError(t, err)
		assert.True(t, ok)

		e := lastEvent(t, s)
		assert.Equal(t, ActivityUserRegistered, e.Type)
		assert.Equal(t, u.ID, e.PerformerID)
	})

	t.Run("duplicate email", func(t *testing.T) {
		s, _ := newTestStore(t, Options{})

		_, err := s.SignUp(context.Background(), SignUpInput{Email: DemoCustomerEmail, FullName: "Dup", Password: "x"})

		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("invalid input", func(t *testing.T) {
		s, _ := newTestStore(t, Options{})
		ctx := context.Background()

		_, err := s.SignUp(ctx, SignUpInput{Email: "nope", FullName: "A", Password: "x"})
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = s.SignUp(ctx, SignUpInput{Email: "a@b.c", FullName: " ", Password: "x"})
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = s.SignUp(ctx, SignUpInput{Email: "a@b.c", FullName: "A"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestStore_CreateAssistant(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		s, _ := newTestStore(t, Options{})
		ctx := context.Background()
		tasks := []permission.Capability{permission.CapManageBanners, permission.CapLiveAgentSupport}

		created, err := s.CreateAssistant(ctx, DemoAdminID, AssistantInput{
			Email:    "helper@giftstore.com",
			FullName: "Omar Helper",
			Tasks:    tasks,
			Password: "pw",
		})
		require.NoError(t, err)

		got, err := s.GetUser(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, permission.RoleAssistant, got.Role)
		assert.True(t, got.AssistantEnabled)
		assert.Equal(t, AssistantOffline, got.AssistantStatus)
		assert.ElementsMatch(t, tasks, got.AssistantTasks)
		assert.Equal(t, avatarURL("Omar Helper"), got.AvatarURL)

		e := lastEvent(t, s)
		assert.Equal(t, ActivityAssistantCreated, e.Type)
		assert.Equal(t, DemoAdminID, e.PerformerID)
	})

	t.Run("only admins", func(t *testing.T) {
		s, _ := newTestStore(t, Options{})
		ctx := context.Background()
		before, err := s.GetUsers(ctx)
		require.NoError(t, err)

		_, err = s.CreateAssistant(ctx, DemoAssistantID, AssistantInput{Email: "x@y.z", FullName: "X", Password: "pw"})

		assert.ErrorIs(t, err, ErrUnauthorized)
		after, err := s.GetUsers(ctx)
		require.NoError(t, err)
		assert.Len(t, after, len(before))
	})

	t.Run("unknown task", func(t *testing.T) {
		s, _ := newTestStore(t, Options{})

		_, err := s.CreateAssistant(context.Background(), DemoAdminID, AssistantInput{
			Email: "x@y.z", FullName: "X", Password: "pw",
			Tasks: []permission.Capability{"fly"},
		})

		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestStore_ToggleAssistantStatus(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()

	u, err := s.ToggleAssistantStatus(ctx, DemoAdminID, DemoAssistantID, false)
	require.NoError(t, err)

	assert.False(t, u.AssistantEnabled)
	assert.Equal(t, AssistantOnline, u.AssistantStatus)
	assert.NotEmpty(t, u.AssistantTasks)
	assert.Empty(t, permission.CapabilitiesOf(u).List())
	assert.Equal(t, ActivityAssistantUpdated, lastEvent(t, s).Type)

	// disabled assistants lose their gated operations
	_, err = s.UpdateOrderStatus(ctx, DemoAssistantID, "order-1", OrderStatusChange{Status: OrderShipped})
	assert.ErrorIs(t, err, ErrUnauthorized)

	u, err = s.ToggleAssistantStatus(ctx, DemoAdminID, DemoAssistantID, true)
	require.NoError(t, err)
	assert.True(t, permission.CapabilitiesOf(u).Has(permission.CapUpdateOrders))
}

func TestStore_UpdateAssistantTasks(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()

	u, err := s.UpdateAssistantTasks(ctx, DemoAdminID, DemoAssistantID, []permission.Capability{permission.CapManageProducts, permission.CapManageProducts})
	require.NoError(t, err)
	assert.Equal(t, []permission.Capability{permission.CapManageProducts}, u.AssistantTasks)

	_, err = s.UpdateAssistantTasks(ctx, DemoAdminID, DemoCustomerID, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStore_SetAssistantAvailability(t *testing.T) {
	t.Parallel()
	s, clock := newTestStore(t, Options{})
	ctx := context.Background()
	clock.Advance(time.Hour)

	u, err := s.SetAssistantAvailability(ctx, DemoAssistantID, DemoAssistantID, AssistantBusy)
	require.NoError(t, err)
	assert.Equal(t, AssistantBusy, u.AssistantStatus)
	require.NotNil(t, u.LastActive)
	assert.Equal(t, baseTime.Add(time.Hour), *u.LastActive)
	assert.Equal(t, ActivityAssistantStatusChanged, lastEvent(t, s).Type)

	_, err = s.SetAssistantAvailability(ctx, DemoCustomerID, DemoAssistantID, AssistantOffline)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = s.SetAssistantAvailability(ctx, DemoAdminID, DemoAssistantID, "away")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStore_UpdateProfile(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	name := "Layla K."

	u, err := s.UpdateProfile(ctx, DemoCustomerID, DemoCustomerID, ProfileUpdate{FullName: &name, ExpectedVersion: 1})
	require.NoError(t, err)
	assert.Equal(t, name, u.FullName)
	assert.Equal(t, int64(2), u.Version)

	_, err = s.UpdateProfile(ctx, DemoCustomerID, DemoCustomerID, ProfileUpdate{FullName: &name, ExpectedVersion: 1})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = s.UpdateProfile(ctx, DemoCustomerID, DemoAssistantID, ProfileUpdate{FullName: &name})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = s.UpdateProfile(ctx, DemoAdminID, DemoAssistantID, ProfileUpdate{FullName: &name})
	assert.NoError(t, err)
}

func TestStore_ResetPassword(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()

	credential, err := s.ResetPassword(ctx, DemoAdminID, DemoCustomerID)
	require.NoError(t, err)
	assert.Len(t, credential, resetPasswordLength)

	ok, err := s.VerifyPassword(ctx, DemoCustomerID, credential)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.VerifyPassword(ctx, DemoCustomerID, DemoCustomerPass)
	require.NoError(t, err)
	assert.False(t, ok)

	e := lastEvent(t, s)
	assert.Equal(t, ActivityPasswordReset, e.Type)
	assert.NotContains(t, e.Description, credential)

	_, err = s.ResetPassword(ctx, DemoAssistantID, DemoCustomerID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestStore_DeleteUser(t *testing.T) {
	t.Parallel()

	t.Run("assistant", func(t *testing.T) {
		s, _ := newTestStore(t, Options{})
		ctx := context.Background()
		assignee := DemoAssistantID
		_, err := s.UpdateConversation(ctx, DemoAdminID, "conv-1", ConversationUpdate{AssignTo: &assignee})
		require.NoError(t, err)

		require.NoError(t, s.DeleteUser(ctx, DemoAdminID, DemoAssistantID))

		assert.Equal(t, ActivityAssistantDeleted, lastEvent(t, s).Type)
		_, err = s.GetUser(ctx, DemoAssistantID)
		assert.ErrorIs(t, err, ErrNotFound)
		c, err := s.GetConversation(ctx, "conv-1")
		require.NoError(t, err)
		assert.Equal(t, ConversationUnassigned, c.Status)
		assert.Empty(t, c.AssignedTo)
	})

	t.Run("customer is banned", func(t *testing.T) {
		s, _ := newTestStore(t, Options{})
		ctx := context.Background()

		require.NoError(t, s.DeleteUser(ctx, DemoAdminID, DemoCustomerID))

		e := lastEvent(t, s)
		assert.Equal(t, ActivityUserBanned, e.Type)
		assert.Contains(t, e.Description, "banned")
		_, err := s.SignUp(ctx, SignUpInput{Email: DemoCustomerEmail, FullName: "Again", Password: "x"})
		assert.ErrorIs(t, err, ErrBanned)
	})

	t.Run("guards", func(t *testing.T) {
		s, _ := newTestStore(t, Options{})
		ctx := context.Background()

		assert.ErrorIs(t, s.DeleteUser(ctx, DemoAdminID, DemoAdminID), ErrInvalidInput)
		assert.ErrorIs(t, s.DeleteUser(ctx, DemoAssistantID, DemoCustomerID), ErrUnauthorized)
		assert.ErrorIs(t, s.DeleteUser(ctx, DemoAdminID, "missing"), ErrNotFound)
	})
}

func TestStore_DemoAdmin(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()

	u, err := s.FindUserByEmail(ctx, "USER@admin.com")
	require.NoError(t, err)
	ok, err := s.VerifyPassword(ctx, u.ID, DemoAdminPassword)
	require.NoError(t, err)

	assert.True(t, ok)
	assert.Equal(t, permission.RoleAdmin, u.Role)
	assert.Nil(t, u.AssistantTasks)
	assert.ElementsMatch(t, permission.All(), permission.CapabilitiesOf(u).List())
}
