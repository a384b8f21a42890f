package storage

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/permission"
)

func TestParseRequestStatus(t *testing.T) {
	t.Parallel()

	got, ok := ParseRequestStatus("resolved")
	assert.True(t, ok)
	assert.Equal(t, RequestClosed, got)

	got, ok = ParseRequestStatus("in_review")
	assert.True(t, ok)
	assert.Equal(t, RequestInReview, got)

	_, ok = ParseRequestStatus("pending")
	assert.False(t, ok)
}

func TestStore_UpdateRequestStatus(t *testing.T) {
	t.Parallel()

	t.Run("quote the seeded request", func(t *testing.T) {
		s, _ := newTestStore(t, Options{})
		ctx := context.Background()

		r, err := s.UpdateRequestStatus(ctx, DemoAdminID, "req-1", RequestStatusChange{
			Status: RequestQuoted,
			Quote:  &Quote{Amount: decimal.NewFromInt(100000), Message: "ok"},
		})

		require.NoError(t, err)
		assert.Equal(t, RequestQuoted, r.Status)
		assert.True(t, decimal.NewFromInt(100000).Equal(r.QuoteAmount))
		assert.Equal(t, "ok", r.QuoteMessage)
		assert.Equal(t, ActivityRequestUpdated, lastEvent(t, s).Type)
	})

	t.Run("quote survives rejection", func(t *testing.T) {
		s, _ := newTestStore(t, Options{})
		ctx := context.Background()
		_, err := s.UpdateRequestStatus(ctx, DemoAdminID, "req-1", RequestStatusChange{
			Status: RequestQuoted,
			Quote:  &Quote{Amount: decimal.NewFromInt(500), Message: "engraving included"},
		})
		require.NoError(t, err)

		r, err := s.UpdateRequestStatus(ctx, DemoAdminID, "req-1", RequestStatusChange{Status: RequestRejected})

		require.NoError(t, err)
		assert.Equal(t, RequestRejected, r.Status)
		assert.True(t, decimal.NewFromInt(500).Equal(r.QuoteAmount))
		assert.Equal(t, "engraving included", r.QuoteMessage)
	})

	t.Run("quoted needs a quote", func(t *testing.T) {
		s, _ := newTestStore(t, Options{})

		_, err := s.UpdateRequestStatus(context.Background(), DemoAdminID, "req-1", RequestStatusChange{Status: RequestQuoted})

		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("partial quote is rejected", func(t *testing.T) {
		s, _ := newTestStore(t, Options{})
		ctx := context.Background()

		_, err := s.UpdateRequestStatus(ctx, DemoAdminID, "req-1", RequestStatusChange{
			Status: RequestQuoted,
			Quote:  &Quote{Amount: decimal.NewFromInt(10)},
		})
		assert.ErrorIs(t, err, ErrInvalidInput)

		r, err := s.GetRequest(ctx, "req-1")
		require.NoError(t, err)
		assert.Equal(t, RequestNew, r.Status)
		assert.False(t, r.HasQuote())
	})

	t.Run("legacy resolved closes", func(t *testing.T) {
		s, _ := newTestStore(t, Options{})

		r, err := s.UpdateRequestStatus(context.Background(), DemoAdminID, "req-1", RequestStatusChange{Status: "resolved"})

		require.NoError(t, err)
		assert.Equal(t, RequestClosed, r.Status)
	})

	t.Run("requires manage_custom_requests", func(t *testing.T) {
		s, _ := newTestStore(t, Options{})
		ctx := context.Background()

		_, err := s.UpdateRequestStatus(ctx, DemoAssistantID, "req-1", RequestStatusChange{Status: RequestInReview})
		assert.ErrorIs(t, err, ErrUnauthorized)

		_, err = s.UpdateAssistantTasks(ctx, DemoAdminID, DemoAssistantID, []permission.Capability{permission.CapManageCustomRequests})
		require.NoError(t, err)
		_, err = s.UpdateRequestStatus(ctx, DemoAssistantID, "req-1", RequestStatusChange{Status: RequestInReview})
		assert.NoError(t, err)
	})
}

func TestStore_CreateRequest(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()

	r, err := s.CreateRequest(ctx, DemoCustomerID, RequestInput{
		Title:       "Custom hamper",
		Description: "Dates, coffee and a card",
		Budget:      decimal.NewFromInt(300),
	})
	require.NoError(t, err)
	assert.Equal(t, RequestNew, r.Status)
	assert.Equal(t, ActivityRequestCreated, lastEvent(t, s).Type)

	mine, err := s.GetUserRequests(ctx, DemoCustomerID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	_, err = s.CreateRequest(ctx, DemoCustomerID, RequestInput{Description: " "})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.CreateRequest(ctx, DemoCustomerID, RequestInput{Description: "x", Budget: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
