package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/permission"
)

type RequestInput struct {
	Title       string
	Description string
	Budget      decimal.Decimal
}

// RequestStatusChange moves a custom request. A non-nil Quote replaces the
// quote fields; a nil Quote leaves existing ones untouched.
type RequestStatusChange struct {
	Status          RequestStatus
	Quote           *Quote
	ExpectedVersion int64
}

func validateQuote(q *Quote) error {
	if q == nil {
		return nil
	}
	if !q.Amount.IsPositive() {
		return fmt.Errorf("%w: quote amount must be positive", ErrInvalidInput)
	}
	if strings.TrimSpace(q.Message) == "" {
		return fmt.Errorf("%w: quote message is required", ErrInvalidInput)
	}
	return nil
}

func sortRequests(requests []*CustomRequest) {
	sort.Slice(requests, func(i, j int) bool {
		return newestFirst(requests[i].CreatedAt, requests[j].CreatedAt, requests[i].ID, requests[j].ID)
	})
}

func (s *Store) CreateRequest(ctx context.Context, actorID string, in RequestInput) (*CustomRequest, error) {
	if strings.TrimSpace(in.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if in.Budget.IsNegative() {
		return nil, fmt.Errorf("%w: budget cannot be negative", ErrInvalidInput)
	}

	var out *CustomRequest
	err := s.mutate(ctx, func() (*ActivityEvent, error) {
		actor, err := s.actor(actorID)
		if err != nil {
			return nil, err
		}
		now := s.clock()
		r := &CustomRequest{
			ID:          s.newID(),
			UserID:      actor.ID,
			Title:       strings.TrimSpace(in.Title),
			Description: strings.TrimSpace(in.Description),
			Budget:      in.Budget,
			Status:      RequestNew,
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		s.requests[r.ID] = r
		out = cloneRequest(r)
		return s.event(actor, ActivityRequestCreated, r.ID, "Custom request %s submitted by %s", r.ID, actor.FullName), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetRequests(ctx context.Context) ([]*CustomRequest, error) {
	var out []*CustomRequest
	err := s.read(ctx, func() error {
		out = make([]*CustomRequest, 0, len(s.requests))
		for _, r := range s.requests {
			out = append(out, cloneRequest(r))
		}
		return nil
	})
	sortRequests(out)
	return out, err
}

func (s *Store) GetUserRequests(ctx context.Context, userID string) ([]*CustomRequest, error) {
	var out []*CustomRequest
	err := s.read(ctx, func() error {
		for _, r := range s.requests {
			if r.UserID == userID {
				out = append(out, cloneRequest(r))
			}
		}
		return nil
	})
	sortRequests(out)
	return out, err
}

func (s *Store) GetRequest(ctx context.Context, id string) (*CustomRequest, error) {
	var out *CustomRequest
	err := s.read(ctx, func() error {
		r, ok := s.requests[id]
		if !ok {
			return fmt.Errorf("request %s: %w", id, ErrNotFound)
		}
		out = cloneRequest(r)
		return nil
	})
	return out, err
}

// UpdateRequestStatus sets the status and, when supplied, the quote. Quote
// fields are never cleared by later transitions.
func (s *Store) UpdateRequestStatus(ctx context.Context, actorID, id string, change RequestStatusChange) (*CustomRequest, error) {
	status, ok := ParseRequestStatus(string(change.Status))
	if !ok {
		return nil, fmt.Errorf("%w: unknown request status %q", ErrInvalidInput, change.Status)
	}
	if err := validateQuote(change.Quote); err != nil {
		return nil, err
	}

	var out *CustomRequest
	err := s.mutate(ctx, func() (*ActivityEvent, error) {
		actor, err := s.authorize(actorID, permission.CapManageCustomRequests)
		if err != nil {
			return nil, err
		}
		r, ok := s.requests[id]
		if !ok {
			return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
		}
		if err := checkVersion(change.ExpectedVersion, r.Version); err != nil {
			return nil, err
		}
		if status == RequestQuoted && change.Quote == nil && !r.HasQuote() {
			return nil, fmt.Errorf("%w: a quote is required to mark request %s quoted", ErrInvalidInput, id)
		}

		r.Status = status
		if change.Quote != nil {
			r.QuoteAmount = change.Quote.Amount
			r.QuoteMessage = strings.TrimSpace(change.Quote.Message)
		}
		r.Version++
		r.UpdatedAt = s.clock()
		out = cloneRequest(r)

		if change.Quote != nil {
			return s.event(actor, ActivityRequestUpdated, r.ID, "Custom request %s %s with quote %s", r.ID, status, r.QuoteAmount.String()), nil
		}
		return s.event(actor, ActivityRequestUpdated, r.ID, "Custom request %s %s", r.ID, status), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
