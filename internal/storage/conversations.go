package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/permission"
)

// ConversationUpdate is the typed replacement for a free-form merge. Setting
// AssignTo implies the assigned status unless Status says otherwise.
type ConversationUpdate struct {
	AssignTo        *string
	Status          *ConversationStatus
	ExpectedVersion int64
}

func sortConversations(conversations []*Conversation) {
	sort.Slice(conversations, func(i, j int) bool {
		a, b := conversations[i], conversations[j]
		if !a.LastMessageAt.Equal(b.LastMessageAt) {
			return a.LastMessageAt.After(b.LastMessageAt)
		}
		return a.ID < b.ID
	})
}

// appendMessage must be called with the lock held. It keeps LastMessageAt
// equal to the newest message's timestamp.
func (s *Store) appendMessage(c *Conversation, senderID, text string) Message {
	now := s.clock()
	if n := len(c.Messages); n > 0 && now.Before(c.Messages[n-1].CreatedAt) {
		now = c.Messages[n-1].CreatedAt
	}
	m := Message{
		ID:        s.newID(),
		SenderID:  senderID,
		Text:      text,
		CreatedAt: now,
	}
	c.Messages = append(c.Messages, m)
	c.LastMessageAt = m.CreatedAt
	c.Version++
	c.UpdatedAt = now
	return m
}

// StartConversation opens a support thread for the acting customer. New
// threads wait in the unassigned queue.
func (s *Store) StartConversation(ctx context.Context, actorID, text string) (*Conversation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message text is required", ErrInvalidInput)
	}

	var out *Conversation
	err := s.mutate(ctx, func() (*ActivityEvent, error) {
		actor, err := s.actor(actorID)
		if err != nil {
			return nil, err
		}
		now := s.clock()
		c := &Conversation{
			ID:        s.newID(),
			UserID:    actor.ID,
			Status:    ConversationUnassigned,
			CreatedAt: now,
		}
		s.appendMessage(c, actor.ID, text)
		c.Version = 1
		s.conversations[c.ID] = c
		out = cloneConversation(c)
		return s.event(actor, ActivitySupportEscalated, c.ID, "%s requested live support", actor.FullName), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetConversations returns every thread, most recently active first.
func (s *Store) GetConversations(ctx context.Context) ([]*Conversation, error) {
	var out []*Conversation
	err := s.read(ctx, func() error {
		out = make([]*Conversation, 0, len(s.conversations))
		for _, c := range s.conversations {
			out = append(out, cloneConversation(c))
		}
		return nil
	})
	sortConversations(out)
	return out, err
}

func (s *Store) GetUserConversations(ctx context.Context, userID string) ([]*Conversation, error) {
	var out []*Conversation
	err := s.read(ctx, func() error {
		for _, c := range s.conversations {
			if c.UserID == userID {
				out = append(out, cloneConversation(c))
			}
		}
		return nil
	})
	sortConversations(out)
	return out, err
}

func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var out *Conversation
	err := s.read(ctx, func() error {
		c, ok := s.conversations[id]
		if !ok {
			return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
		}
		out = cloneConversation(c)
		return nil
	})
	return out, err
}

// AddMessage appends a message sent by the actor. The owning customer and
// support staff may post.
func (s *Store) AddMessage(ctx context.Context, actorID, conversationID, text string) (*Conversation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message text is required", ErrInvalidInput)
	}

	var out *Conversation
	err := s.mutate(ctx, func() (*ActivityEvent, error) {
		actor, err := s.actor(actorID)
		if err != nil {
			return nil, err
		}
		c, ok := s.conversations[conversationID]
		if !ok {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
		}
		if c.UserID != actor.ID && !permission.Has(actor, permission.CapLiveAgentSupport) {
			return nil, fmt.Errorf("%w: %s cannot post in conversation %s", ErrUnauthorized, actor.Email, c.ID)
		}
		s.appendMessage(c, actor.ID, text)
		out = cloneConversation(c)
		return s.event(actor, ActivitySupportMessage, c.ID, "%s replied in conversation %s", actor.FullName, c.ID), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateConversation assigns, resolves or re-queues a thread.
func (s *Store) UpdateConversation(ctx context.Context, actorID, id string, upd ConversationUpdate) (*Conversation, error) {
	if upd.AssignTo == nil && upd.Status == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown conversation status %q", ErrInvalidInput, *upd.Status)
	}

	var out *Conversation
	err := s.mutate(ctx, func() (*ActivityEvent, error) {
		actor, err := s.authorize(actorID, permission.CapLiveAgentSupport)
		if err != nil {
			return nil, err
		}
		c, ok := s.conversations[id]
		if !ok {
			return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
		}
		if err := checkVersion(upd.ExpectedVersion, c.Version); err != nil {
			return nil, err
		}

		assignee := c.AssignedTo
		status := c.Status
		if upd.AssignTo != nil {
			assignee = strings.TrimSpace(*upd.AssignTo)
			if assignee != "" {
				staff, ok := s.users[assignee]
				if !ok {
					return nil, fmt.Errorf("user %s: %w", assignee, ErrNotFound)
				}
				if !permission.Has(staff, permission.CapLiveAgentSupport) {
					return nil, fmt.Errorf("%w: %s does not handle live support", ErrInvalidInput, staff.Email)
				}
				status = ConversationAssigned
			} else {
				status = ConversationUnassigned
			}
		}
		if upd.Status != nil {
			status = *upd.Status
		}
		switch status {
		case ConversationAssigned:
			if assignee == "" {
				return nil, fmt.Errorf("%w: assigned conversation needs an assignee", ErrInvalidInput)
			}
		case ConversationUnassigned:
			assignee = ""
		}

		c.AssignedTo = assignee
		c.Status = status
		c.Version++
		c.UpdatedAt = s.clock()
		out = cloneConversation(c)

		switch status {
		case ConversationAssigned:
			name := assignee
			if staff, ok := s.users[assignee]; ok {
				name = staff.FullName
			}
			return s.event(actor, ActivitySupportAssigned, c.ID, "Conversation %s assigned to %s", c.ID, name), nil
		case ConversationResolved:
			return s.event(actor, ActivitySupportResolved, c.ID, "Conversation %s resolved", c.ID), nil
		default:
			return s.event(actor, ActivitySupportEscalated, c.ID, "Conversation %s returned to the queue", c.ID), nil
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
