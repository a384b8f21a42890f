package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/permission"
)

// Demo accounts created by Seed.
const (
	DemoAdminID        = "admin-1"
	DemoAdminEmail     = "user@admin.com"
	DemoAdminPassword  = "Admin"
	DemoAssistantID    = "assistant-1"
	DemoAssistantEmail = "assistant@giftstore.com"
	DemoAssistantPass  = "Assistant"
	DemoCustomerID     = "user-1"
	DemoCustomerEmail  = "customer@giftstore.com"
	DemoCustomerPass   = "Customer"
)

type seedAccount struct {
	user     *User
	password string
}

// Seed loads the demo fixtures into an empty store. Fixtures use readable
// ids and do not produce activity events.
func (s *Store) Seed(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := s.clock()
	day := 24 * time.Hour

	accounts := []seedAccount{
		{
			user: &User{
				ID:        DemoAdminID,
				Email:     DemoAdminEmail,
				FullName:  "Admin",
				AvatarURL: avatarURL("Admin"),
				Role:      permission.RoleAdmin,
			},
			password: DemoAdminPassword,
		},
		{
			user: &User{
				ID:        DemoAssistantID,
				Email:     DemoAssistantEmail,
				FullName:  "Sara Assistant",
				AvatarURL: avatarURL("Sara Assistant"),
				Role:      permission.RoleAssistant,
				AssistantTasks: []permission.Capability{
					permission.CapLiveAgentSupport,
					permission.CapUpdateOrders,
				},
				AssistantStatus:  AssistantOnline,
				AssistantEnabled: true,
				LastActive:       &now,
			},
			password: DemoAssistantPass,
		},
		{
			user: &User{
				ID:        DemoCustomerID,
				Email:     DemoCustomerEmail,
				FullName:  "Layla Customer",
				Phone:     "+971500000000",
				AvatarURL: avatarURL("Layla Customer"),
				Role:      permission.RoleUser,
			},
			password: DemoCustomerPass,
		},
	}

	hashes := make([][]byte, len(accounts))
	for i, a := range accounts {
		h, err := s.hashPassword(a.password)
		if err != nil {
			return fmt.Errorf("seed %s: %w", a.user.Email, err)
		}
		hashes[i] = h
	}

	saleStart := now.Add(-day)
	saleEnd := now.Add(7 * day)
	products := []*Product{
		{
			ID:          "prod-1",
			Name:        "Rose Gold Watch",
			Description: "Minimalist watch with a mesh strap",
			Price:       decimal.NewFromInt(850),
			Category:    []string{"accessories", "for-her"},
			Stock:       12,
			Images:      []string{"https://images.giftstore.example/watch.jpg"},
			Colors:      []string{"rose gold", "silver"},
		},
		{
			ID:             "prod-2",
			Name:           "Oud Perfume Set",
			Description:    "Three 50ml bottles in a wooden box",
			Price:          decimal.NewFromInt(1200),
			SalesPrice:     decimal.NewFromInt(990),
			SalesStartDate: &saleStart,
			SalesEndDate:   &saleEnd,
			Category:       []string{"fragrance"},
			Stock:          5,
			Images:         []string{"https://images.giftstore.example/oud.jpg"},
		},
		{
			ID:          "prod-3",
			Name:        "Flower Box",
			Description: "Seasonal flowers arranged in a hat box",
			Price:       decimal.NewFromInt(320),
			Category:    []string{"flowers", "for-her"},
			Stock:       30,
			Images:      []string{"https://images.giftstore.example/flowers.jpg"},
			Sizes:       []string{"S", "M", "L"},
		},
	}

	banners := []*Banner{
		{
			ID:        "banner-1",
			Title:     "Eid Collection",
			Subtitle:  "Gifts for the whole family",
			ImageURL:  "https://images.giftstore.example/banner-eid.jpg",
			Link:      "/products?category=for-her",
			IsActive:  true,
			SortOrder: 1,
		},
		{
			ID:        "banner-2",
			Title:     "Fragrance Week",
			ImageURL:  "https://images.giftstore.example/banner-oud.jpg",
			IsActive:  false,
			SortOrder: 2,
		},
	}

	placed := now.Add(-2 * day)
	order := &Order{
		ID:     "order-1",
		UserID: DemoCustomerID,
		Items: []OrderItem{{
			ProductID: "prod-3",
			Name:      "Flower Box",
			Quantity:  2,
			UnitPrice: decimal.NewFromInt(320),
			Image:     "https://images.giftstore.example/flowers.jpg",
		}},
		TotalAmount: decimal.NewFromInt(640),
		Status:      OrderConfirmed,
		Timeline: []TimelineEntry{
			{Status: OrderPlaced, Date: placed, Note: "Order placed"},
			{Status: OrderConfirmed, Date: placed.Add(time.Hour), Note: "Payment received"},
		},
		ShippingAddress: "Villa 12, Jumeirah, Dubai",
		GiftMessage:     "Happy birthday!",
		CreatedAt:       placed,
	}

	request := &CustomRequest{
		ID:          "req-1",
		UserID:      DemoCustomerID,
		Title:       "Engraved pen",
		Description: "Fountain pen engraved with initials, gift wrapped",
		Budget:      decimal.NewFromInt(150000),
		Status:      RequestNew,
		CreatedAt:   now.Add(-day),
	}

	opened := now.Add(-time.Hour)
	conversation := &Conversation{
		ID:     "conv-1",
		UserID: DemoCustomerID,
		Messages: []Message{{
			ID:        "msg-1",
			SenderID:  DemoCustomerID,
			Text:      "Can I change the delivery date of my order?",
			CreatedAt: opened,
		}},
		Status:        ConversationUnassigned,
		LastMessageAt: opened,
		CreatedAt:     opened,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, a := range accounts {
		u := a.user
		u.Version = 1
		u.CreatedAt = now
		u.UpdatedAt = now
		s.users[u.ID] = u
		s.credentials[u.ID] = hashes[i]
	}
	for _, p := range products {
		p.Version = 1
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}
	for _, b := range banners {
		b.Version = 1
		b.CreatedAt = now
		b.UpdatedAt = now
		s.banners[b.ID] = b
	}
	order.Version = 1
	order.UpdatedAt = order.Timeline[len(order.Timeline)-1].Date
	s.orders[order.ID] = order
	request.Version = 1
	request.UpdatedAt = request.CreatedAt
	s.requests[request.ID] = request
	conversation.Version = 1
	conversation.UpdatedAt = opened
	s.conversations[conversation.ID] = conversation
	return nil
}
