package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/permission"
)

type OrderLine struct {
	ProductID string
	Quantity  int
}

type OrderInput struct {
	Lines           []OrderLine
	ShippingAddress string
	GiftMessage     string
}

type OrderStatusChange struct {
	Status          OrderStatus
	Note            string
	ExpectedVersion int64
}

func sortOrders(orders []*Order) {
	sort.Slice(orders, func(i, j int) bool {
		return newestFirst(orders[i].CreatedAt, orders[j].CreatedAt, orders[i].ID, orders[j].ID)
	})
}

// PlaceOrder creates an order for the acting customer. Item names, prices
// and images are snapshotted from the catalog and stock is reserved.
func (s *Store) PlaceOrder(ctx context.Context, actorID string, in OrderInput) (*Order, error) {
	if len(in.Lines) == 0 {
		return nil, fmt.Errorf("%w: order has no items", ErrInvalidInput)
	}
	wanted := make(map[string]int, len(in.Lines))
	for _, line := range in.Lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for %s must be positive", ErrInvalidInput, line.ProductID)
		}
		wanted[line.ProductID] += line.Quantity
	}

	var out *Order
	err := s.mutate(ctx, func() (*ActivityEvent, error) {
		actor, err := s.actor(actorID)
		if err != nil {
			return nil, err
		}

		for productID, qty := range wanted {
			p, ok := s.products[productID]
			if !ok {
				return nil, fmt.Errorf("product %s: %w", productID, ErrNotFound)
			}
			if p.Stock < qty {
				return nil, fmt.Errorf("%w: only %d of %s left", ErrInvalidInput, p.Stock, p.Name)
			}
		}

		now := s.clock()
		items := make([]OrderItem, 0, len(in.Lines))
		total := decimal.Zero
		for _, line := range in.Lines {
			p := s.products[line.ProductID]
			item := OrderItem{
				ProductID: p.ID,
				Name:      p.Name,
				Quantity:  line.Quantity,
				UnitPrice: p.EffectivePrice(now),
			}
			if len(p.Images) > 0 {
				item.Image = p.Images[0]
			}
			items = append(items, item)
			total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
		for productID, qty := range wanted {
			p := s.products[productID]
			p.Stock -= qty
			p.Version++
			p.UpdatedAt = now
		}

		o := &Order{
			ID:              s.newID(),
			UserID:          actor.ID,
			Items:           items,
			TotalAmount:     total,
			Status:          OrderPlaced,
			Timeline:        []TimelineEntry{{Status: OrderPlaced, Date: now, Note: "Order placed"}},
			ShippingAddress: strings.TrimSpace(in.ShippingAddress),
			GiftMessage:     in.GiftMessage,
			Version:         1,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		s.orders[o.ID] = o
		out = cloneOrder(o)
		return s.event(actor, ActivityOrderCreated, o.ID, "Order %s placed by %s for %s", o.ID, actor.FullName, total.String()), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetOrders returns every order, newest first.
func (s *Store) GetOrders(ctx context.Context) ([]*Order, error) {
	var out []*Order
	err := s.read(ctx, func() error {
		out = make([]*Order, 0, len(s.orders))
		for _, o := range s.orders {
			out = append(out, cloneOrder(o))
		}
		return nil
	})
	sortOrders(out)
	return out, err
}

func (s *Store) GetUserOrders(ctx context.Context, userID string) ([]*Order, error) {
	var out []*Order
	err := s.read(ctx, func() error {
		for _, o := range s.orders {
			if o.UserID == userID {
				out = append(out, cloneOrder(o))
			}
		}
		return nil
	})
	sortOrders(out)
	return out, err
}

func (s *Store) GetOrder(ctx context.Context, id string) (*Order, error) {
	var out *Order
	err := s.read(ctx, func() error {
		o, ok := s.orders[id]
		if !ok {
			return fmt.Errorf("order %s: %w", id, ErrNotFound)
		}
		out = cloneOrder(o)
		return nil
	})
	return out, err
}

// UpdateOrderStatus sets the status and appends exactly one timeline entry.
// Any known status may follow any other so staff can correct mistakes.
func (s *Store) UpdateOrderStatus(ctx context.Context, actorID, id string, change OrderStatusChange) (*Order, error) {
	if !change.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown order status %q", ErrInvalidInput, change.Status)
	}

	var out *Order
	err := s.mutate(ctx, func() (*ActivityEvent, error) {
		actor, err := s.authorize(actorID, permission.CapUpdateOrders)
		if err != nil {
			return nil, err
		}
		o, ok := s.orders[id]
		if !ok {
			return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
		}
		if err := checkVersion(change.ExpectedVersion, o.Version); err != nil {
			return nil, err
		}

		now := s.clock()
		// timeline dates never go backwards
		if n := len(o.Timeline); n > 0 && now.Before(o.Timeline[n-1].Date) {
			now = o.Timeline[n-1].Date
		}
		previous := o.Status
		o.Timeline = append(o.Timeline, TimelineEntry{
			Status: change.Status,
			Date:   now,
			Note:   change.Note,
		})
		o.Status = change.Status
		o.Version++
		o.UpdatedAt = now
		out = cloneOrder(o)
		return s.event(actor, ActivityOrderUpdated, o.ID, "Order %s moved from %s to %s", o.ID, previous, change.Status), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
