package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/permission"
)

type ProductInput struct {
	Name           string
	Description    string
	Price          decimal.Decimal
	SalesPrice     decimal.Decimal
	SalesStartDate *time.Time
	SalesEndDate   *time.Time
	Category       []string
	Stock          int
	Images         []string
	Colors         []string
	Sizes          []string
}

// ProductUpdate lists the fields to change; nil fields are kept.
type ProductUpdate struct {
	Name            *string
	Description     *string
	Price           *decimal.Decimal
	SalesPrice      *decimal.Decimal
	SalesStartDate  *time.Time
	SalesEndDate    *time.Time
	ClearSaleWindow bool
	Category        []string
	Stock           *int
	Images          []string
	Colors          []string
	Sizes           []string
	ExpectedVersion int64
}

type ProductFilter struct {
	Category   string
	OnSaleOnly bool
	Query      string
}

// normaliseCategories trims and deduplicates category names, keeping order.
func normaliseCategories(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func validateProduct(p *Product) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: product name is required", ErrInvalidInput)
	case len(p.Category) == 0:
		return fmt.Errorf("%w: product needs at least one category", ErrInvalidInput)
	case p.Stock < 0:
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalidInput)
	case p.Price.IsNegative() || p.SalesPrice.IsNegative():
		return fmt.Errorf("%w: prices cannot be negative", ErrInvalidInput)
	case len(p.Images) == 0:
		return fmt.Errorf("%w: product needs at least one image", ErrInvalidInput)
	case p.SalesStartDate != nil && p.SalesEndDate != nil && p.SalesEndDate.Before(*p.SalesStartDate):
		return fmt.Errorf("%w: sale ends before it starts", ErrInvalidInput)
	}
	return nil
}

// GetProducts lists the catalog, newest first, narrowed by the filter.
func (s *Store) GetProducts(ctx context.Context, filter ProductFilter) ([]*Product, error) {
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	var out []*Product
	err := s.read(ctx, func() error {
		now := s.clock()
		for _, p := range s.products {
			if filter.Category != "" && !p.InCategory(filter.Category) {
				continue
			}
			if filter.OnSaleOnly && !p.OnSale(now) {
				continue
			}
			if query != "" && !strings.Contains(strings.ToLower(p.Name), query) {
				continue
			}
			out = append(out, cloneProduct(p))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, err
}

func (s *Store) GetProduct(ctx context.Context, id string) (*Product, error) {
	var out *Product
	err := s.read(ctx, func() error {
		p, ok := s.products[id]
		if !ok {
			return fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		out = cloneProduct(p)
		return nil
	})
	return out, err
}

func (s *Store) CreateProduct(ctx context.Context, actorID string, in ProductInput) (*Product, error) {
	p := &Product{
		Name:           strings.TrimSpace(in.Name),
		Description:    in.Description,
		Price:          in.Price,
		SalesPrice:     in.SalesPrice,
		SalesStartDate: cloneTime(in.SalesStartDate),
		SalesEndDate:   cloneTime(in.SalesEndDate),
		Category:       normaliseCategories(in.Category),
		Stock:          in.Stock,
		Images:         cloneStrings(in.Images),
		Colors:         cloneStrings(in.Colors),
		Sizes:          cloneStrings(in.Sizes),
		Version:        1,
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	var out *Product
	err := s.mutate(ctx, func() (*ActivityEvent, error) {
		actor, err := s.authorize(actorID, permission.CapAddProducts, permission.CapManageProducts)
		if err != nil {
			return nil, err
		}
		now := s.clock()
		p.ID = s.newID()
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
		out = cloneProduct(p)
		return s.event(actor, ActivityProductCreated, p.ID, "Product %s created", p.Name), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateProduct(ctx context.Context, actorID, id string, upd ProductUpdate) (*Product, error) {
	var out *Product
	err := s.mutate(ctx, func() (*ActivityEvent, error) {
		actor, err := s.authorize(actorID, permission.CapManageProducts)
		if err != nil {
			return nil, err
		}
		current, ok := s.products[id]
		if !ok {
			return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		if err := checkVersion(upd.ExpectedVersion, current.Version); err != nil {
			return nil, err
		}

		next := cloneProduct(current)
		if upd.Name != nil {
			next.Name = strings.TrimSpace(*upd.Name)
		}
		if upd.Description != nil {
			next.Description = *upd.Description
		}
		if upd.Price != nil {
			next.Price = *upd.Price
		}
		if upd.SalesPrice != nil {
			next.SalesPrice = *upd.SalesPrice
		}
		if upd.ClearSaleWindow {
			next.SalesStartDate = nil
			next.SalesEndDate = nil
		}
		if upd.SalesStartDate != nil {
			next.SalesStartDate = cloneTime(upd.SalesStartDate)
		}
		if upd.SalesEndDate != nil {
			next.SalesEndDate = cloneTime(upd.SalesEndDate)
		}
		if upd.Category != nil {
			next.Category = normaliseCategories(upd.Category)
		}
		if upd.Stock != nil {
			next.Stock = *upd.Stock
		}
		if upd.Images != nil {
			next.Images = cloneStrings(upd.Images)
		}
		if upd.Colors != nil {
			next.Colors = cloneStrings(upd.Colors)
		}
		if upd.Sizes != nil {
			next.Sizes = cloneStrings(upd.Sizes)
		}
		if err := validateProduct(next); err != nil {
			return nil, err
		}
		next.Version++
		next.UpdatedAt = s.clock()
		s.products[id] = next
		out = cloneProduct(next)
		return s.event(actor, ActivityProductUpdated, id, "Product %s updated", next.Name), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DeleteProduct(ctx context.Context, actorID, id string) error {
	return s.mutate(ctx, func() (*ActivityEvent, error) {
		actor, err := s.authorize(actorID, permission.CapManageProducts)
		if err != nil {
			return nil, err
		}
		p, ok := s.products[id]
		if !ok {
			return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		delete(s.products, id)
		return s.event(actor, ActivityProductDeleted, id, "Product %s deleted", p.Name), nil
	})
}
