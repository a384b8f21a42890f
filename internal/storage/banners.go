package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/permission"
)

type BannerInput struct {
	Title     string
	Subtitle  string
	ImageURL  string
	Link      string
	IsActive  bool
	SortOrder int
}

type BannerUpdate struct {
	Title           *string
	Subtitle        *string
	ImageURL        *string
	Link            *string
	IsActive        *bool
	SortOrder       *int
	ExpectedVersion int64
}

func validateBanner(b *Banner) error {
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("%w: banner title is required", ErrInvalidInput)
	}
	if strings.TrimSpace(b.ImageURL) == "" {
		return fmt.Errorf("%w: banner image is required", ErrInvalidInput)
	}
	return nil
}

func sortBanners(banners []*Banner) {
	sort.Slice(banners, func(i, j int) bool {
		if banners[i].SortOrder != banners[j].SortOrder {
			return banners[i].SortOrder < banners[j].SortOrder
		}
		if !banners[i].CreatedAt.Equal(banners[j].CreatedAt) {
			return banners[i].CreatedAt.Before(banners[j].CreatedAt)
		}
		return banners[i].ID < banners[j].ID
	})
}

func (s *Store) listBanners(ctx context.Context, activeOnly bool) ([]*Banner, error) {
	var out []*Banner
	err := s.read(ctx, func() error {
		for _, b := range s.banners {
			if activeOnly && !b.IsActive {
				continue
			}
			out = append(out, cloneBanner(b))
		}
		return nil
	})
	sortBanners(out)
	return out, err
}

// GetBanners returns every banner ordered by sort order.
func (s *Store) GetBanners(ctx context.Context) ([]*Banner, error) {
	return s.listBanners(ctx, false)
}

// GetActiveBanners returns the banners eligible for display.
func (s *Store) GetActiveBanners(ctx context.Context) ([]*Banner, error) {
	return s.listBanners(ctx, true)
}

func (s *Store) CreateBanner(ctx context.Context, actorID string, in BannerInput) (*Banner, error) {
	b := &Banner{
		Title:     strings.TrimSpace(in.Title),
		Subtitle:  in.Subtitle,
		ImageURL:  strings.TrimSpace(in.ImageURL),
		Link:      in.Link,
		IsActive:  in.IsActive,
		SortOrder: in.SortOrder,
		Version:   1,
	}
	if err := validateBanner(b); err != nil {
		return nil, err
	}

	var out *Banner
	err := s.mutate(ctx, func() (*ActivityEvent, error) {
		actor, err := s.authorize(actorID, permission.CapManageBanners)
		if err != nil {
			return nil, err
		}
		now := s.clock()
		b.ID = s.newID()
		b.CreatedAt = now
		b.UpdatedAt = now
		s.banners[b.ID] = b
		out = cloneBanner(b)
		return s.event(actor, ActivityBannerCreated, b.ID, "Banner %s created", b.Title), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateBanner(ctx context.Context, actorID, id string, upd BannerUpdate) (*Banner, error) {
	var out *Banner
	err := s.mutate(ctx, func() (*ActivityEvent, error) {
		actor, err := s.authorize(actorID, permission.CapManageBanners)
		if err != nil {
			return nil, err
		}
		current, ok := s.banners[id]
		if !ok {
			return nil, fmt.Errorf("banner %s: %w", id, ErrNotFound)
		}
		if err := checkVersion(upd.ExpectedVersion, current.Version); err != nil {
			return nil, err
		}
		next := cloneBanner(current)
		if upd.Title != nil {
			next.Title = strings.TrimSpace(*upd.Title)
		}
		if upd.Subtitle != nil {
			next.Subtitle = *upd.Subtitle
		}
		if upd.ImageURL != nil {
			next.ImageURL = strings.TrimSpace(*upd.ImageURL)
		}
		if upd.Link != nil {
			next.Link = *upd.Link
		}
		if upd.IsActive != nil {
			next.IsActive = *upd.IsActive
		}
		if upd.SortOrder != nil {
			next.SortOrder = *upd.SortOrder
		}
		if err := validateBanner(next); err != nil {
			return nil, err
		}
		next.Version++
		next.UpdatedAt = s.clock()
		s.banners[id] = next
		out = cloneBanner(next)
		return s.event(actor, ActivityBannerUpdated, id, "Banner %s updated", next.Title), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DeleteBanner(ctx context.Context, actorID, id string) error {
	return s.mutate(ctx, func() (*ActivityEvent, error) {
		actor, err := s.authorize(actorID, permission.CapManageBanners)
		if err != nil {
			return nil, err
		}
		b, ok := s.banners[id]
		if !ok {
			return nil, fmt.Errorf("banner %s: %w", id, ErrNotFound)
		}
		delete(s.banners, id)
		return s.event(actor, ActivityBannerDeleted, id, "Banner %s deleted", b.Title), nil
	})
}
