package storage

import (
	"context"

	"github.com/shopspring/decimal"
)

// GetKPIs aggregates the dashboard figures from the current collections.
func (s *Store) GetKPIs(ctx context.Context) (KPIs, error) {
	var k KPIs
	err := s.read(ctx, func() error {
		k.TotalOrders = len(s.orders)
		k.Revenue = decimal.Zero
		for _, o := range s.orders {
			k.Revenue = k.Revenue.Add(o.TotalAmount)
		}
		for _, c := range s.conversations {
			if c.Status == ConversationUnassigned {
				k.PendingEscalations++
			}
		}
		for _, r := range s.requests {
			if r.Status == RequestNew {
				k.PendingRequests++
			}
		}
		k.TotalBanners = len(s.banners)
		k.TotalProducts = len(s.products)
		k.TotalUsers = len(s.users)
		for _, u := range s.users {
			if !u.IsAssistant() {
				continue
			}
			switch u.AssistantStatus {
			case AssistantOnline:
				k.OnlineAssistants++
			case AssistantBusy:
				k.BusyAssistants++
			default:
				k.OfflineAssistants++
			}
		}
		return nil
	})
	return k, err
}
