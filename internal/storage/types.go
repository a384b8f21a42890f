package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/permission"
)

type AssistantStatus string

const (
	AssistantOnline  AssistantStatus = "online"
	AssistantBusy    AssistantStatus = "busy"
	AssistantOffline AssistantStatus = "offline"
)

func (s AssistantStatus) Valid() bool {
	switch s {
	case AssistantOnline, AssistantBusy, AssistantOffline:
		return true
	}
	return false
}

type User struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	FullName  string          `json:"full_name"`
	Phone     string          `json:"phone,omitempty"`
	AvatarURL string          `json:"avatar_url,omitempty"`
	Role      permission.Role `json:"role"`

	// Assistant fields; empty for other roles.
	AssistantTasks   []permission.Capability `json:"assistant_tasks,omitempty"`
	AssistantStatus  AssistantStatus         `json:"assistant_status,omitempty"`
	AssistantEnabled bool                    `json:"assistant_enabled"`
	LastActive       *time.Time              `json:"last_active,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) GetRole() permission.Role                   { return u.Role }
func (u *User) GetAssistantTasks() []permission.Capability { return u.AssistantTasks }
func (u *User) GetAssistantEnabled() bool                  { return u.AssistantEnabled }

func (u *User) IsAssistant() bool { return u.Role == permission.RoleAssistant }

type Product struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Price          decimal.Decimal `json:"price"`
	SalesPrice     decimal.Decimal `json:"sales_price"`
	SalesStartDate *time.Time      `json:"sales_start_date,omitempty"`
	SalesEndDate   *time.Time      `json:"sales_end_date,omitempty"`
	Category       []string        `json:"category"`
	Stock          int             `json:"stock"`
	Images         []string        `json:"images"`
	Colors         []string        `json:"colors,omitempty"`
	Sizes          []string        `json:"sizes,omitempty"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// OnSale reports whether the sale price applies at the given instant.
// Missing window bounds are unbounded.
func (p *Product) OnSale(now time.Time) bool {
	if !p.SalesPrice.IsPositive() {
		return false
	}
	if p.SalesStartDate != nil && now.Before(*p.SalesStartDate) {
		return false
	}
	if p.SalesEndDate != nil && now.After(*p.SalesEndDate) {
		return false
	}
	return true
}

// EffectivePrice is the price a customer pays at the given instant.
func (p *Product) EffectivePrice(now time.Time) decimal.Decimal {
	if p.OnSale(now) {
		return p.SalesPrice
	}
	return p.Price
}

// InCategory reports whether the product is tagged with the category.
func (p *Product) InCategory(category string) bool {
	for _, c := range p.Category {
		if c == category {
			return true
		}
	}
	return false
}

type Banner struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Subtitle  string    `json:"subtitle,omitempty"`
	ImageURL  string    `json:"image_url"`
	Link      string    `json:"link,omitempty"`
	IsActive  bool      `json:"is_active"`
	SortOrder int       `json:"sort_order"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OrderStatus string

const (
	OrderPlaced     OrderStatus = "placed"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPlaced, OrderConfirmed, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Image     string          `json:"image,omitempty"`
}

type TimelineEntry struct {
	Status OrderStatus `json:"status"`
	Date   time.Time   `json:"date"`
	Note   string      `json:"note,omitempty"`
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Items           []OrderItem     `json:"items"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          OrderStatus     `json:"status"`
	Timeline        []TimelineEntry `json:"timeline"`
	ShippingAddress string          `json:"shipping_address,omitempty"`
	GiftMessage     string          `json:"gift_message,omitempty"`
	Version         int64           `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type RequestStatus string

const (
	RequestNew      RequestStatus = "new"
	RequestInReview RequestStatus = "in_review"
	RequestQuoted   RequestStatus = "quoted"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
	RequestPaid     RequestStatus = "paid"
	RequestClosed   RequestStatus = "closed"
)

// ParseRequestStatus maps raw input onto the canonical request states.
// The legacy "resolved" value is folded into closed.
func ParseRequestStatus(raw string) (RequestStatus, bool) {
	s := RequestStatus(raw)
	switch s {
	case RequestNew, RequestInReview, RequestQuoted, RequestAccepted, RequestRejected, RequestPaid, RequestClosed:
		return s, true
	case "resolved":
		return RequestClosed, true
	}
	return "", false
}

// Quote is a staff-provided price with an accompanying message. The two
// fields are only ever set together.
type Quote struct {
	Amount  decimal.Decimal `json:"amount"`
	Message string          `json:"message"`
}

type CustomRequest struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Title        string          `json:"title,omitempty"`
	Description  string          `json:"description"`
	Budget       decimal.Decimal `json:"budget"`
	Status       RequestStatus   `json:"status"`
	QuoteAmount  decimal.Decimal `json:"quote_amount"`
	QuoteMessage string          `json:"quote_message,omitempty"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// HasQuote reports whether a quote has ever been attached.
func (r *CustomRequest) HasQuote() bool {
	return r.QuoteMessage != "" || !r.QuoteAmount.IsZero()
}

type ConversationStatus string

const (
	ConversationUnassigned ConversationStatus = "unassigned"
	ConversationAssigned   ConversationStatus = "assigned"
	ConversationResolved   ConversationStatus = "resolved"
)

func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationUnassigned, ConversationAssigned, ConversationResolved:
		return true
	}
	return false
}

type Message struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Conversation struct {
	ID            string             `json:"id"`
	UserID        string             `json:"user_id"`
	Messages      []Message          `json:"messages"`
	Status        ConversationStatus `json:"status"`
	AssignedTo    string             `json:"assigned_to,omitempty"`
	LastMessageAt time.Time          `json:"last_message_at"`
	Version       int64              `json:"version"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

type ActivityType string

const (
	ActivityUserRegistered         ActivityType = "user_registered"
	ActivityUserUpdated            ActivityType = "user_updated"
	ActivityUserBanned             ActivityType = "user_banned"
	ActivityAssistantCreated       ActivityType = "assistant_created"
	ActivityAssistantUpdated       ActivityType = "assistant_updated"
	ActivityAssistantStatusChanged ActivityType = "assistant_status_changed"
	ActivityAssistantDeleted       ActivityType = "assistant_deleted"
	ActivityPasswordReset          ActivityType = "password_reset"
	ActivityProductCreated         ActivityType = "product_created"
	ActivityProductUpdated         ActivityType = "product_updated"
	ActivityProductDeleted         ActivityType = "product_deleted"
	ActivityBannerCreated          ActivityType = "banner_created"
	ActivityBannerUpdated          ActivityType = "banner_updated"
	ActivityBannerDeleted          ActivityType = "banner_deleted"
	ActivityOrderCreated           ActivityType = "order_created"
	ActivityOrderUpdated           ActivityType = "order_updated"
	ActivityRequestCreated         ActivityType = "request_created"
	ActivityRequestUpdated         ActivityType = "request_updated"
	ActivitySupportEscalated       ActivityType = "support_escalated"
	ActivitySupportMessage         ActivityType = "support_message"
	ActivitySupportAssigned        ActivityType = "support_assigned"
	ActivitySupportResolved        ActivityType = "support_resolved"
)

// ActivityEvent is an immutable audit record.
type ActivityEvent struct {
	ID            string       `json:"id"`
	Type          ActivityType `json:"type"`
	Description   string       `json:"description"`
	PerformerID   string       `json:"performer_id,omitempty"`
	PerformerName string       `json:"performer_name,omitempty"`
	EntityID      string       `json:"entity_id,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

type KPIs struct {
	TotalOrders        int             `json:"total_orders"`
	Revenue            decimal.Decimal `json:"revenue"`
	PendingEscalations int             `json:"pending_escalations"`
	PendingRequests    int             `json:"pending_requests"`
	TotalBanners       int             `json:"total_banners"`
	TotalProducts      int             `json:"total_products"`
	TotalUsers         int             `json:"total_users"`
	OnlineAssistants   int             `json:"online_assistants"`
	BusyAssistants     int             `json:"busy_assistants"`
	OfflineAssistants  int             `json:"offline_assistants"`
}
