package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/permission"
)

const defaultActivityCapacity = 500

// ActivitySink receives every activity event after the mutation that
// produced it has been committed.
type ActivitySink interface {
	Publish(ctx context.Context, event ActivityEvent) error
}

type Options struct {
	Clock            func() time.Time
	Latency          time.Duration
	ActivityCapacity int
	Sink             ActivitySink
	Logger           *zap.Logger
	IDGenerator      func() string
	// PasswordCost is the bcrypt cost; zero means bcrypt.DefaultCost.
	PasswordCost int
}

// Store owns every collection of the application. All writes go through its
// methods; callers only ever receive copies.
type Store struct {
	mu sync.RWMutex

	users         map[string]*User
	credentials   map[string][]byte
	banned        map[string]struct{}
	products      map[string]*Product
	banners       map[string]*Banner
	orders        map[string]*Order
	requests      map[string]*CustomRequest
	conversations map[string]*Conversation
	activity      *activityLog

	clock   func() time.Time
	latency time.Duration
	newID   func() string
	sink    ActivitySink
	logger  *zap.Logger

	passwordCost int
}

func New(opts Options) *Store {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := opts.IDGenerator
	if newID == nil {
		newID = uuid.NewString
	}
	capacity := opts.ActivityCapacity
	if capacity <= 0 {
		capacity = defaultActivityCapacity
	}
	cost := opts.PasswordCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		users:         make(map[string]*User),
		credentials:   make(map[string][]byte),
		banned:        make(map[string]struct{}),
		products:      make(map[string]*Product),
		banners:       make(map[string]*Banner),
		orders:        make(map[string]*Order),
		requests:      make(map[string]*CustomRequest),
		conversations: make(map[string]*Conversation),
		activity:      newActivityLog(capacity),
		clock:         func() time.Time { return clock().UTC() },
		latency:       opts.Latency,
		newID:         newID,
		sink:          opts.Sink,
		logger:        logger,
		passwordCost:  cost,
	}
}

// wait simulates backend latency. Cancellation is only observed before the
// operation starts; once running it always completes.
func (s *Store) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.latency <= 0 {
		return nil
	}
	select {
	case <-time.After(s.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) read(ctx context.Context, fn func() error) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn()
}

// mutate runs fn under the write lock. The returned event is appended to the
// activity log while still locked and handed to the sink after unlocking.
func (s *Store) mutate(ctx context.Context, fn func() (*ActivityEvent, error)) error {
	if err := s.wait(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	event, err := fn()
	if err == nil && event != nil {
		s.activity.push(*event)
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if event != nil {
		s.publish(ctx, *event)
	}
	return nil
}

func (s *Store) publish(ctx context.Context, event ActivityEvent) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Publish(ctx, event); err != nil {
		s.logger.Warn("activity sink publish failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

// actor resolves the acting principal. Must be called with the lock held.
func (s *Store) actor(actorID string) (*User, error) {
	u, ok := s.users[actorID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown actor %q", ErrUnauthorized, actorID)
	}
	return u, nil
}

// authorize resolves the actor and requires any of the capabilities.
func (s *Store) authorize(actorID string, caps ...permission.Capability) (*User, error) {
	u, err := s.actor(actorID)
	if err != nil {
		return nil, err
	}
	if !permission.CapabilitiesOf(u).HasAny(caps...) {
		return nil, fmt.Errorf("%w: %s lacks %v", ErrUnauthorized, u.Email, caps)
	}
	return u, nil
}

func (s *Store) authorizeAdmin(actorID string) (*User, error) {
	u, err := s.actor(actorID)
	if err != nil {
		return nil, err
	}
	if !permission.IsAdmin(u) {
		return nil, fmt.Errorf("%w: %s is not an admin", ErrUnauthorized, u.Email)
	}
	return u, nil
}

func checkVersion(expected, actual int64) error {
	if expected != 0 && expected != actual {
		return fmt.Errorf("%w: expected version %d, have %d", ErrConflict, expected, actual)
	}
	return nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneUser(u *User) *User {
	c := *u
	if u.AssistantTasks != nil {
		c.AssistantTasks = make([]permission.Capability, len(u.AssistantTasks))
		copy(c.AssistantTasks, u.AssistantTasks)
	}
	c.LastActive = cloneTime(u.LastActive)
	return &c
}

func cloneProduct(p *Product) *Product {
	c := *p
	c.Category = cloneStrings(p.Category)
	c.Images = cloneStrings(p.Images)
	c.Colors = cloneStrings(p.Colors)
	c.Sizes = cloneStrings(p.Sizes)
	c.SalesStartDate = cloneTime(p.SalesStartDate)
	c.SalesEndDate = cloneTime(p.SalesEndDate)
	return &c
}

func cloneBanner(b *Banner) *Banner {
	c := *b
	return &c
}

func cloneOrder(o *Order) *Order {
	c := *o
	c.Items = make([]OrderItem, len(o.Items))
	copy(c.Items, o.Items)
	c.Timeline = make([]TimelineEntry, len(o.Timeline))
	copy(c.Timeline, o.Timeline)
	return &c
}

func cloneRequest(r *CustomRequest) *CustomRequest {
	c := *r
	return &c
}

func cloneConversation(cv *Conversation) *Conversation {
	c := *cv
	c.Messages = make([]Message, len(cv.Messages))
	copy(c.Messages, cv.Messages)
	return &c
}

// newestFirst orders by creation time descending with the id as tie breaker.
func newestFirst(aCreated, bCreated time.Time, aID, bID string) bool {
	if !aCreated.Equal(bCreated) {
		return aCreated.After(bCreated)
	}
	return aID < bID
}

func sortUsers(users []*User) {
	sort.Slice(users, func(i, j int) bool {
		return newestFirst(users[i].CreatedAt, users[j].CreatedAt, users[i].ID, users[j].ID)
	})
}
