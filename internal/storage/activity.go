package storage

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// activityLog is a fixed-capacity ring buffer of events. Once full, the
// oldest event is overwritten.
type activityLog struct {
	buf   []ActivityEvent
	start int
	size  int
}

func newActivityLog(capacity int) *activityLog {
	return &activityLog{buf: make([]ActivityEvent, capacity)}
}

func (l *activityLog) push(e ActivityEvent) {
	if len(l.buf) == 0 {
		return
	}
	idx := (l.start + l.size) % len(l.buf)
	if l.size == len(l.buf) {
		l.buf[l.start] = e
		l.start = (l.start + 1) % len(l.buf)
		return
	}
	l.buf[idx] = e
	l.size++
}

// newest returns up to limit events, most recent first. limit <= 0 means all.
func (l *activityLog) newest(limit int) []ActivityEvent {
	n := l.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]ActivityEvent, 0, n)
	for i := 0; i < n; i++ {
		idx := (l.start + l.size - 1 - i) % len(l.buf)
		out = append(out, l.buf[idx])
	}
	return out
}

// event builds an activity record attributed to the acting principal.
func (s *Store) event(actor *User, typ ActivityType, entityID, format string, args ...any) *ActivityEvent {
	e := &ActivityEvent{
		ID:          ulid.Make().String(),
		Type:        typ,
		Description: fmt.Sprintf(format, args...),
		EntityID:    entityID,
		CreatedAt:   s.clock(),
	}
	if actor != nil {
		e.PerformerID = actor.ID
		e.PerformerName = actor.FullName
	}
	return e
}

// GetActivity returns up to limit events, newest first. limit <= 0 returns
// everything retained.
func (s *Store) GetActivity(ctx context.Context, limit int) ([]ActivityEvent, error) {
	var out []ActivityEvent
	err := s.read(ctx, func() error {
		out = s.activity.newest(limit)
		return nil
	})
	return out, err
}
