package repository

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusCreated    TaskStatus = "CREATED"
	TaskStatusProcessing TaskStatus = "PROCESSING"
	TaskStatusFailed     TaskStatus = "FAILED"
	TaskStatusDone       TaskStatus = "DONE"
)

type OutboxTask struct {
	ID          uuid.UUID       `db:"id"`
	Status      TaskStatus      `db:"status"`
	Payload     json.RawMessage `db:"payload"`
	Topic       string          `db:"topic"`
	Attempts    int             `db:"attempts"`
	LastError   *string         `db:"last_error"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
	CompletedAt *time.Time      `db:"completed_at"`
}

// ActivityPayload is the wire form of an activity event relayed to Kafka.
type ActivityPayload struct {
	EventID       string    `json:"event_id"`
	Type          string    `json:"type"`
	Description   string    `json:"description"`
	PerformerID   string    `json:"performer_id,omitempty"`
	PerformerName string    `json:"performer_name,omitempty"`
	EntityID      string    `json:"entity_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
