package models

import "github.com/jmoiron/sqlx/types"

type OutboxStatus string

const (
	OutboxStatusCreated    OutboxStatus = "created"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusFailed     OutboxStatus = "failed"
	OutboxStatusDone       OutboxStatus = "done"
)

// OutboxEvent is written in the same transaction as the change it announces
// and shipped to the broker afterwards by the outbox publisher.
type OutboxEvent struct {
	ID          string         `json:"id" db:"id"`
	Topic       string         `json:"topic" db:"topic"`
	EventType   string         `json:"event_type" db:"event_type"`
	Payload     types.JSONText `json:"payload" db:"payload"`
	Status      OutboxStatus   `json:"status" db:"status"`
	Attempts    int            `json:"attempts" db:"attempts"`
	LastError   *string        `json:"last_error,omitempty" db:"last_error"`
	CreatedAt   int64          `json:"created_at" db:"created_at"`
	UpdatedAt   int64          `json:"updated_at" db:"updated_at"`
	CompletedAt *int64         `json:"completed_at,omitempty" db:"completed_at"`
}
