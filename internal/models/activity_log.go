package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

type ActivityAction string

const (
	ActionWasteAdded      ActivityAction = "waste_added"
	ActionPickupRequested ActivityAction = "pickup_requested"
	ActionPickupCompleted ActivityAction = "pickup_completed"
)

const (
	EntityWasteEntry    = "waste_entry"
	EntityPickupRequest = "pickup_request"
)

// SystemActorName is recorded when no authenticated user triggered the action.
const SystemActorName = "System"

// ActivityLog is an audit row. The core writes these and never reads them back.
type ActivityLog struct {
	ID         string         `json:"id" db:"id"`
	Action     ActivityAction `json:"action" db:"action"`
	EntityType string         `json:"entity_type" db:"entity_type"`
	EntityID   *string        `json:"entity_id,omitempty" db:"entity_id"`
	UserID     *string        `json:"user_id,omitempty" db:"user_id"`
	UserName   string         `json:"user_name" db:"user_name"`
	Details    types.JSONText `json:"details" db:"details"`
	Timestamp  int64          `json:"timestamp" db:"timestamp"`
}

type ActivityLogResponse struct {
	ID           string         `json:"id"`
	Action       ActivityAction `json:"action"`
	EntityType   string         `json:"entity_type"`
	EntityID     *string        `json:"entity_id,omitempty"`
	UserID       *string        `json:"user_id,omitempty"`
	UserName     string         `json:"user_name"`
	Details      types.JSONText `json:"details"`
	TimestampIso string         `json:"timestamp_iso"`
}

func (a *ActivityLog) ToActivityLogResponse() ActivityLogResponse {
	details := a.Details
	if len(details) == 0 {
		details = types.JSONText("null")
	}
	return ActivityLogResponse{
		ID:           a.ID,
		Action:       a.Action,
		EntityType:   a.EntityType,
		EntityID:     a.EntityID,
		UserID:       a.UserID,
		UserName:     a.UserName,
		Details:      details,
		TimestampIso: time.Unix(a.Timestamp, 0).UTC().Format(time.RFC3339),
	}
}

// Actor identifies who performed an action.
type Actor struct {
	ID   string
	Name string
}

func (a Actor) IDPtr() *string {
	if a.ID == "" {
		return nil
	}
	id := a.ID
	return &id
}

func (a Actor) DisplayName() string {
	if a.Name == "" {
		return SystemActorName
	}
	return a.Name
}
