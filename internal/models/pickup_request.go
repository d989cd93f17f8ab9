package models

import (
	"time"

	"github.com/lib/pq"
)

type PickupStatus string

const (
	PickupStatusPending PickupStatus = "pending"
	// PickupStatusInProgress is reserved for a handler claim step; nothing
	// transitions into it yet.
	PickupStatusInProgress PickupStatus = "in_progress"
	PickupStatusCompleted  PickupStatus = "completed"
)

// Open reports whether the request still blocks a new request for its bin.
func (s PickupStatus) Open() bool {
	return s == PickupStatusPending || s == PickupStatusInProgress
}

type PickupRequest struct {
	ID          string       `json:"id" db:"id"`
	BinID       string       `json:"bin_id" db:"bin_id"`
	Location    string       `json:"location" db:"location"`     // snapshot at creation
	WasteType   WasteType    `json:"waste_type" db:"waste_type"` // snapshot at creation
	RequestedAt int64        `json:"requested_at" db:"requested_at"`
	Status      PickupStatus `json:"status" db:"status"` // 'pending', 'in_progress', 'completed'

	// Completion (set once, by the handler)
	HandlerID      *string        `json:"handler_id,omitempty" db:"handler_id"`
	HandlerName    *string        `json:"handler_name,omitempty" db:"handler_name"`
	CompletedAt    *int64         `json:"completed_at,omitempty" db:"completed_at"`
	DisposalPhotos pq.StringArray `json:"disposal_photos" db:"disposal_photos"`
	Notes          *string        `json:"notes,omitempty" db:"notes"`
}

// PickupRequestResponse includes ISO formatted timestamps for client
type PickupRequestResponse struct {
	ID             string       `json:"id"`
	BinID          string       `json:"bin_id"`
	Location       string       `json:"location"`
	WasteType      WasteType    `json:"waste_type"`
	RequestedAtIso string       `json:"requested_at_iso"`
	Status         PickupStatus `json:"status"`
	HandlerID      *string      `json:"handler_id,omitempty"`
	HandlerName    *string      `json:"handler_name,omitempty"`
	CompletedAtIso *string      `json:"completed_at_iso,omitempty"`
	DisposalPhotos []string     `json:"disposal_photos"`
	Notes          *string      `json:"notes,omitempty"`
}

// CompletePickupRequest is the request body for POST /api/pickup-requests/:id/complete
type CompletePickupRequest struct {
	HandlerName string   `json:"handler_name"`
	Photos      []string `json:"photos"`
	Notes       *string  `json:"notes,omitempty"`
}

// Clone returns a deep copy so callers never share the photos slice.
func (p *PickupRequest) Clone() *PickupRequest {
	c := *p
	if p.DisposalPhotos != nil {
		c.DisposalPhotos = append(pq.StringArray{}, p.DisposalPhotos...)
	}
	return &c
}

func (p *PickupRequest) ToPickupRequestResponse() PickupRequestResponse {
	photos := []string(p.DisposalPhotos)
	if photos == nil {
		photos = []string{}
	}

	resp := PickupRequestResponse{
		ID:             p.ID,
		BinID:          p.BinID,
		Location:       p.Location,
		WasteType:      p.WasteType,
		RequestedAtIso: time.Unix(p.RequestedAt, 0).UTC().Format(time.RFC3339),
		Status:         p.Status,
		HandlerID:      p.HandlerID,
		HandlerName:    p.HandlerName,
		DisposalPhotos: photos,
		Notes:          p.Notes,
	}

	if p.CompletedAt != nil {
		iso := time.Unix(*p.CompletedAt, 0).UTC().Format(time.RFC3339)
		resp.CompletedAtIso = &iso
	}

	return resp
}
