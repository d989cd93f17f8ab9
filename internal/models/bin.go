package models

import "time"

// BinStatus is derived from the fill level, never set directly by callers.
type BinStatus string

const (
	BinStatusNormal          BinStatus = "normal"
	BinStatusWarning         BinStatus = "warning"
	BinStatusFull            BinStatus = "full"
	BinStatusPickupRequested BinStatus = "pickup_requested"
)

type Bin struct {
	ID           string    `json:"id" db:"id"`
	Location     string    `json:"location" db:"location"`
	WasteType    WasteType `json:"waste_type" db:"waste_type"`
	Capacity     float64   `json:"capacity" db:"capacity"`
	Threshold    float64   `json:"threshold" db:"threshold"`
	CurrentLevel float64   `json:"current_level" db:"current_level"`
	Status       BinStatus `json:"status" db:"status"`
	LastUpdated  int64     `json:"last_updated" db:"last_updated"` // Unix timestamp
	CreatedAt    int64     `json:"created_at" db:"created_at"`     // Unix timestamp
}

// BinResponse is what we send to the client with ISO timestamps
type BinResponse struct {
	ID             string    `json:"id"`
	Location       string    `json:"location"`
	WasteType      WasteType `json:"waste_type"`
	Capacity       float64   `json:"capacity"`
	Threshold      float64   `json:"threshold"`
	CurrentLevel   float64   `json:"current_level"`
	FillPercentage int       `json:"fill_percentage"`
	Status         BinStatus `json:"status"`
	LastUpdatedIso string    `json:"last_updated_iso"`
}

// ApplyDisposalRequest is the request body for POST /api/bins/:id/level
type ApplyDisposalRequest struct {
	Quantity float64 `json:"quantity"`
}

// Validate checks the provisioning invariants: positive capacity and
// 0 < threshold <= capacity, with the level inside [0, capacity].
func (b *Bin) Validate() error {
	if b.ID == "" || b.Location == "" {
		return ErrInvalidBin
	}
	if !b.WasteType.Valid() {
		return ErrInvalidWasteType
	}
	if !(b.Capacity > 0) || !(b.Threshold > 0) || b.Threshold > b.Capacity {
		return ErrInvalidBin
	}
	if b.CurrentLevel < 0 || b.CurrentLevel > b.Capacity {
		return ErrInvalidBin
	}
	return nil
}

// ToBinResponse converts a Bin to BinResponse
func (b *Bin) ToBinResponse() BinResponse {
	fill := 0
	if b.Capacity > 0 {
		fill = int(b.CurrentLevel / b.Capacity * 100)
	}

	return BinResponse{
		ID:             b.ID,
		Location:       b.Location,
		WasteType:      b.WasteType,
		Capacity:       b.Capacity,
		Threshold:      b.Threshold,
		CurrentLevel:   b.CurrentLevel,
		FillPercentage: fill,
		Status:         b.Status,
		LastUpdatedIso: time.Unix(b.LastUpdated, 0).UTC().Format(time.RFC3339),
	}
}
