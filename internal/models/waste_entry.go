package models

import "time"

type WasteType string

const (
	WasteTypeInfectious     WasteType = "infectious"
	WasteTypePathological   WasteType = "pathological"
	WasteTypePharmaceutical WasteType = "pharmaceutical"
	WasteTypeSharps         WasteType = "sharps"
	WasteTypeChemotherapy   WasteType = "chemotherapy"
)

func (t WasteType) Valid() bool {
	switch t {
	case WasteTypeInfectious, WasteTypePathological, WasteTypePharmaceutical, WasteTypeSharps, WasteTypeChemotherapy:
		return true
	}
	return false
}

type Unit string

const (
	UnitKg     Unit = "kg"
	UnitLiters Unit = "liters"
	UnitPieces Unit = "pieces"
)

func (u Unit) Valid() bool {
	switch u {
	case UnitKg, UnitLiters, UnitPieces:
		return true
	}
	return false
}

// WasteEntry is an immutable ledger row. Location is copied from the bin
// when the entry is recorded.
type WasteEntry struct {
	ID          string    `json:"id" db:"id"`
	StaffID     string    `json:"staff_id" db:"staff_id"`
	StaffName   string    `json:"staff_name" db:"staff_name"`
	WasteType   WasteType `json:"waste_type" db:"waste_type"`
	Quantity    float64   `json:"quantity" db:"quantity"`
	Unit        Unit      `json:"unit" db:"unit"`
	BinID       string    `json:"bin_id" db:"bin_id"`
	Location    string    `json:"location" db:"location"`
	Timestamp   int64     `json:"timestamp" db:"timestamp"` // Unix timestamp
	Description *string   `json:"description,omitempty" db:"description"`
}

type WasteEntryResponse struct {
	ID           string    `json:"id"`
	StaffID      string    `json:"staff_id"`
	StaffName    string    `json:"staff_name"`
	WasteType    WasteType `json:"waste_type"`
	Quantity     float64   `json:"quantity"`
	Unit         Unit      `json:"unit"`
	BinID        string    `json:"bin_id"`
	Location     string    `json:"location"`
	TimestampIso string    `json:"timestamp_iso"`
	Description  *string   `json:"description,omitempty"`
}

// CreateWasteEntryRequest is the request body for POST /api/waste-entries
type CreateWasteEntryRequest struct {
	StaffName   string    `json:"staff_name"`
	WasteType   WasteType `json:"waste_type"`
	Quantity    float64   `json:"quantity"`
	Unit        Unit      `json:"unit"`
	BinID       string    `json:"bin_id"`
	Location    string    `json:"location"`
	Description *string   `json:"description,omitempty"`
}

func (e *WasteEntry) ToWasteEntryResponse() WasteEntryResponse {
	return WasteEntryResponse{
		ID:           e.ID,
		StaffID:      e.StaffID,
		StaffName:    e.StaffName,
		WasteType:    e.WasteType,
		Quantity:     e.Quantity,
		Unit:         e.Unit,
		BinID:        e.BinID,
		Location:     e.Location,
		TimestampIso: time.Unix(e.Timestamp, 0).UTC().Format(time.RFC3339),
		Description:  e.Description,
	}
}
