// Package store persists bins, the waste ledger, pickup requests, the
// activity log and the outbox. Every mutation of a bin or its open pickup
// request goes through InTx, and the first thing such a transaction does is
// LockBin, which serializes work per bin.
package store

import (
	"context"
	"errors"

	"medwaste-backend/internal/models"
)

// ErrOpenRequestExists is returned by InsertPickupRequest when the bin already
// has a pending or in_progress request.
var ErrOpenRequestExists = errors.New("bin already has an open pickup request")

// DefaultActivityLogLimit matches what dashboards show.
const DefaultActivityLogLimit = 100

type Store interface {
	// InTx runs fn in one transaction. If fn returns an error nothing fn
	// wrote is kept.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	ListBins(ctx context.Context) ([]models.Bin, error)
	ListWasteEntries(ctx context.Context) ([]models.WasteEntry, error)
	ListPickupRequests(ctx context.Context) ([]models.PickupRequest, error)
	ListActivityLogs(ctx context.Context, limit int) ([]models.ActivityLog, error)

	// InsertActivityLog runs outside any business transaction.
	InsertActivityLog(ctx context.Context, entry *models.ActivityLog) error

	OutboxStore
}

type Tx interface {
	// LockBin loads the bin and holds it exclusively until the transaction
	// ends. Returns models.ErrBinNotFound for an unknown id.
	LockBin(ctx context.Context, binID string) (*models.Bin, error)
	UpdateBin(ctx context.Context, bin *models.Bin) error

	InsertWasteEntry(ctx context.Context, entry *models.WasteEntry) error

	// OpenPickupRequest returns nil, nil when the bin has no open request.
	OpenPickupRequest(ctx context.Context, binID string) (*models.PickupRequest, error)
	GetPickupRequest(ctx context.Context, id string) (*models.PickupRequest, error)
	InsertPickupRequest(ctx context.Context, req *models.PickupRequest) error
	UpdatePickupRequest(ctx context.Context, req *models.PickupRequest) error

	InsertOutboxEvents(ctx context.Context, events []models.OutboxEvent) error
}

// OutboxStore is what the outbox publisher needs.
type OutboxStore interface {
	// ClaimOutboxBatch marks up to limit deliverable events as processing
	// and returns them. Failed events are retried until maxAttempts.
	ClaimOutboxBatch(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkOutboxDone(ctx context.Context, id string, completedAt int64) error
	MarkOutboxFailed(ctx context.Context, id string, attempts int, lastError string) error
}
