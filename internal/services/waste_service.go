package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"medwaste-backend/internal/events"
	"medwaste-backend/internal/helpers"
	"medwaste-backend/internal/metrics"
	"medwaste-backend/internal/models"
	"medwaste-backend/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultOutboxTopic is the broker topic change events are written for.
const DefaultOutboxTopic = "medwaste.changes"

// DisposalInput describes one waste disposal reported by staff.
type DisposalInput struct {
	StaffID   string
	StaffName string
	WasteType models.WasteType
	Quantity  float64
	Unit      models.Unit
	BinID     string
	// Location as reported by the client. The ledger always stores the
	// bin's own location.
	Location    string
	Description *string
}

// CompletionInput is a handler's documentation of a finished pickup.
type CompletionInput struct {
	RequestID   string
	HandlerID   string
	HandlerName string
	Photos      []string
	Notes       *string
}

// WasteService owns the waste ledger, the bin registry and the pickup
// request lifecycle. All mutations of a bin and its open request happen in
// one store transaction that starts by locking the bin.
type WasteService struct {
	store  store.Store
	bus    *events.Bus
	topic  string
	tracer trace.Tracer
	now    func() time.Time
}

type Option func(*WasteService)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *WasteService) { s.now = now }
}

func WithOutboxTopic(topic string) Option {
	return func(s *WasteService) { s.topic = topic }
}

func NewWasteService(st store.Store, bus *events.Bus, opts ...Option) *WasteService {
	s := &WasteService{
		store:  st,
		bus:    bus,
		topic:  DefaultOutboxTopic,
		tracer: otel.Tracer("medwaste/services"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordDisposal appends a ledger entry and applies its quantity to the bin
// in the same transaction, opening a pickup request when the bin crosses
// its threshold.
func (s *WasteService) RecordDisposal(ctx context.Context, in DisposalInput) (*models.WasteEntry, error) {
	ctx, span := s.tracer.Start(ctx, "waste.record_disposal",
		trace.WithAttributes(
			attribute.String("bin.id", in.BinID),
			attribute.String("waste.type", string(in.WasteType)),
			attribute.Float64("waste.quantity", in.Quantity),
		),
	)
	defer span.End()

	if err := validateQuantity(in.Quantity); err != nil {
		return nil, spanError(span, err)
	}
	if !in.WasteType.Valid() {
		return nil, spanError(span, models.ErrInvalidWasteType)
	}
	if !in.Unit.Valid() {
		return nil, spanError(span, models.ErrInvalidUnit)
	}

	actor := actorOr(ctx, models.Actor{ID: in.StaffID, Name: in.StaffName})

	var entry *models.WasteEntry
	err := s.inTx(ctx, "record_disposal", func(tx store.Tx, cs *changeSet) error {
		bin, err := tx.LockBin(ctx, in.BinID)
		if err != nil {
			return err
		}
		if bin.WasteType != in.WasteType {
			return fmt.Errorf("%w: bin %s holds %s, got %s", models.ErrWasteTypeMismatch, bin.ID, bin.WasteType, in.WasteType)
		}

		now := s.now()
		entry = &models.WasteEntry{
			ID:          uuid.New().String(),
			StaffID:     in.StaffID,
			StaffName:   in.StaffName,
			WasteType:   in.WasteType,
			Quantity:    in.Quantity,
			Unit:        in.Unit,
			BinID:       bin.ID,
			Location:    bin.Location,
			Timestamp:   now.Unix(),
			Description: in.Description,
		}
		if err := tx.InsertWasteEntry(ctx, entry); err != nil {
			return err
		}

		recorded := entry
		cs.event(events.WasteEntryRecorded, events.EntityWasteEntry, entry.ID, now)
		cs.activity(func(ctx context.Context) (*models.ActivityLog, error) {
			return helpers.LogWasteAdded(ctx, s.store, recorded, actor, now)
		})

		_, err = s.applyDisposalTx(ctx, tx, cs, bin, in.Quantity, actor, now)
		return err
	})
	if err != nil {
		return nil, spanError(span, err)
	}

	metrics.WasteEntriesRecordedTotal.Inc()
	span.SetAttributes(attribute.String("waste_entry.id", entry.ID))
	return entry, nil
}

// ApplyDisposal raises a bin's level without writing a ledger entry.
func (s *WasteService) ApplyDisposal(ctx context.Context, binID string, quantity float64) (*models.Bin, error) {
	ctx, span := s.tracer.Start(ctx, "waste.apply_disposal",
		trace.WithAttributes(
			attribute.String("bin.id", binID),
			attribute.Float64("waste.quantity", quantity),
		),
	)
	defer span.End()

	if err := validateQuantity(quantity); err != nil {
		return nil, spanError(span, err)
	}

	actor := ActorFromContext(ctx)

	var updated *models.Bin
	err := s.inTx(ctx, "apply_disposal", func(tx store.Tx, cs *changeSet) error {
		bin, err := tx.LockBin(ctx, binID)
		if err != nil {
			return err
		}
		updated, err = s.applyDisposalTx(ctx, tx, cs, bin, quantity, actor, s.now())
		return err
	})
	if err != nil {
		return nil, spanError(span, err)
	}

	span.SetAttributes(attribute.String("bin.status", string(updated.Status)))
	return updated, nil
}

// CreatePickupRequest opens a pending request for the bin. If one is already
// open it is returned unchanged and nothing is logged or announced.
func (s *WasteService) CreatePickupRequest(ctx context.Context, binID string) (*models.PickupRequest, error) {
	ctx, span := s.tracer.Start(ctx, "waste.create_pickup_request",
		trace.WithAttributes(attribute.String("bin.id", binID)),
	)
	defer span.End()

	actor := ActorFromContext(ctx)

	var req *models.PickupRequest
	err := s.inTx(ctx, "create_pickup_request", func(tx store.Tx, cs *changeSet) error {
		bin, err := tx.LockBin(ctx, binID)
		if err != nil {
			return err
		}

		open, err := tx.OpenPickupRequest(ctx, bin.ID)
		if err != nil {
			return err
		}
		if open != nil {
			req = open
			return nil
		}

		now := s.now()
		req, err = s.openPickupRequestTx(ctx, tx, cs, bin, actor, now)
		if err != nil {
			return err
		}

		bin.Status = models.DeriveStatus(bin.CurrentLevel, bin.Threshold, bin.Capacity, true)
		bin.LastUpdated = now.Unix()
		if err := tx.UpdateBin(ctx, bin); err != nil {
			return err
		}
		cs.event(events.BinChanged, events.EntityBin, bin.ID, now)
		return nil
	})
	if err != nil {
		return nil, spanError(span, err)
	}

	span.SetAttributes(attribute.String("pickup_request.id", req.ID))
	return req, nil
}

// CompletePickupRequest records the handler's documentation and empties the
// bin atomically. Only pending requests can be completed, and only by a
// named handler.
func (s *WasteService) CompletePickupRequest(ctx context.Context, in CompletionInput) (*models.PickupRequest, error) {
	ctx, span := s.tracer.Start(ctx, "waste.complete_pickup_request",
		trace.WithAttributes(
			attribute.String("pickup_request.id", in.RequestID),
			attribute.Int("photos.count", len(in.Photos)),
		),
	)
	defer span.End()

	if strings.TrimSpace(in.HandlerID) == "" || strings.TrimSpace(in.HandlerName) == "" {
		return nil, spanError(span, models.ErrMissingHandler)
	}

	actor := actorOr(ctx, models.Actor{ID: in.HandlerID, Name: in.HandlerName})

	var req *models.PickupRequest
	err := s.inTx(ctx, "complete_pickup_request", func(tx store.Tx, cs *changeSet) error {
		found, err := tx.GetPickupRequest(ctx, in.RequestID)
		if err != nil {
			return err
		}

		bin, err := tx.LockBin(ctx, found.BinID)
		if err != nil {
			return err
		}

		// re-read under the bin lock; a concurrent completion may have won
		req, err = tx.GetPickupRequest(ctx, in.RequestID)
		if err != nil {
			return err
		}
		if req.Status != models.PickupStatusPending {
			return fmt.Errorf("%w: request %s is %s", models.ErrInvalidRequestState, req.ID, req.Status)
		}

		now := s.now()
		completedAt := now.Unix()
		req.Status = models.PickupStatusCompleted
		req.HandlerID = stringPtr(in.HandlerID)
		req.HandlerName = stringPtr(in.HandlerName)
		req.CompletedAt = &completedAt
		req.DisposalPhotos = append([]string{}, in.Photos...)
		req.Notes = in.Notes
		if err := tx.UpdatePickupRequest(ctx, req); err != nil {
			return err
		}

		if err := s.resetBinTx(ctx, tx, cs, bin, now); err != nil {
			return err
		}

		completed := req.Clone()
		cs.event(events.PickupRequestCompleted, events.EntityPickupRequest, req.ID, now)
		cs.activity(func(ctx context.Context) (*models.ActivityLog, error) {
			return helpers.LogPickupCompleted(ctx, s.store, completed, actor, now)
		})
		return nil
	})
	if err != nil {
		return nil, spanError(span, err)
	}

	metrics.PickupRequestsCompletedTotal.Inc()
	return req, nil
}

func (s *WasteService) ListBins(ctx context.Context) ([]models.Bin, error) {
	bins, err := s.store.ListBins(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return bins, nil
}

func (s *WasteService) ListWasteEntries(ctx context.Context) ([]models.WasteEntry, error) {
	entries, err := s.store.ListWasteEntries(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return entries, nil
}

func (s *WasteService) ListPickupRequests(ctx context.Context) ([]models.PickupRequest, error) {
	requests, err := s.store.ListPickupRequests(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return requests, nil
}

// ListActivityLogs returns the newest entries first. A non-positive limit
// means the default of 100.
func (s *WasteService) ListActivityLogs(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 {
		limit = store.DefaultActivityLogLimit
	}
	logs, err := s.store.ListActivityLogs(ctx, limit)
	if err != nil {
		return nil, classify(err)
	}
	return logs, nil
}

func (s *WasteService) applyDisposalTx(ctx context.Context, tx store.Tx, cs *changeSet, bin *models.Bin,
	quantity float64, actor models.Actor, now time.Time) (*models.Bin, error) {

	open, err := tx.OpenPickupRequest(ctx, bin.ID)
	if err != nil {
		return nil, err
	}

	bin.CurrentLevel = models.ClampLevel(bin.CurrentLevel, quantity, bin.Capacity)
	bin.LastUpdated = now.Unix()

	if bin.CurrentLevel >= bin.Threshold && open == nil {
		open, err = s.openPickupRequestTx(ctx, tx, cs, bin, actor, now)
		if err != nil {
			return nil, err
		}
	}

	bin.Status = models.DeriveStatus(bin.CurrentLevel, bin.Threshold, bin.Capacity, open != nil)
	if err := tx.UpdateBin(ctx, bin); err != nil {
		return nil, err
	}
	cs.event(events.BinChanged, events.EntityBin, bin.ID, now)
	return bin, nil
}

// openPickupRequestTx inserts a pending request snapshotting the bin. The
// caller has checked there is no open request and updates the bin itself.
func (s *WasteService) openPickupRequestTx(ctx context.Context, tx store.Tx, cs *changeSet, bin *models.Bin,
	actor models.Actor, now time.Time) (*models.PickupRequest, error) {

	req := &models.PickupRequest{
		ID:          uuid.New().String(),
		BinID:       bin.ID,
		Location:    bin.Location,
		WasteType:   bin.WasteType,
		RequestedAt: now.Unix(),
		Status:      models.PickupStatusPending,
	}
	if err := tx.InsertPickupRequest(ctx, req); err != nil {
		return nil, err
	}

	created := req.Clone()
	cs.created++
	cs.event(events.PickupRequestCreated, events.EntityPickupRequest, req.ID, now)
	cs.activity(func(ctx context.Context) (*models.ActivityLog, error) {
		return helpers.LogPickupRequested(ctx, s.store, created, actor, now)
	})
	return req, nil
}

// resetBinTx empties a bin after its pickup. Only completion calls it.
func (s *WasteService) resetBinTx(ctx context.Context, tx store.Tx, cs *changeSet, bin *models.Bin, now time.Time) error {
	bin.CurrentLevel = 0
	bin.Status = models.DeriveStatus(0, bin.Threshold, bin.Capacity, false)
	bin.LastUpdated = now.Unix()
	if err := tx.UpdateBin(ctx, bin); err != nil {
		return err
	}
	cs.event(events.BinChanged, events.EntityBin, bin.ID, now)
	return nil
}

// changeSet collects what a transaction did so it can be announced once the
// transaction has committed.
type changeSet struct {
	events     []events.Event
	activities []func(ctx context.Context) (*models.ActivityLog, error)
	created    int
}

func (cs *changeSet) event(typ events.Type, entity, id string, at time.Time) {
	cs.events = append(cs.events, events.Event{Type: typ, Entity: entity, EntityID: id, OccurredAt: at.UTC()})
}

func (cs *changeSet) activity(write func(ctx context.Context) (*models.ActivityLog, error)) {
	cs.activities = append(cs.activities, write)
}

// inTx runs fn in a store transaction, writes the collected events to the
// outbox in that same transaction and announces them after commit. Losing
// the race for a bin's open-request slot aborts the transaction, so it is
// retried once; the retry sees the winner's request.
func (s *WasteService) inTx(ctx context.Context, op string, fn func(tx store.Tx, cs *changeSet) error) error {
	for attempt := 0; ; attempt++ {
		cs := &changeSet{}
		err := s.store.InTx(ctx, func(tx store.Tx) error {
			if err := fn(tx, cs); err != nil {
				return err
			}
			if len(cs.events) == 0 {
				return nil
			}
			rows, err := s.outboxRows(cs.events)
			if err != nil {
				return err
			}
			return tx.InsertOutboxEvents(ctx, rows)
		})
		if errors.Is(err, store.ErrOpenRequestExists) && attempt == 0 {
			continue
		}
		if err != nil {
			metrics.OperationErrorsTotal.WithLabelValues(op).Inc()
			return classify(err)
		}

		s.afterCommit(ctx, cs)
		return nil
	}
}

func (s *WasteService) outboxRows(evs []events.Event) ([]models.OutboxEvent, error) {
	rows := make([]models.OutboxEvent, 0, len(evs))
	for _, ev := range evs {
		payload, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("encode %s event: %w", ev.Type, err)
		}
		rows = append(rows, models.OutboxEvent{
			ID:        uuid.New().String(),
			Topic:     s.topic,
			EventType: string(ev.Type),
			Payload:   types.JSONText(payload),
			Status:    models.OutboxStatusCreated,
			CreatedAt: ev.OccurredAt.Unix(),
			UpdatedAt: ev.OccurredAt.Unix(),
		})
	}
	return rows, nil
}

// afterCommit writes activity log entries and notifies subscribers. Nothing
// here can fail the operation.
func (s *WasteService) afterCommit(ctx context.Context, cs *changeSet) {
	metrics.PickupRequestsCreatedTotal.Add(float64(cs.created))

	logCtx := context.WithoutCancel(ctx)
	published := cs.events
	for _, write := range cs.activities {
		entry, err := write(logCtx)
		if err != nil {
			metrics.ActivityLogFailuresTotal.Inc()
			continue
		}
		published = append(published, events.Event{
			Type:       events.ActivityLogCreated,
			Entity:     events.EntityActivityLog,
			EntityID:   entry.ID,
			OccurredAt: time.Unix(entry.Timestamp, 0).UTC(),
		})
	}

	s.bus.Publish(published...)
}

var domainErrors = []error{
	models.ErrInvalidQuantity,
	models.ErrInvalidWasteType,
	models.ErrInvalidUnit,
	models.ErrWasteTypeMismatch,
	models.ErrInvalidBin,
	models.ErrBinNotFound,
	models.ErrRequestNotFound,
	models.ErrInvalidRequestState,
	models.ErrMissingHandler,
	models.ErrTransactionFailure,
}

// classify passes domain errors through and wraps everything else as a
// transaction failure.
func classify(err error) error {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", models.ErrTransactionFailure, err)
}

func validateQuantity(q float64) error {
	if math.IsNaN(q) || math.IsInf(q, 0) || q <= 0 {
		return models.ErrInvalidQuantity
	}
	return nil
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
