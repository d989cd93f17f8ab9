package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"medwaste-backend/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Name of the partial unique index guarding one open request per bin.
const openRequestIndex = "idx_pickup_requests_one_open_per_bin"

// Processing outbox rows older than this are considered abandoned by a
// crashed publisher and are claimed again.
const outboxStaleAfter = 5 * time.Minute

const binColumns = `id, location, waste_type, capacity, threshold, current_level, status, last_updated, created_at`

const pickupColumns = `id, bin_id, location, waste_type, requested_at, status,
	handler_id, handler_name, completed_at, disposal_photos, notes`

type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBins(ctx context.Context) ([]models.Bin, error) {
	var bins []models.Bin
	err := s.db.SelectContext(ctx, &bins, `
		SELECT `+binColumns+`
		FROM bins
		ORDER BY created_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list bins: %w", err)
	}
	return bins, nil
}

func (s *PostgresStore) ListWasteEntries(ctx context.Context) ([]models.WasteEntry, error) {
	var entries []models.WasteEntry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, staff_id, staff_name, waste_type, quantity, unit, bin_id, location, timestamp, description
		FROM waste_entries
		ORDER BY timestamp DESC, seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list waste entries: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) ListPickupRequests(ctx context.Context) ([]models.PickupRequest, error) {
	var requests []models.PickupRequest
	err := s.db.SelectContext(ctx, &requests, `
		SELECT `+pickupColumns+`
		FROM pickup_requests
		ORDER BY requested_at DESC, seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list pickup requests: %w", err)
	}
	return requests, nil
}

func (s *PostgresStore) ListActivityLogs(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 {
		limit = DefaultActivityLogLimit
	}
	var logs []models.ActivityLog
	err := s.db.SelectContext(ctx, &logs, `
		SELECT id, action, entity_type, entity_id, user_id, user_name, details, timestamp
		FROM activity_logs
		ORDER BY timestamp DESC, seq DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity logs: %w", err)
	}
	return logs, nil
}

func (s *PostgresStore) InsertActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (id, action, entity_type, entity_id, user_id, user_name, details, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.Action, entry.EntityType, entry.EntityID, entry.UserID, entry.UserName, entry.Details, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ClaimOutboxBatch(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	now := time.Now().Unix()
	staleBefore := time.Now().Add(-outboxStaleAfter).Unix()

	var events []models.OutboxEvent
	// RETURNING has no defined order, so the claimed rows are re-sorted.
	err := s.db.SelectContext(ctx, &events, `
		WITH claimed AS (
			UPDATE outbox_events
			SET status = 'processing', updated_at = $1
			WHERE id IN (
				SELECT id FROM outbox_events
				WHERE status = 'created'
				   OR (status = 'failed' AND attempts < $2)
				   OR (status = 'processing' AND updated_at < $3)
				ORDER BY created_at ASC, seq ASC
				LIMIT $4
				FOR UPDATE SKIP LOCKED
			)
			RETURNING id, topic, event_type, payload, status, attempts, last_error, created_at, updated_at, completed_at, seq
		)
		SELECT id, topic, event_type, payload, status, attempts, last_error, created_at, updated_at, completed_at
		FROM claimed
		ORDER BY created_at ASC, seq ASC
	`, now, maxAttempts, staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox batch: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) MarkOutboxDone(ctx context.Context, id string, completedAt int64) error {
	return s.updateOutbox(ctx, `
		UPDATE outbox_events
		SET status = 'done', completed_at = $2, updated_at = $2, last_error = NULL
		WHERE id = $1
	`, id, completedAt)
}

func (s *PostgresStore) MarkOutboxFailed(ctx context.Context, id string, attempts int, lastError string) error {
	return s.updateOutbox(ctx, `
		UPDATE outbox_events
		SET status = 'failed', attempts = $2, last_error = $3, updated_at = $4
		WHERE id = $1
	`, id, attempts, lastError, time.Now().Unix())
}

func (s *PostgresStore) updateOutbox(ctx context.Context, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update outbox event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update outbox event: %w", err)
	}
	if rows == 0 {
		log.Printf("⚠️  [OUTBOX] Event %v not found while updating status", args[0])
	}
	return nil
}

type postgresTx struct {
	tx *sqlx.Tx
}

func (t *postgresTx) LockBin(ctx context.Context, binID string) (*models.Bin, error) {
	var bin models.Bin
	err := t.tx.GetContext(ctx, &bin, `
		SELECT `+binColumns+`
		FROM bins
		WHERE id = $1
		FOR UPDATE
	`, binID)
	if err == sql.ErrNoRows {
		return nil, models.ErrBinNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock bin %s: %w", binID, err)
	}
	return &bin, nil
}

func (t *postgresTx) UpdateBin(ctx context.Context, bin *models.Bin) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE bins
		SET current_level = $1, status = $2, last_updated = $3
		WHERE id = $4
	`, bin.CurrentLevel, bin.Status, bin.LastUpdated, bin.ID)
	if err != nil {
		return fmt.Errorf("update bin %s: %w", bin.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update bin %s: %w", bin.ID, err)
	}
	if rows == 0 {
		return models.ErrBinNotFound
	}
	return nil
}

func (t *postgresTx) InsertWasteEntry(ctx context.Context, entry *models.WasteEntry) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO waste_entries (id, staff_id, staff_name, waste_type, quantity, unit, bin_id, location, timestamp, description)
		VALUES (:id, :staff_id, :staff_name, :waste_type, :quantity, :unit, :bin_id, :location, :timestamp, :description)
	`, entry)
	if err != nil {
		return fmt.Errorf("insert waste entry: %w", err)
	}
	return nil
}

func (t *postgresTx) OpenPickupRequest(ctx context.Context, binID string) (*models.PickupRequest, error) {
	var req models.PickupRequest
	err := t.tx.GetContext(ctx, &req, `
		SELECT `+pickupColumns+`
		FROM pickup_requests
		WHERE bin_id = $1 AND status IN ('pending', 'in_progress')
		LIMIT 1
	`, binID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open pickup request for bin %s: %w", binID, err)
	}
	return &req, nil
}

func (t *postgresTx) GetPickupRequest(ctx context.Context, id string) (*models.PickupRequest, error) {
	var req models.PickupRequest
	err := t.tx.GetContext(ctx, &req, `
		SELECT `+pickupColumns+`
		FROM pickup_requests
		WHERE id = $1
	`, id)
	if err == sql.ErrNoRows {
		return nil, models.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pickup request %s: %w", id, err)
	}
	return &req, nil
}

func (t *postgresTx) InsertPickupRequest(ctx context.Context, req *models.PickupRequest) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO pickup_requests (id, bin_id, location, waste_type, requested_at, status, disposal_photos)
		VALUES (:id, :bin_id, :location, :waste_type, :requested_at, :status, :disposal_photos)
	`, req)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == openRequestIndex {
			return ErrOpenRequestExists
		}
		return fmt.Errorf("insert pickup request: %w", err)
	}
	return nil
}

func (t *postgresTx) UpdatePickupRequest(ctx context.Context, req *models.PickupRequest) error {
	result, err := t.tx.NamedExecContext(ctx, `
		UPDATE pickup_requests
		SET status = :status, handler_id = :handler_id, handler_name = :handler_name,
		    completed_at = :completed_at, disposal_photos = :disposal_photos, notes = :notes
		WHERE id = :id AND status <> 'completed'
	`, req)
	if err != nil {
		return fmt.Errorf("update pickup request %s: %w", req.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update pickup request %s: %w", req.ID, err)
	}
	if rows == 0 {
		return models.ErrInvalidRequestState
	}
	return nil
}

func (t *postgresTx) InsertOutboxEvents(ctx context.Context, events []models.OutboxEvent) error {
	for _, ev := range events {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO outbox_events (id, topic, event_type, payload, status, attempts, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 'created', 0, $5, $5)
		`, ev.ID, ev.Topic, ev.EventType, []byte(ev.Payload), ev.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert outbox event %s: %w", ev.EventType, err)
		}
	}
	return nil
}
