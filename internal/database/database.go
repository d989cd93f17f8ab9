package database

import (
	"context"
	"fmt"
	"log"

	"medwaste-backend/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func Connect(dbURL string) (*sqlx.DB, error) {
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Println("🔌 DATABASE CONNECTION ATTEMPT")
	log.Printf("   📍 URL prefix: %s...", dbURL[:min(30, len(dbURL))])
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Printf("❌ DATABASE CONNECTION FAILED: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		log.Printf("❌ DATABASE PING FAILED: %v", err)
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ DATABASE CONNECTION SUCCESSFUL")
	return db, nil
}

func Migrate(db *sqlx.DB) error {
	migrations := []string{
		// Bins are provisioned by administrators, the service only moves their level
		`CREATE TABLE IF NOT EXISTS bins (
			id TEXT PRIMARY KEY,
			location TEXT NOT NULL,
			waste_type TEXT NOT NULL CHECK(waste_type IN ('infectious', 'pathological', 'pharmaceutical', 'sharps', 'chemotherapy')),
			capacity DOUBLE PRECISION NOT NULL CHECK(capacity > 0),
			threshold DOUBLE PRECISION NOT NULL CHECK(threshold > 0 AND threshold <= capacity),
			current_level DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK(current_level >= 0 AND current_level <= capacity),
			status TEXT NOT NULL DEFAULT 'normal' CHECK(status IN ('normal', 'warning', 'full', 'pickup_requested')),
			last_updated BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		// Waste ledger (append-only)
		`CREATE TABLE IF NOT EXISTS waste_entries (
			seq BIGSERIAL UNIQUE,
			id TEXT PRIMARY KEY,
			staff_id TEXT NOT NULL,
			staff_name TEXT NOT NULL,
			waste_type TEXT NOT NULL,
			quantity DOUBLE PRECISION NOT NULL CHECK(quantity > 0),
			unit TEXT NOT NULL CHECK(unit IN ('kg', 'liters', 'pieces')),
			bin_id TEXT NOT NULL REFERENCES bins(id),
			location TEXT NOT NULL,
			timestamp BIGINT NOT NULL,
			description TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_waste_entries_timestamp ON waste_entries(timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_waste_entries_bin_id ON waste_entries(bin_id)`,

		// Pickup requests
		`CREATE TABLE IF NOT EXISTS pickup_requests (
			seq BIGSERIAL UNIQUE,
			id TEXT PRIMARY KEY,
			bin_id TEXT NOT NULL REFERENCES bins(id),
			location TEXT NOT NULL,
			waste_type TEXT NOT NULL,
			requested_at BIGINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'in_progress', 'completed')),
			handler_id TEXT,
			handler_name TEXT,
			completed_at BIGINT,
			disposal_photos TEXT[],
			notes TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pickup_requests_requested_at ON pickup_requests(requested_at DESC)`,

		// At most one open request per bin
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_pickup_requests_one_open_per_bin
			ON pickup_requests(bin_id) WHERE status IN ('pending', 'in_progress')`,

		// Activity log
		`CREATE TABLE IF NOT EXISTS activity_logs (
			seq BIGSERIAL UNIQUE,
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL CHECK(action IN ('waste_added', 'pickup_requested', 'pickup_completed')),
			entity_type TEXT NOT NULL,
			entity_id TEXT,
			user_id TEXT,
			user_name TEXT NOT NULL,
			details JSONB,
			timestamp BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_logs_timestamp ON activity_logs(timestamp DESC)`,

		// Outbox for the change stream
		`CREATE TABLE IF NOT EXISTS outbox_events (
			seq BIGSERIAL UNIQUE,
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload JSONB NOT NULL,
			status TEXT NOT NULL DEFAULT 'created' CHECK(status IN ('created', 'processing', 'failed', 'done')),
			attempts INT NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			completed_at BIGINT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_events_pending ON outbox_events(created_at) WHERE status IN ('created', 'failed', 'processing')`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	log.Println("✓ Database migrations completed")
	return nil
}

// InsertBin provisions a bin on a connection or inside a transaction.
// Status is derived from the level so seed data can never start out
// inconsistent.
func InsertBin(ctx context.Context, db sqlx.ExtContext, bin *models.Bin) error {
	if err := bin.Validate(); err != nil {
		return fmt.Errorf("bin %s: %w", bin.ID, err)
	}
	bin.Status = models.DeriveStatus(bin.CurrentLevel, bin.Threshold, bin.Capacity, false)

	_, err := sqlx.NamedExecContext(ctx, db, `
		INSERT INTO bins (id, location, waste_type, capacity, threshold, current_level, status, last_updated, created_at)
		VALUES (:id, :location, :waste_type, :capacity, :threshold, :current_level, :status, :last_updated, :created_at)
	`, bin)
	if err != nil {
		return fmt.Errorf("insert bin %s: %w", bin.ID, err)
	}
	return nil
}
