package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"medwaste-backend/internal/models"

	"github.com/BurntSushi/toml"
	"github.com/jmoiron/sqlx"
)

// binSeedFile is the layout of SEED_BINS_FILE:
//
//	[[bins]]
//	id = "icu-sharps-1"
//	location = "ICU - Ward 3"
//	waste_type = "sharps"
//	capacity = 50.0
//	threshold = 40.0
type binSeedFile struct {
	Bins []binSeed `toml:"bins"`
}

type binSeed struct {
	ID           string  `toml:"id"`
	Location     string  `toml:"location"`
	WasteType    string  `toml:"waste_type"`
	Capacity     float64 `toml:"capacity"`
	Threshold    float64 `toml:"threshold"`
	CurrentLevel float64 `toml:"current_level"`
}

// DefaultBins is the demo layout used when no seed file is configured.
func DefaultBins() []models.Bin {
	seeds := []binSeed{
		{ID: "bin-er-infectious", Location: "Emergency Room", WasteType: "infectious", Capacity: 100, Threshold: 80},
		{ID: "bin-icu-sharps", Location: "ICU - Ward 3", WasteType: "sharps", Capacity: 50, Threshold: 40},
		{ID: "bin-surgery-pathological", Location: "Surgery Wing", WasteType: "pathological", Capacity: 80, Threshold: 60},
		{ID: "bin-pharmacy-pharmaceutical", Location: "Pharmacy", WasteType: "pharmaceutical", Capacity: 60, Threshold: 45},
		{ID: "bin-oncology-chemotherapy", Location: "Oncology", WasteType: "chemotherapy", Capacity: 40, Threshold: 30},
		{ID: "bin-lab-infectious", Location: "Laboratory", WasteType: "infectious", Capacity: 120, Threshold: 90},
	}

	bins, err := toBins(seeds, time.Now().Unix())
	if err != nil {
		// static data above is known to be valid
		panic(err)
	}
	return bins
}

// LoadBinSeed reads bins from a TOML seed file.
func LoadBinSeed(path string) ([]models.Bin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var file binSeedFile
	if _, err := toml.Decode(string(data), &file); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if len(file.Bins) == 0 {
		return nil, fmt.Errorf("seed file %s defines no bins", path)
	}

	return toBins(file.Bins, time.Now().Unix())
}

func toBins(seeds []binSeed, now int64) ([]models.Bin, error) {
	bins := make([]models.Bin, 0, len(seeds))
	seen := make(map[string]bool, len(seeds))
	for i, s := range seeds {
		if seen[s.ID] {
			return nil, fmt.Errorf("bin %d: duplicate id %q: %w", i, s.ID, models.ErrInvalidBin)
		}
		seen[s.ID] = true

		bin := models.Bin{
			ID:           s.ID,
			Location:     s.Location,
			WasteType:    models.WasteType(s.WasteType),
			Capacity:     s.Capacity,
			Threshold:    s.Threshold,
			CurrentLevel: s.CurrentLevel,
			LastUpdated:  now,
			// keeps the listing order stable: first seeded bin is listed first
			CreatedAt: now - int64(i),
		}
		if err := bin.Validate(); err != nil {
			return nil, fmt.Errorf("bin %d (%s): %w", i, s.ID, err)
		}
		bin.Status = models.DeriveStatus(bin.CurrentLevel, bin.Threshold, bin.Capacity, false)
		bins = append(bins, bin)
	}
	return bins, nil
}

// SeedBins inserts bins into an empty bins table.
func SeedBins(ctx context.Context, db *sqlx.DB, bins []models.Bin) error {
	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM bins"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Bins already seeded, skipping...")
		return nil
	}

	log.Printf("🌱 Seeding %d bins...", len(bins))

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := range bins {
		if err := InsertBin(ctx, tx, &bins[i]); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		log.Printf("  ✓ Created bin: %s (%s, %s)", bins[i].ID, bins[i].Location, bins[i].WasteType)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Printf("✓ Successfully seeded %d bins", len(bins))
	return nil
}
