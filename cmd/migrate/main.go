package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"medwaste-backend/internal/database"
	"medwaste-backend/internal/models"

	"github.com/joho/godotenv"
)

func main() {
	seedFile := flag.String("seed", os.Getenv("SEED_BINS_FILE"), "TOML file with bins to provision (defaults to the built-in demo bins)")
	skipSeed := flag.Bool("no-seed", false, "only run migrations")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Get database URL
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := database.Connect(dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("Running migrations...")
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migration completed successfully!")

	if *skipSeed {
		return
	}

	var bins []models.Bin
	if *seedFile != "" {
		log.Printf("Loading bin seed: %s", *seedFile)
		bins, err = database.LoadBinSeed(*seedFile)
		if err != nil {
			log.Fatalf("Failed to load bin seed: %v", err)
		}
	} else {
		bins = database.DefaultBins()
	}

	if err := database.SeedBins(context.Background(), db, bins); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	var result struct {
		TotalBins       int `db:"total_bins"`
		NormalBins      int `db:"normal_bins"`
		WarningBins     int `db:"warning_bins"`
		FullBins        int `db:"full_bins"`
		PickupRequested int `db:"pickup_requested"`
	}

	err = db.Get(&result, `
		SELECT
			COUNT(*) AS total_bins,
			COUNT(CASE WHEN status = 'normal' THEN 1 END) AS normal_bins,
			COUNT(CASE WHEN status = 'warning' THEN 1 END) AS warning_bins,
			COUNT(CASE WHEN status = 'full' THEN 1 END) AS full_bins,
			COUNT(CASE WHEN status = 'pickup_requested' THEN 1 END) AS pickup_requested
		FROM bins
	`)
	if err != nil {
		log.Fatalf("Failed to query summary: %v", err)
	}

	// Display results
	fmt.Println("\n============================================================")
	fmt.Println("MIGRATION SUMMARY")
	fmt.Println("============================================================")
	fmt.Printf("Total bins:              %d\n", result.TotalBins)
	fmt.Printf("Normal:                  %d\n", result.NormalBins)
	fmt.Printf("Warning:                 %d\n", result.WarningBins)
	fmt.Printf("Full:                    %d\n", result.FullBins)
	fmt.Printf("Pickup requested:        %d\n", result.PickupRequested)
	fmt.Println("============================================================")
}
