package main

import (
	"flag"
	"fmt"
	"log"

	"detectreview/internal/config"
	"detectreview/internal/repository/sqlite"
	"detectreview/internal/service/storage"
)

// migrate registers captured images that exist on disk but not in the
// review store database.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	imagesDir := flag.String("images", cfg.SaveDirectory, "Directory containing captured images")
	dbPath := flag.String("db", cfg.DatabasePath, "Database path")
	flag.Parse()

	fmt.Printf("Importing images from %s into database %s\n", *imagesDir, *dbPath)

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	result, err := storage.ImportOrphans(*imagesDir, sqlite.NewRecordRepository(db))
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	fmt.Printf("Imported %d images, %d already registered", result.Imported, result.Known)
	if result.Skipped > 0 {
		fmt.Printf(", skipped %d entries", result.Skipped)
	}
	fmt.Println()
}
