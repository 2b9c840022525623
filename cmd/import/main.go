package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"chanpay-bot/internal/infra/sqlite3"
	"chanpay-bot/internal/storage"
	"chanpay-bot/internal/stories/legacyimport"
)

// Переносит пользователей из старой базы users.db в текущую схему.
func main() {
	legacyPath := flag.String("legacy", "./users.db", "path to the old users.db")
	dbPath := flag.String("db", "./data/users.db", "path to the bot database")
	tz := flag.String("tz", "Local", "time zone the old dates were written in")
	period := flag.Duration("period", 30*24*time.Hour, "subscription period used when an end date is missing")
	dryRun := flag.Bool("dry-run", false, "show what would be imported without writing to DB")
	verbose := flag.Bool("v", false, "log every imported tier")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		log.Fatalf("invalid time zone %q: %v", *tz, err)
	}

	ctx := context.Background()

	legacyDB, err := sqlx.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", *legacyPath))
	if err != nil {
		log.Fatalf("failed to open legacy database: %v", err)
	}
	defer legacyDB.Close()

	users, err := legacyimport.Load(ctx, legacyDB)
	if err != nil {
		log.Fatalf("failed to read legacy users: %v", err)
	}
	fmt.Printf("Loaded %d legacy users\n", len(users))

	db, err := sqlite3.New(ctx, sqlite3.WithDSN(fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", *dbPath)))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	svc := legacyimport.NewService(storage.New(db.DB), loc, *period, *dryRun, logger)
	stats, err := svc.Import(ctx, users)
	if err != nil {
		log.Fatalf("import interrupted: %v", err)
	}

	fmt.Printf("\n=== TOTAL ===\n")
	fmt.Printf("Imported: %d\n", stats.Imported)
	fmt.Printf("Tiers:    %d\n", stats.Tiers)
	fmt.Printf("Kept:     %d (store already newer)\n", stats.Kept)
	fmt.Printf("Skipped:  %d\n", stats.Skipped)
	fmt.Printf("Errors:   %d\n", stats.Errors)

	if *dryRun {
		fmt.Println("\n(DRY RUN - nothing was written to database)")
	}
}
