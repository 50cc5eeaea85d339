package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/meltforce/gymdesk/internal/config"
	"github.com/meltforce/gymdesk/internal/importer"
	"github.com/meltforce/gymdesk/internal/logging"
	"github.com/meltforce/gymdesk/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dir := flag.String("path", "", "directory of routine YAML files (required)")
	tenant := flag.String("tenant", "", "tenant the routines belong to (required)")
	dryRun := flag.Bool("dry-run", false, "validate and count without writing to the database")
	flag.Parse()

	if *dir == "" || *tenant == "" {
		fmt.Fprintf(os.Stderr, "Usage: gymdesk-import -config config.yaml -tenant <id> -path /path/to/routines [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	log, closer, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to set up logging:", err)
		os.Exit(1)
	}
	defer closer.Close()

	info, err := os.Stat(*dir)
	if err != nil || !info.IsDir() {
		log.Error("routine path does not exist or is not a directory", "path", *dir)
		os.Exit(1)
	}

	if cfg.Database.Driver == "postgres" {
		if err := storage.RunMigrations(cfg.Database.DSN(), "migrations"); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")
	}

	ctx := context.Background()

	if *dryRun {
		log.Info("DRY RUN mode: no routines will be written")
	}

	db, err := storage.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	imp := importer.New(db, *tenant, log, *dryRun)
	stats, err := imp.Import(ctx, *dir)
	if err != nil {
		log.Error("import failed", "error", err)
		printStats(log, stats)
		os.Exit(1)
	}

	printStats(log, stats)
	log.Info("import complete")
}

func printStats(log *slog.Logger, stats *importer.Stats) {
	log.Info("import stats",
		"files_processed", stats.FilesProcessed,
		"files_skipped", stats.FilesSkipped,
		"files_errored", stats.FilesErrored,
		"routines_inserted", stats.RoutinesInserted,
		"routines_duplicated", stats.RoutinesDuplicated,
		"routines_invalid", stats.RoutinesInvalid,
	)
}
