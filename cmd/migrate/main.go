package main

import (
	"flag"
	"log"

	"github.com/wispbill/wispbill/internal/config"
	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/postgres"
)

func main() {
	// Parse command line flags
	steps := flag.Int("steps", 0, "Apply n migrations (negative rolls back); 0 applies all pending")
	showVersion := flag.Bool("version", false, "Print the current schema version and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	logger.Infow("Connecting to database", "host", cfg.Postgres.Host, "dbname", cfg.Postgres.DBName)

	mg, err := postgres.NewMigrator(cfg, logger)
	if err != nil {
		logger.Fatalw("Failed to create migrator", "error", err)
	}
	defer mg.Close()

	if *showVersion {
		version, dirty, err := mg.Version()
		if err != nil {
			logger.Fatalw("Failed to read schema version", "error", err)
		}
		logger.Infow("Schema version", "version", version, "dirty", dirty)
		return
	}

	if *steps != 0 {
		err = mg.Steps(*steps)
	} else {
		err = mg.Up()
	}
	if err != nil {
		logger.Fatalw("Migration failed", "error", err)
	}

	logger.Info("Database migrations completed successfully")
}
