package main

import (
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/pageza/chopchop/backend/config"
	"github.com/pageza/chopchop/backend/internal/database"
	"github.com/pageza/chopchop/backend/internal/logger"
)

func main() {
	rollback := flag.Bool("rollback", false, "Drop the chat history tables")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	zl, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: "console", Development: true})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	db, err := database.Open(cfg, zl)
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	if db == nil {
		zl.Fatal("DATABASE_DRIVER is none, nothing to migrate")
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	if *rollback {
		if err := database.Rollback(db, zl); err != nil {
			zl.Fatal("rollback failed", zap.Error(err))
		}
		zl.Info("rollback complete")
		return
	}
	if err := database.Migrate(db, zl); err != nil {
		zl.Fatal("migration failed", zap.Error(err))
	}
	zl.Info("migration complete")
}
