package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/fatimaafzal05/medi-trax/internal/api"
	"github.com/fatimaafzal05/medi-trax/internal/catalog"
	"github.com/fatimaafzal05/medi-trax/internal/config"
	"github.com/fatimaafzal05/medi-trax/internal/credentials"
	"github.com/fatimaafzal05/medi-trax/internal/database"
	"github.com/fatimaafzal05/medi-trax/internal/dispense"
	"github.com/fatimaafzal05/medi-trax/internal/ledger"
	"github.com/fatimaafzal05/medi-trax/internal/migrations"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	db := database.Connect(cfg.DatabasePath)
	defer db.Close()

	migrations.Run(db)
	migrations.Seed(db)

	locks := ledger.NewLockTable(time.Duration(cfg.LockWaitMillis) * time.Millisecond)
	led := ledger.New(db, locks, logger)
	cat := catalog.New(db, locks, logger)
	workflow := dispense.New(cat, led, logger)
	creds := credentials.New(db, logger)

	handler := api.New(cat, led, workflow, creds, cfg.Secret, cfg.LowStockThreshold, logger)

	logger.Info("meditrax server starting", "port", cfg.HTTPPort, "database", cfg.DatabasePath)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, handler.Router()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
