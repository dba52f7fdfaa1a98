package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

func main() {
	tenantFlag := flag.String("tenant", "", "tenant id (uuid) to seed the default chart of accounts for")
	actorFlag := flag.Int64("actor", 0, "actor id recorded in the audit log")
	migrate := flag.Bool("migrate", false, "apply embedded migrations before seeding")
	flag.Parse()

	tenantID, err := uuid.Parse(*tenantFlag)
	if err != nil || tenantID == uuid.Nil {
		fmt.Fprintln(os.Stderr, "seed: -tenant must be a non-nil uuid")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	cfg.StoreDriver = app.StoreDriverPostgres
	if cfg.AuditMode == app.AuditModeAsync {
		cfg.AuditMode = app.AuditModeSync
	}
	logger := app.NewLogger(cfg)

	ctx := context.Background()
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions("odyssey-ledger-seed")...)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if *migrate {
		if err := db.Migrate(ctx, pool, logger); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
	}

	ledger, err := app.NewLedger(cfg, app.LedgerDeps{Logger: logger, Pool: pool})
	if err != nil {
		logger.Error("assemble ledger", slog.Any("error", err))
		os.Exit(1)
	}

	fmt.Println("→ Seeding chart of accounts...")
	res, err := ledger.Accounts.SeedDefaults(ctx, tenantID, *actorFlag)
	if err != nil {
		logger.Error("seed accounts", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Printf("✓ created %d, skipped %d accounts for tenant %s\n", len(res.Created), len(res.Skipped), tenantID)
}
