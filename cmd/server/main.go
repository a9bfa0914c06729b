// Lumina accounting engine entrypoint.
//
// Startup order:
//  1. Load configuration from environment
//  2. Initialize structured logging
//  3. Open the storage backend (SQLite ledger or DynamoDB)
//  4. Wire repositories, services, and HTTP handlers
//  5. Register background maintenance jobs
//  6. Serve HTTP and wait for a shutdown signal
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnnyx/lumina-capital/internal/clients/dynamo"
	"github.com/vnnyx/lumina-capital/internal/config"
	"github.com/vnnyx/lumina-capital/internal/database"
	"github.com/vnnyx/lumina-capital/internal/modules/outcomes"
	outcomehandlers "github.com/vnnyx/lumina-capital/internal/modules/outcomes/handlers"
	"github.com/vnnyx/lumina-capital/internal/modules/paper"
	paperhandlers "github.com/vnnyx/lumina-capital/internal/modules/paper/handlers"
	"github.com/vnnyx/lumina-capital/internal/modules/performance"
	performancehandlers "github.com/vnnyx/lumina-capital/internal/modules/performance/handlers"
	"github.com/vnnyx/lumina-capital/internal/modules/tracking"
	trackinghandlers "github.com/vnnyx/lumina-capital/internal/modules/tracking/handlers"
	"github.com/vnnyx/lumina-capital/internal/reliability"
	"github.com/vnnyx/lumina-capital/internal/scheduler"
	"github.com/vnnyx/lumina-capital/internal/server"
	"github.com/vnnyx/lumina-capital/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet
		panic(err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("mode", cfg.TradingMode).
		Str("backend", cfg.StorageBackend).
		Int("port", cfg.Port).
		Msg("Starting accounting engine")

	ctx := context.Background()

	var (
		ledgerDB    *database.DB
		outcomeRepo outcomes.Repository
		perfRepo    performance.Repository
		paperRepo   paper.Repository
	)

	switch cfg.StorageBackend {
	case config.BackendDynamo:
		client, err := dynamo.New(ctx, dynamo.Config{
			Region:   cfg.AWSRegion,
			Table:    cfg.DynamoTable,
			Endpoint: cfg.DynamoEndpoint,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create DynamoDB client")
		}
		if err := dynamo.EnsureTable(ctx, client, cfg.DynamoTable, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure DynamoDB table")
		}

		outcomeRepo = outcomes.NewDynamoRepository(client, cfg.DynamoTable, log)
		perfRepo = performance.NewDynamoRepository(client, cfg.DynamoTable, log)
		paperRepo = paper.NewDynamoRepository(client, cfg.DynamoTable, log)

	default:
		ledgerDB, err = database.New(database.Config{
			Path:    cfg.LedgerDBPath(),
			Profile: database.ProfileLedger,
			Name:    "ledger",
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open ledger database")
		}
		defer ledgerDB.Close()

		if err := ledgerDB.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate ledger database")
		}

		outcomeRepo = outcomes.NewSQLiteRepository(ledgerDB.Conn(), log)
		perfRepo = performance.NewSQLiteRepository(ledgerDB.Conn(), log)
		paperRepo = paper.NewSQLiteRepository(ledgerDB.Conn(), log)
	}

	// Services
	outcomeSvc := outcomes.NewService(outcomeRepo, log)
	perfSvc := performance.NewService(perfRepo, log)
	ledgerSvc := paper.NewLedgerService(paperRepo, log)
	balanceSvc := paper.NewBalanceService(paperRepo, log)
	snapshotCache := tracking.NewSnapshotCache(cfg.SnapshotCachePath(), time.Minute, log)
	trackingSvc := tracking.NewService(outcomeSvc, perfSvc, ledgerSvc, balanceSvc, snapshotCache, cfg.Rehearsal(), log)

	// Background jobs
	sched := scheduler.New(log)
	registerJobs(ctx, sched, cfg, ledgerDB, log)
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Log:                 log,
		Cfg:                 cfg,
		LedgerDB:            ledgerDB,
		TrackingHandlers:    trackinghandlers.NewHandler(trackingSvc, log),
		OutcomeHandlers:     outcomehandlers.NewHandler(outcomeSvc, log),
		PerformanceHandlers: performancehandlers.NewHandler(perfSvc, log),
		PaperHandlers:       paperhandlers.NewHandler(ledgerSvc, balanceSvc, log),
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Accounting engine stopped")
}

// registerJobs wires the SQLite maintenance jobs. The DynamoDB backend has
// no local file to checkpoint or back up.
func registerJobs(ctx context.Context, sched *scheduler.Scheduler, cfg *config.Config, ledgerDB *database.DB, log zerolog.Logger) {
	if ledgerDB == nil {
		return
	}

	err := sched.Register(scheduler.Job{
		Name:     "wal-checkpoint",
		Schedule: cfg.CheckpointSchedule,
		Run: func(ctx context.Context) error {
			return ledgerDB.WALCheckpoint("TRUNCATE")
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register checkpoint job")
	}

	if cfg.BackupBucket == "" {
		log.Info().Msg("Backup bucket not configured, off-site backups disabled")
		return
	}

	backupSvc, err := reliability.NewBackupService(ctx, ledgerDB, cfg.LedgerDBPath(), cfg.AWSRegion, cfg.BackupBucket, cfg.BackupPrefix, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create backup service")
	}

	err = sched.Register(scheduler.Job{
		Name:     "ledger-backup",
		Schedule: cfg.BackupSchedule,
		Run:      backupSvc.Run,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register backup job")
	}
}
