package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/ai"
	"github.com/kontax/green-ledger/internal/asientos"
	"github.com/kontax/green-ledger/internal/auth"
	"github.com/kontax/green-ledger/internal/boostr"
	"github.com/kontax/green-ledger/internal/clasificador"
	"github.com/kontax/green-ledger/internal/config"
	"github.com/kontax/green-ledger/internal/factores"
	"github.com/kontax/green-ledger/internal/financiamiento"
	"github.com/kontax/green-ledger/internal/reportes"
	"github.com/kontax/green-ledger/internal/repository"
	"github.com/kontax/green-ledger/internal/server"
	"github.com/kontax/green-ledger/internal/sii"
	"github.com/kontax/green-ledger/internal/valorizador"
	"github.com/kontax/green-ledger/internal/worker"
	"github.com/kontax/green-ledger/pkg/database"
	"github.com/kontax/green-ledger/pkg/utils"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting green ledger API",
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories
	entityRepo := repository.NewEntityRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)
	factorRepo := repository.NewFactorRepository(db.DB, logger)
	asientoRepo := repository.NewAsientoRepository(db.DB, logger)
	evidenceRepo := repository.NewEvidenceRepository(db.DB, logger)
	reporteRepo := repository.NewReporteRepository(db.DB, logger)
	syncRunRepo := repository.NewSyncRunRepository(db.DB, logger)
	vehiculoRepo := repository.NewVehiculoRepository(db.DB, logger)

	// Auth
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	authSvc := auth.NewService(userRepo, tokens, logger)
	cipher, err := auth.NewCipher(cfg.Auth.CredentialKey)
	if err != nil {
		logger.Fatal("Failed to initialize credential cipher", zap.Error(err))
	}

	// Domain services
	catalog := factores.NewCatalog(db, factorRepo, logger)
	generator := asientos.NewGenerator(catalog, logger)
	asientoSvc := asientos.NewService(db, asientoRepo, entityRepo, generator, logger)
	reporteSvc := reportes.NewService(reporteRepo, asientoRepo, logger)
	excel := reportes.NewExcelExporter(reporteSvc, logger)
	score := financiamiento.NewCalculator(entityRepo, asientoRepo, logger)

	// Integrations
	siiClient := sii.NewClient(cfg.SII.BaseURL, cfg.SII.Timeout, logger)
	syncer := sii.NewSyncer(sii.SyncerDeps{
		DB:           db,
		Client:       siiClient,
		Clasificador: clasificador.New(logger),
		Generator:    generator,
		Entities:     entityRepo,
		Evidences:    evidenceRepo,
		Asientos:     asientoRepo,
		SyncRuns:     syncRunRepo,
		Decrypter:    cipher,
		TiposDTE:     cfg.SII.TiposDTE,
	}, logger)

	boostrSvc := boostr.NewService(
		boostr.NewClient(cfg.Boostr.BaseURL, cfg.Boostr.APIKey, cfg.Boostr.Timeout, logger),
		vehiculoRepo, logger)

	agent := ai.NewAgent(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Temperature, logger)
	valorizadorSvc := valorizador.New(agent, logger)

	// Background workers
	syncWorker := worker.NewSyncWorker(syncer, cfg.Sync.QueueSize, logger)
	reportWorker := worker.NewReportWorker(reporteSvc, cfg.Sync.ReportQueueSize, logger)
	reporteSvc.SetDispatcher(reportWorker)

	manager := worker.NewManager(logger)
	manager.Register(syncWorker)
	manager.Register(reportWorker)

	handlers := server.NewHandlers(server.HandlerDeps{
		DB:          db,
		Auth:        authSvc,
		Cipher:      cipher,
		Entities:    entityRepo,
		Evidences:   evidenceRepo,
		Asientos:    asientoSvc,
		Factores:    catalog,
		Reportes:    reporteSvc,
		Excel:       excel,
		Score:       score,
		Syncer:      syncer,
		SyncQueue:   syncWorker,
		Boostr:      boostrSvc,
		Agent:       agent,
		Valorizador: valorizadorSvc,
	}, logger)

	srv := server.New(cfg.Server, handlers, tokens, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		logger.Error("HTTP server exited with error", zap.Error(err))
	}

	manager.StopAll()
	logger.Info("Shutdown complete")
}
