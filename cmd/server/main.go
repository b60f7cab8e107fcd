package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/openctemio/observe/internal/app"
	"github.com/openctemio/observe/internal/app/ingest"
	"github.com/openctemio/observe/internal/app/notify"
	"github.com/openctemio/observe/internal/config"
	"github.com/openctemio/observe/internal/infra/http"
	"github.com/openctemio/observe/internal/infra/http/handler"
	"github.com/openctemio/observe/internal/infra/http/routes"
	"github.com/openctemio/observe/internal/infra/postgres"
	"github.com/openctemio/observe/pkg/logger"
	"github.com/openctemio/observe/pkg/validator"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ==========================================================================
	// Configuration & Logger
	// ==========================================================================
	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	log.SetDefault()
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env)

	// ==========================================================================
	// Infrastructure
	// ==========================================================================
	db, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}
	defer closeWithLog(db, "database", log)
	log.Info("database connected")

	// ==========================================================================
	// Repositories
	// ==========================================================================
	products := postgres.NewProductRepository(db)
	branches := postgres.NewBranchRepository(db)
	observations := postgres.NewObservationRepository(db)
	observationLogs := postgres.NewObservationLogRepository(db)
	rules := postgres.NewRuleRepository(db)
	vexDocuments := postgres.NewVEXDocumentRepository(db)
	vexStatements := postgres.NewVEXStatementRepository(db)
	log.Info("repositories initialized")

	// ==========================================================================
	// Services
	// ==========================================================================
	ruleApply := app.NewRuleApplyService(rules, products, observations, observationLogs, log)
	vexApply := app.NewVEXApplyService(vexStatements, products, branches, observations, observationLogs, log)

	reconciler := ingest.NewReconciler(observations, observationLogs, branches, log)
	dispatcher := notify.NewDispatcher(products, notify.DispatcherConfig{
		Enabled:         cfg.Notify.Enabled,
		EventsPerSecond: cfg.Notify.EventsPerSecond,
		Burst:           cfg.Notify.Burst,
		Timeout:         cfg.Notify.Timeout,
	}, log)
	reconciler.SetChangeCallback(dispatcher.ObservationChanged)

	importSvc := app.NewImportService(products, branches, reconciler, ruleApply, vexApply, log)
	vexImportSvc := app.NewVEXImportService(vexDocuments, vexStatements, vexApply, log)
	ruleSvc := app.NewRuleService(rules, ruleApply, log)
	observationSvc := app.NewObservationService(observations, observationLogs, products, log)
	productSvc := app.NewProductService(products, branches, log)
	log.Info("services initialized")

	// ==========================================================================
	// Risk Acceptance Scheduler
	// ==========================================================================
	scheduler := app.NewRiskAcceptanceScheduler(observations, observationLogs, app.RiskAcceptanceSchedulerConfig{
		Enabled:       cfg.RiskAcceptance.Enabled,
		CheckInterval: cfg.RiskAcceptance.CheckInterval,
	}, log)
	scheduler.Start()

	// ==========================================================================
	// HTTP Server
	// ==========================================================================
	v := validator.New()
	handlers := routes.Handlers{
		Health:      handler.NewHealthHandler(db),
		Product:     handler.NewProductHandler(productSvc, v, log),
		Observation: handler.NewObservationHandler(observationSvc, v, log),
		Rule:        handler.NewRuleHandler(ruleSvc, v, log),
		Import:      handler.NewImportHandler(importSvc, v, log),
		VEX:         handler.NewVEXHandler(vexImportSvc, v, log),
	}

	server := http.NewServer(cfg, log)
	routes.Register(server.Router(), handlers, cfg)

	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", "error", err)
		}
	}()
	log.Info("application started", "http_addr", cfg.Server.Addr())

	// ==========================================================================
	// Graceful Shutdown
	// ==========================================================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	scheduler.Stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		return 1
	}

	log.Info("application stopped")
	return 0
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}
