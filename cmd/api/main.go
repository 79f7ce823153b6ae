package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledgerlink/reconciliation-backend/internal/adapters/mollie"
	"github.com/ledgerlink/reconciliation-backend/internal/api"
	"github.com/ledgerlink/reconciliation-backend/internal/application/reconcile"
	"github.com/ledgerlink/reconciliation-backend/internal/domain/matcher"
	"github.com/ledgerlink/reconciliation-backend/internal/domain/reconciler"
	"github.com/ledgerlink/reconciliation-backend/internal/infrastructure/config"
	"github.com/ledgerlink/reconciliation-backend/internal/infrastructure/logging"
	"github.com/ledgerlink/reconciliation-backend/internal/infrastructure/storage"
)

func main() {
	configFile := flag.String("config", "", "Configuration file path")
	flag.Parse()

	cfg := loadConfig(*configFile)
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "api")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("Failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()
	store.SetFeesAccount(cfg.Mollie.FeesAccount)

	orchestrator := buildOrchestrator(cfg, store, logger)

	serverConfig := api.DefaultConfig()
	serverConfig.Port = cfg.API.Port
	if len(cfg.API.AllowedOrigins) > 0 {
		serverConfig.AllowedOrigins = cfg.API.AllowedOrigins
	}

	server := api.NewServer(serverConfig, store, orchestrator, logger)

	// Graceful shutdown on SIGINT/SIGTERM
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case sig := <-sigCh:
		logger.Info("Received signal", slog.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Shutdown failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
}

// buildOrchestrator wires the matching cascade and the executor from
// configuration. Settlement matching is only enabled when a provider
// API key is configured.
func buildOrchestrator(cfg *config.Config, store *storage.Storage, logger *slog.Logger) *reconcile.Orchestrator {
	matchConfig := matcher.Config{
		AcceptanceThreshold:        cfg.Reconciliation.AcceptanceThreshold,
		BatchDateWindowDays:        cfg.Reconciliation.BatchDateWindowDays,
		SettlementDateWindowDays:   cfg.Reconciliation.SettlementDateWindowDays,
		SettlementTolerancePercent: cfg.Reconciliation.SettlementTolerancePercent,
		FuzzyMinScore:              cfg.Reconciliation.FuzzyMinScore,
		ProviderBankAccount:        cfg.Mollie.BankAccount,
	}

	strategies := []matcher.Strategy{
		matcher.NewBatchReferenceStrategy(store),
		matcher.NewAmountReferenceStrategy(store, matchConfig),
	}

	var settlementProcessor *reconciler.SettlementProcessor
	if cfg.Mollie.APIKey != "" {
		reconciler.ValidateProviderAccounts(context.Background(), store, reconciler.ProviderAccounts{
			BankAccount:     cfg.Mollie.BankAccount,
			ClearingAccount: cfg.Mollie.ClearingAccount,
			FeesAccount:     cfg.Mollie.FeesAccount,
		}, logger)

		client := mollie.NewClient(mollie.Config{
			BaseURL: cfg.Mollie.BaseURL,
			APIKey:  cfg.Mollie.APIKey,
			Timeout: time.Duration(cfg.Mollie.TimeoutSeconds) * time.Second,
		}, logger)

		strategies = append(strategies, matcher.NewSettlementStrategy(client, matchConfig, logger))
		settlementProcessor = reconciler.NewSettlementProcessor(
			client, store, store, nil,
			reconciler.SettlementConfig{
				ClearingAccount:        cfg.Mollie.ClearingAccount,
				AmountTolerancePercent: cfg.Reconciliation.PaymentTolerancePercent,
			},
			logger)
	}

	strategies = append(strategies, matcher.NewDescriptionStrategy(store, matchConfig))

	arbiter := matcher.NewArbiter(strategies, matchConfig, logger)
	executor := reconciler.NewExecutor(store, store, nil, settlementProcessor, logger)

	return reconcile.NewOrchestrator(store, arbiter, executor, store, logger)
}

func loadConfig(configFile string) *config.Config {
	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			slog.Error("Failed to load config file",
				slog.String("file", configFile),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
		return cfg
	}
	return config.LoadFromEnv()
}
