package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/ledgerlink/reconciliation-backend/internal/adapters/mollie"
	"github.com/ledgerlink/reconciliation-backend/internal/application/reconcile"
	"github.com/ledgerlink/reconciliation-backend/internal/domain/matcher"
	"github.com/ledgerlink/reconciliation-backend/internal/domain/reconciler"
	"github.com/ledgerlink/reconciliation-backend/internal/infrastructure/config"
	"github.com/ledgerlink/reconciliation-backend/internal/infrastructure/logging"
	"github.com/ledgerlink/reconciliation-backend/internal/infrastructure/storage"
)

func main() {
	// Parse flags
	var (
		configFile  = flag.String("config", "", "Configuration file path")
		bankAccount = flag.String("account", "", "Bank account to reconcile (empty = all)")
		fromDate    = flag.String("from", "", "Start date YYYY-MM-DD (empty = unbounded)")
		toDate      = flag.String("to", "", "End date YYYY-MM-DD (empty = unbounded)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	// Setup configuration and logging
	cfg := loadConfig(*configFile)
	if *verbose {
		cfg.Observability.Logging.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "reconcile")

	opts := reconcile.Options{BankAccount: *bankAccount}
	opts.FromDate = parseDateFlag(logger, "from", *fromDate)
	opts.ToDate = parseDateFlag(logger, "to", *toDate)

	// Initialize storage
	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("Failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()
	store.SetFeesAccount(cfg.Mollie.FeesAccount)

	orchestrator := buildOrchestrator(cfg, store, logger)

	result, err := orchestrator.Reconcile(context.Background(), opts)
	if err != nil {
		logger.Error("Reconciliation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Reconciliation complete",
		slog.Int("total", result.Total),
		slog.Int("matched", result.Matched),
		slog.Int("unmatched", result.Unmatched))
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

func parseDateFlag(logger *slog.Logger, name, value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		logger.Error("Invalid date flag",
			slog.String("flag", name),
			slog.String("value", value))
		os.Exit(1)
	}
	return parsed
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
