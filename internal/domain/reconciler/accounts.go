package reconciler

import (
	"context"
	"log/slog"
)

// AccountDirectory checks ledger account existence.
type AccountDirectory interface {
	AccountExists(ctx context.Context, name string) (bool, error)
}

// ProviderAccounts is the payment-provider account wiring checked at
// engine construction.
type ProviderAccounts struct {
	BankAccount     string
	ClearingAccount string
	FeesAccount     string
}

// ValidateProviderAccounts logs missing or unknown provider accounts.
// Misconfiguration degrades settlement matching and fee booking, it
// never fails startup; lookup errors are logged and skipped.
func ValidateProviderAccounts(ctx context.Context, accounts AccountDirectory, cfg ProviderAccounts, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.BankAccount == "" {
		logger.Warn("Mollie bank account not configured, settlement matching disabled")
	}
	if cfg.ClearingAccount == "" {
		logger.Warn("Mollie clearing account not configured, settlement fees cannot be booked")
	}

	checks := []struct {
		role string
		name string
	}{
		{"bank", cfg.BankAccount},
		{"clearing", cfg.ClearingAccount},
		{"fees", cfg.FeesAccount},
	}
	for _, check := range checks {
		if check.name == "" {
			continue
		}
		exists, err := accounts.AccountExists(ctx, check.name)
		if err != nil {
			logger.Error("Failed to verify provider account",
				"role", check.role, "account", check.name, "error", err.Error())
			continue
		}
		if !exists {
			logger.Warn("Configured provider account does not exist",
				"role", check.role, "account", check.name)
		}
	}
}
