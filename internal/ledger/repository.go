// Package ledger persists simulated trades to durable, append-only storage.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"flasharb/internal/config"
	"flasharb/internal/model"
)

// Repository defines the standard interface for trade ledger storage.
type Repository interface {
	// Migrate prepares the storage (file header, table) if it does not exist yet.
	Migrate(ctx context.Context) error
	// LogTrade appends one trade.
	LogTrade(ctx context.Context, trade model.TradeRecord) error
	// RecentTrades returns up to n of the latest trades, oldest first.
	// Rows that cannot be decoded are skipped.
	RecentTrades(ctx context.Context, n int) ([]model.TradeRecord, error)
	Close() error
}

// Open creates the repository selected by cfg.Driver and migrates it.
func Open(ctx context.Context, cfg config.LedgerConfig, logger *slog.Logger) (Repository, error) {
	var (
		repo Repository
		err  error
	)
	switch cfg.Driver {
	case "csv":
		repo = NewCSVRepository(cfg.Path, logger)
	case "sqlite":
		repo, err = NewSQLiteRepository(cfg.Path, logger)
	case "postgres":
		repo, err = NewPostgresRepository(ctx, cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("unknown ledger driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("migrate %s ledger: %w", cfg.Driver, err)
	}
	return repo, nil
}
