package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"flasharb/internal/model"
)

const createTradesTableSQL = `
CREATE TABLE IF NOT EXISTS simulated_trades (
	id VARCHAR(64) PRIMARY KEY,
	timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	symbol VARCHAR(32) NOT NULL,
	buy_exchange VARCHAR(50) NOT NULL,
	sell_exchange VARCHAR(50) NOT NULL,
	buy_price NUMERIC(30, 12) NOT NULL,
	sell_price NUMERIC(30, 12) NOT NULL,
	profit_usd NUMERIC(30, 12) NOT NULL,
	balance_after NUMERIC(30, 12) NOT NULL,
	note TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS simulated_trades_timestamp_idx ON simulated_trades (timestamp);`

// PostgresRepository stores trades in PostgreSQL.
type PostgresRepository struct {
	Pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresRepository connects a pool to dsn.
func NewPostgresRepository(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresRepository{Pool: pool, logger: logger}, nil
}

// Migrate creates the trades table.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.Pool.Exec(ctx, createTradesTableSQL)
	return err
}

// LogTrade inserts one trade.
func (r *PostgresRepository) LogTrade(ctx context.Context, trade model.TradeRecord) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO simulated_trades
			(id, timestamp, symbol, buy_exchange, sell_exchange, buy_price, sell_price, profit_usd, balance_after, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		trade.ID, trade.Timestamp, trade.Symbol, string(trade.BuyExchange), string(trade.SellExchange),
		trade.BuyPrice, trade.SellPrice, trade.ProfitUSD, trade.BalanceAfter, trade.Note,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// RecentTrades returns the latest n trades, oldest first.
func (r *PostgresRepository) RecentTrades(ctx context.Context, n int) ([]model.TradeRecord, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT id, timestamp, symbol, buy_exchange, sell_exchange, buy_price, sell_price, profit_usd, balance_after, note
		FROM simulated_trades ORDER BY timestamp DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var (
		trades  []model.TradeRecord
		skipped int
	)
	for rows.Next() {
		var (
			t         model.TradeRecord
			buy, sell string
		)
		if err := rows.Scan(&t.ID, &t.Timestamp, &t.Symbol, &buy, &sell,
			&t.BuyPrice, &t.SellPrice, &t.ProfitUSD, &t.BalanceAfter, &t.Note); err != nil {
			skipped++
			continue
		}
		t.BuyExchange, t.SellExchange = model.Exchange(buy), model.Exchange(sell)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	if skipped > 0 {
		r.logger.Warn("Skipped malformed ledger rows", "table", "simulated_trades", "count", skipped)
	}

	reverse(trades)
	return trades, nil
}

// Close releases the pool.
func (r *PostgresRepository) Close() error {
	r.Pool.Close()
	return nil
}

func reverse(trades []model.TradeRecord) {
	for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
		trades[i], trades[j] = trades[j], trades[i]
	}
}
