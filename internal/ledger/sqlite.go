package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"flasharb/internal/model"
)

// SQLiteRepository stores trades in a local SQLite database.
// Timestamps are stored as epoch milliseconds.
type SQLiteRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteRepository opens (or creates) the database file at path.
func NewSQLiteRepository(path string, logger *slog.Logger) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &SQLiteRepository{db: db, logger: logger}, nil
}

// Migrate creates the trades table.
func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS simulated_trades (
	id TEXT PRIMARY KEY,
	timestamp_ms INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	buy_exchange TEXT NOT NULL,
	sell_exchange TEXT NOT NULL,
	buy_price REAL NOT NULL,
	sell_price REAL NOT NULL,
	profit_usd REAL NOT NULL,
	balance_after REAL NOT NULL,
	note TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS simulated_trades_timestamp_idx ON simulated_trades (timestamp_ms);`)
	return err
}

// LogTrade inserts one trade.
func (r *SQLiteRepository) LogTrade(ctx context.Context, trade model.TradeRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO simulated_trades
			(id, timestamp_ms, symbol, buy_exchange, sell_exchange, buy_price, sell_price, profit_usd, balance_after, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.ID, trade.Timestamp.UnixMilli(), trade.Symbol, string(trade.BuyExchange), string(trade.SellExchange),
		trade.BuyPrice, trade.SellPrice, trade.ProfitUSD, trade.BalanceAfter, trade.Note,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// RecentTrades returns the latest n trades, oldest first.
func (r *SQLiteRepository) RecentTrades(ctx context.Context, n int) ([]model.TradeRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, timestamp_ms, symbol, buy_exchange, sell_exchange, buy_price, sell_price, profit_usd, balance_after, note
		FROM simulated_trades ORDER BY timestamp_ms DESC, rowid DESC LIMIT ?`, n)
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
			tsMS      int64
			buy, sell string
		)
		if err := rows.Scan(&t.ID, &tsMS, &t.Symbol, &buy, &sell,
			&t.BuyPrice, &t.SellPrice, &t.ProfitUSD, &t.BalanceAfter, &t.Note); err != nil {
			skipped++
			continue
		}
		t.Timestamp = time.UnixMilli(tsMS)
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

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
