package ledger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flasharb/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func sampleTrade(i int) model.TradeRecord {
	return model.TradeRecord{
		ID:           "trade-" + string(rune('a'+i)),
		Timestamp:    time.Date(2026, 10, 16, 8, 0, i, 0, time.Local),
		Symbol:       "BTC-USDT",
		BuyExchange:  model.Binance,
		SellExchange: model.Bybit,
		BuyPrice:     60000.5,
		SellPrice:    60100.25,
		ProfitUSD:    0.1234 + float64(i),
		BalanceAfter: 10000 + float64(i),
		Note:         "VWAP + Slippage",
	}
}

func TestCSVRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trades_log.csv")
	repo := NewCSVRepository(path, testLogger())

	require.NoError(t, repo.Migrate(ctx))
	// A second migrate must not duplicate the header.
	require.NoError(t, repo.Migrate(ctx))

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.LogTrade(ctx, sampleTrade(i)))
	}

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "Timestamp,Symbol,BuyEx,SellEx,BuyPrice,SellPrice,Profit,Balance,Note,ID", lines[0])

	trades, err := repo.RecentTrades(ctx, 3)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, sampleTrade(2), trades[0])
	assert.Equal(t, sampleTrade(4), trades[2])
}

func TestCSVRepository_SkipsCorruptRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trades_log.csv")
	content := strings.Join([]string{
		"Timestamp,Symbol,BuyEx,SellEx,BuyPrice,SellPrice,Profit,Balance,Note",
		"2026-10-16 08:00:00,BTC-USDT,binance,bybit,100,101,0.5,10000.5,VWAP + Slippage",
		"garbage",
		"2026-10-16 08:00:01,ETH-USDT,bybit,binance,not-a-number,101,0.5,10001,x",
		"yesterday,SOL-USDT,bybit,binance,1,2,3,4,x",
		"2026-10-16 08:00:02,SOL-USDT,hyperliquid,extended,150,151,0.25,10000.75,VWAP + Slippage",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	trades, err := NewCSVRepository(path, testLogger()).RecentTrades(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "BTC-USDT", trades[0].Symbol)
	assert.Equal(t, "SOL-USDT", trades[1].Symbol)
	assert.Equal(t, model.Hyperliquid, trades[1].BuyExchange)
	assert.Empty(t, trades[1].ID)
}

func TestCSVRepository_MissingFile(t *testing.T) {
	repo := NewCSVRepository(filepath.Join(t.TempDir(), "absent.csv"), testLogger())
	trades, err := repo.RecentTrades(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, trades)
}
