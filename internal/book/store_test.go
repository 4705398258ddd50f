package book

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flasharb/internal/model"
)

func quote(symbol string, ex model.Exchange, bid float64) model.Quote {
	return model.Quote{Symbol: symbol, Exchange: ex, Bid: bid, Ask: bid + 1, BidSize: 1, AskSize: 1, Timestamp: 1}
}

func TestStore_LastWriteWins(t *testing.T) {
	s := NewStore()
	for i := 1; i <= 50; i++ {
		s.Update("BTC-USDT", model.Binance, quote("BTC-USDT", model.Binance, float64(i)))
	}

	entries := s.Snapshot("BTC-USDT")
	require.Len(t, entries, 1)
	assert.Equal(t, model.Binance, entries[0].Exchange)
	assert.Equal(t, 50.0, entries[0].Quote.Bid)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := NewStore()
	s.Update("ETH-USDT", model.Bybit, quote("ETH-USDT", model.Bybit, 10))

	entries := s.Snapshot("ETH-USDT")
	entries[0].Quote.Bid = 999
	s.Update("ETH-USDT", model.Bybit, quote("ETH-USDT", model.Bybit, 11))

	assert.Equal(t, 999.0, entries[0].Quote.Bid)
	assert.Equal(t, 11.0, s.Snapshot("ETH-USDT")[0].Quote.Bid)
}

func TestStore_UnknownSymbol(t *testing.T) {
	s := NewStore()
	assert.Empty(t, s.Snapshot("NOPE-USDT"))
	assert.Equal(t, 0, s.ExchangeCount("NOPE-USDT"))
	assert.Empty(t, s.Symbols())
}

func TestStore_SymbolsAndCounts(t *testing.T) {
	s := NewStore()
	s.Update("SOL-USDT", model.Binance, quote("SOL-USDT", model.Binance, 1))
	s.Update("BTC-USDT", model.Binance, quote("BTC-USDT", model.Binance, 1))
	s.Update("BTC-USDT", model.Bybit, quote("BTC-USDT", model.Bybit, 1))
	s.Update("BTC-USDT", model.Hyperliquid, quote("BTC-USDT", model.Hyperliquid, 1))

	assert.Equal(t, []string{"BTC-USDT", "SOL-USDT"}, s.Symbols())
	assert.Equal(t, 3, s.ExchangeCount("BTC-USDT"))
	assert.Equal(t, 1, s.ExchangeCount("SOL-USDT"))

	entries := s.Snapshot("BTC-USDT")
	require.Len(t, entries, 3)
	assert.Equal(t, model.Binance, entries[0].Exchange)
	assert.Equal(t, model.Bybit, entries[1].Exchange)
	assert.Equal(t, model.Hyperliquid, entries[2].Exchange)
}

func TestStore_ConcurrentWriters(t *testing.T) {
	s := NewStore()
	exchanges := []model.Exchange{model.Binance, model.Bybit, model.Hyperliquid, model.Extended}
	symbols := []string{"BTC-USDT", "ETH-USDT", "SOL-USDT"}

	var wg sync.WaitGroup
	for _, ex := range exchanges {
		wg.Add(1)
		go func(ex model.Exchange) {
			defer wg.Done()
			for i := 1; i <= 1000; i++ {
				for _, sym := range symbols {
					// Bid and Ask move together so a torn read would break Ask-Bid == 1.
					s.Update(sym, ex, quote(sym, ex, float64(i)))
				}
			}
		}(ex)
	}

	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			for _, sym := range s.Symbols() {
				for _, e := range s.Snapshot(sym) {
					if e.Quote.Ask-e.Quote.Bid != 1 {
						t.Errorf("torn quote for %s/%s: %+v", sym, e.Exchange, e.Quote)
						return
					}
				}
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-readerDone

	for _, sym := range symbols {
		entries := s.Snapshot(sym)
		require.Len(t, entries, len(exchanges), fmt.Sprintf("symbol %s", sym))
		for _, e := range entries {
			assert.Equal(t, 1000.0, e.Quote.Bid)
		}
	}
}

func TestStore_Consume(t *testing.T) {
	s := NewStore()
	ch := make(chan model.Quote, 4)
	ch <- quote("BTC-USDT", model.Kraken, 5)
	ch <- quote("BTC-USDT", model.Kraken, 6)
	close(ch)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Consume(ctx, ch)

	entries := s.Snapshot("BTC-USDT")
	require.Len(t, entries, 1)
	assert.Equal(t, 6.0, entries[0].Quote.Bid)
}
