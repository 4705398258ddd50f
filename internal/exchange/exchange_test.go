package exchange

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flasharb/internal/config"
	"flasharb/internal/model"
)

var testNow = time.UnixMilli(1_700_000_000_000)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func TestSymbolMapping(t *testing.T) {
	assert.Equal(t, "BTCUSDT", compactSymbol("btc-usdt"))
	assert.Equal(t, "ETH-USD", extendedMarket("ETH-USDT"))
	assert.Equal(t, "PF_XBTUSD", krakenProduct("BTC-USDT"))
	assert.Equal(t, "PF_SOLUSD", krakenProduct("SOL-USDT"))
	assert.Equal(t, "DOGE", hyperliquidCoin("DOGE-USDT"))

	idx := newSymbolIndex([]string{"BTC-USDT", "eth-usdt"}, compactSymbol)
	assert.Equal(t, "ETH-USDT", idx["ETHUSDT"])
	assert.ElementsMatch(t, []string{"BTCUSDT", "ETHUSDT"}, idx.venueSymbols())
}

func TestNewQuote(t *testing.T) {
	q, err := newQuote("BTC-USDT", model.Bybit, 100, 101, 1, 2, 42)
	require.NoError(t, err)
	assert.Equal(t, model.Quote{Symbol: "BTC-USDT", Exchange: model.Bybit, Bid: 100, Ask: 101, BidSize: 1, AskSize: 2, Timestamp: 42}, q)

	_, err = newQuote("BTC-USDT", model.Bybit, 0, 101, 1, 2, 42)
	assert.ErrorIs(t, err, errInvalidQuote)
	_, err = newQuote("BTC-USDT", model.Bybit, 100, 101, -1, 2, 42)
	assert.ErrorIs(t, err, errInvalidQuote)

	_, _, err = parseLevel("abc", "1")
	assert.Error(t, err)
	_, _, err = parseLevel("1", "")
	assert.Error(t, err)
}

func TestBybitClient_Parse(t *testing.T) {
	b := NewBybitClient(testLogger(), "")
	b.now = func() time.Time { return testNow }
	idx := newSymbolIndex([]string{"BTC-USDT"}, compactSymbol)

	tests := []struct {
		name    string
		msg     string
		want    []model.Quote
		wantErr bool
	}{
		{
			name: "snapshot",
			msg:  `{"topic":"orderbook.1.BTCUSDT","type":"snapshot","ts":1700000000123,"data":{"s":"BTCUSDT","b":[["60000.5","1.25"]],"a":[["60001","0.5"]],"u":1,"seq":2}}`,
			want: []model.Quote{{Symbol: "BTC-USDT", Exchange: model.Bybit, Bid: 60000.5, Ask: 60001, BidSize: 1.25, AskSize: 0.5, Timestamp: 1700000000123}},
		},
		{name: "pong", msg: `{"success":true,"ret_msg":"pong","conn_id":"x","op":"ping"}`},
		{name: "subscribe ack", msg: `{"success":true,"ret_msg":"","conn_id":"x","op":"subscribe"}`},
		{name: "unrequested symbol", msg: `{"topic":"orderbook.1.ETHUSDT","ts":1,"data":{"s":"ETHUSDT","b":[["1","1"]],"a":[["2","1"]]}}`},
		{name: "one-sided delta", msg: `{"topic":"orderbook.1.BTCUSDT","type":"delta","ts":1,"data":{"s":"BTCUSDT","b":[],"a":[["2","1"]]}}`},
		{name: "bad price", msg: `{"topic":"orderbook.1.BTCUSDT","ts":1,"data":{"s":"BTCUSDT","b":[["x","1"]],"a":[["2","1"]]}}`, wantErr: true},
		{name: "crossed zero bid", msg: `{"topic":"orderbook.1.BTCUSDT","ts":1,"data":{"s":"BTCUSDT","b":[["0","1"]],"a":[["2","1"]]}}`, wantErr: true},
		{name: "not json", msg: `pong`, wantErr: true},
		{
			name: "missing ts",
			msg:  `{"topic":"orderbook.1.BTCUSDT","data":{"s":"BTCUSDT","b":[["1","1"]],"a":[["2","1"]]}}`,
			want: []model.Quote{{Symbol: "BTC-USDT", Exchange: model.Bybit, Bid: 1, Ask: 2, BidSize: 1, AskSize: 1, Timestamp: testNow.UnixMilli()}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.parse([]byte(tt.msg), idx)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHyperliquidClient_Parse(t *testing.T) {
	h := NewHyperliquidClient(testLogger(), "")
	h.now = func() time.Time { return testNow }
	idx := newSymbolIndex([]string{"SOL-USDT"}, hyperliquidCoin)

	msg := `{"channel":"l2Book","data":{"coin":"SOL","time":1700000000500,"levels":[[{"px":"150.1","sz":"20","n":3},{"px":"150.0","sz":"5","n":1}],[{"px":"150.2","sz":"7.5","n":2}]]}}`
	got, err := h.parse([]byte(msg), idx)
	require.NoError(t, err)
	assert.Equal(t, []model.Quote{{Symbol: "SOL-USDT", Exchange: model.Hyperliquid, Bid: 150.1, Ask: 150.2, BidSize: 20, AskSize: 7.5, Timestamp: 1700000000500}}, got)

	got, err = h.parse([]byte(`{"channel":"subscriptionResponse","data":{"method":"subscribe"}}`), idx)
	assert.NoError(t, err)
	assert.Empty(t, got)

	got, err = h.parse([]byte(`{"channel":"pong"}`), idx)
	assert.NoError(t, err)
	assert.Empty(t, got)

	_, err = h.parse([]byte(`{"channel":"l2Book","data":{"coin":"SOL","time":1,"levels":[[],[{"px":"1","sz":"1","n":1}]]}}`), idx)
	assert.ErrorIs(t, err, errNoLevels)
}

func TestExtendedClient_Parse(t *testing.T) {
	e := NewExtendedClient(testLogger(), "")
	e.now = func() time.Time { return testNow }

	msg := `{"type":"SNAPSHOT","data":{"t":"SNAPSHOT","m":"BTC-USD","b":[{"p":"60000","q":"0.8"}],"a":[{"p":"60010.5","q":"1.1"}]},"ts":1700000000900,"seq":1}`
	got, err := e.parse([]byte(msg), "BTC-USDT")
	require.NoError(t, err)
	assert.Equal(t, []model.Quote{{Symbol: "BTC-USDT", Exchange: model.Extended, Bid: 60000, Ask: 60010.5, BidSize: 0.8, AskSize: 1.1, Timestamp: 1700000000900}}, got)

	got, err = e.parse([]byte(`{"type":"HEARTBEAT"}`), "BTC-USDT")
	assert.NoError(t, err)
	assert.Empty(t, got)

	_, err = e.parse([]byte(`{"data":{"m":"BTC-USD","b":[],"a":[{"p":"1","q":"1"}]},"ts":1}`), "BTC-USDT")
	assert.ErrorIs(t, err, errNoLevels)

	assert.Equal(t, "wss://example.test/books", NewExtendedClient(testLogger(), "wss://example.test/books/").baseURL)
}

func TestKrakenClient_Parse(t *testing.T) {
	k := NewKrakenClient(testLogger(), "")
	k.now = func() time.Time { return testNow }
	idx := newSymbolIndex([]string{"BTC-USDT"}, krakenProduct)

	msg := `{"time":1700000000700,"product_id":"PF_XBTUSD","funding_rate":0.0001,"bid":60000,"ask":60005.5,"bid_size":2.5,"ask_size":1,"volume":100,"feed":"ticker"}`
	got, err := k.parse([]byte(msg), idx)
	require.NoError(t, err)
	assert.Equal(t, []model.Quote{{Symbol: "BTC-USDT", Exchange: model.Kraken, Bid: 60000, Ask: 60005.5, BidSize: 2.5, AskSize: 1, Timestamp: 1700000000700}}, got)

	for _, control := range []string{
		`{"event":"info","version":1}`,
		`{"event":"subscribed","feed":"ticker","product_ids":["PF_XBTUSD"]}`,
		`{"feed":"heartbeat","time":1}`,
	} {
		got, err := k.parse([]byte(control), idx)
		assert.NoError(t, err)
		assert.Empty(t, got)
	}

	_, err = k.parse([]byte(`{"feed":"ticker","product_id":"PF_XBTUSD","bid":0,"ask":1,"time":1}`), idx)
	assert.ErrorIs(t, err, errInvalidQuote)
}

func TestBinanceClient_QuoteFromBookTicker(t *testing.T) {
	b := NewBinanceClient(testLogger())
	b.now = func() time.Time { return testNow }
	idx := newSymbolIndex([]string{"BTC-USDT"}, compactSymbol)

	q, ok, err := b.quoteFromBookTicker(&futures.WsBookTickerEvent{
		Symbol: "BTCUSDT", BestBidPrice: "60000.10", BestBidQty: "3", BestAskPrice: "60000.20", BestAskQty: "4", Time: 1700000000001,
	}, idx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.Quote{Symbol: "BTC-USDT", Exchange: model.Binance, Bid: 60000.10, Ask: 60000.20, BidSize: 3, AskSize: 4, Timestamp: 1700000000001}, q)

	_, ok, err = b.quoteFromBookTicker(&futures.WsBookTickerEvent{Symbol: "ETHUSDT"}, idx)
	assert.NoError(t, err)
	assert.False(t, ok)

	_, _, err = b.quoteFromBookTicker(&futures.WsBookTickerEvent{Symbol: "BTCUSDT", BestBidPrice: "x", BestBidQty: "1", BestAskPrice: "1", BestAskQty: "1"}, idx)
	assert.Error(t, err)
}

func TestBinanceClient_StartStream(t *testing.T) {
	b := NewBinanceClient(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan struct{})
	b.serve = func(symbols []string, handler futures.WsBookTickerHandler, errHandler futures.ErrHandler) (chan struct{}, chan struct{}, error) {
		assert.Equal(t, []string{"BTCUSDT"}, symbols)
		doneC, stopC := make(chan struct{}), make(chan struct{})
		go func() {
			defer close(doneC)
			handler(&futures.WsBookTickerEvent{Symbol: "BTCUSDT", BestBidPrice: "1", BestBidQty: "1", BestAskPrice: "2", BestAskQty: "1", Time: 5})
			<-stopC
			close(stopped)
		}()
		return doneC, stopC, nil
	}

	quotes := make(chan model.Quote, 1)
	result := make(chan error, 1)
	go func() { result <- b.StartStream(ctx, quotes, []string{"BTC-USDT"}) }()

	select {
	case q := <-quotes:
		assert.Equal(t, "BTC-USDT", q.Symbol)
		assert.Equal(t, int64(5), q.Timestamp)
	case <-time.After(2 * time.Second):
		t.Fatal("no quote received")
	}

	cancel()
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("StartStream did not return")
	}
	<-stopped
}

func TestNewClient(t *testing.T) {
	for _, name := range []string{"binance", "bybit", "hyperliquid", "extended", "kraken"} {
		client, err := NewClient(name, testLogger(), config.ExchangeConfig{})
		require.NoError(t, err, name)
		assert.Equal(t, model.Exchange(name), client.GetName())
	}

	_, err := NewClient("mtgox", testLogger(), config.ExchangeConfig{})
	assert.Error(t, err)
}
