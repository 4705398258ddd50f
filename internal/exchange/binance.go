package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"flasharb/internal/model"
)

// BinanceClient streams USDⓈ-M futures book tickers through the go-binance SDK.
type BinanceClient struct {
	logger *slog.Logger
	now    func() time.Time
	// serve is futures.WsCombinedBookTickerServe outside of tests.
	serve func(symbols []string, handler futures.WsBookTickerHandler, errHandler futures.ErrHandler) (chan struct{}, chan struct{}, error)
}

// NewBinanceClient creates a new BinanceClient.
func NewBinanceClient(logger *slog.Logger) *BinanceClient {
	return &BinanceClient{logger: logger, now: time.Now, serve: futures.WsCombinedBookTickerServe}
}

func (b *BinanceClient) GetName() model.Exchange {
	return model.Binance
}

// StartStream subscribes to the combined bookTicker stream and resubscribes
// with backoff whenever the SDK reports the connection closed.
func (b *BinanceClient) StartStream(ctx context.Context, quoteChan chan<- model.Quote, symbols []string) error {
	idx := newSymbolIndex(symbols, compactSymbol)
	venueSymbols := idx.venueSymbols()

	handler := func(event *futures.WsBookTickerEvent) {
		q, ok, err := b.quoteFromBookTicker(event, idx)
		if err != nil {
			b.logger.Warn("BinanceClient: failed to parse book ticker", "error", err)
			return
		}
		if !ok {
			return
		}
		select {
		case quoteChan <- q:
		case <-ctx.Done():
		}
	}
	errHandler := func(err error) {
		if err != nil && ctx.Err() == nil {
			b.logger.Error("BinanceClient: websocket error", "error", err)
		}
	}

	bo := newBackoff()
	for {
		if ctx.Err() != nil {
			b.logger.Info("BinanceClient: context cancelled, shutting down")
			return nil
		}

		b.logger.Info("BinanceClient: subscribing to book tickers", "symbols", len(venueSymbols))
		doneC, stopC, err := b.serve(venueSymbols, handler, errHandler)
		if err == nil {
			bo.Reset()
			select {
			case <-ctx.Done():
				close(stopC)
				<-doneC
				b.logger.Info("BinanceClient: context cancelled, shutting down")
				return nil
			case <-doneC:
				err = fmt.Errorf("stream closed")
			}
		}

		wait := bo.NextBackOff()
		b.logger.Error("BinanceClient: stream interrupted", "error", err, "backoff", wait)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// quoteFromBookTicker converts an SDK event. ok is false for symbols that were not requested.
func (b *BinanceClient) quoteFromBookTicker(event *futures.WsBookTickerEvent, idx symbolIndex) (model.Quote, bool, error) {
	symbol, ok := idx[strings.ToUpper(event.Symbol)]
	if !ok {
		return model.Quote{}, false, nil
	}

	bid, bidSize, err := parseLevel(event.BestBidPrice, event.BestBidQty)
	if err != nil {
		return model.Quote{}, false, fmt.Errorf("binance %s bid: %w", symbol, err)
	}
	ask, askSize, err := parseLevel(event.BestAskPrice, event.BestAskQty)
	if err != nil {
		return model.Quote{}, false, fmt.Errorf("binance %s ask: %w", symbol, err)
	}

	ts := event.Time
	if ts == 0 {
		ts = b.now().UnixMilli()
	}
	q, err := newQuote(symbol, model.Binance, bid, ask, bidSize, askSize, ts)
	if err != nil {
		return model.Quote{}, false, err
	}
	return q, true, nil
}

