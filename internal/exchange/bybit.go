package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"flasharb/internal/model"
)

const bybitURL = "wss://stream.bybit.com/v5/public/linear"

// BybitClient streams the top of the Bybit v5 linear order book.
type BybitClient struct {
	logger *slog.Logger
	url    string
	now    func() time.Time
}

// NewBybitClient creates a new BybitClient.
func NewBybitClient(logger *slog.Logger, url string) *BybitClient {
	if url == "" {
		url = bybitURL
	}
	return &BybitClient{logger: logger, url: url, now: time.Now}
}

func (b *BybitClient) GetName() model.Exchange {
	return model.Bybit
}

type bybitMessage struct {
	Op    string `json:"op"`
	Topic string `json:"topic"`
	TS    int64  `json:"ts"`
	Data  *struct {
		Symbol string      `json:"s"`
		Bids   [][2]string `json:"b"`
		Asks   [][2]string `json:"a"`
	} `json:"data"`
}

// StartStream subscribes to orderbook.1 for every symbol on one connection.
func (b *BybitClient) StartStream(ctx context.Context, quoteChan chan<- model.Quote, symbols []string) error {
	idx := newSymbolIndex(symbols, compactSymbol)
	args := make([]string, 0, len(idx))
	for _, s := range idx.venueSymbols() {
		args = append(args, "orderbook.1."+s)
	}

	return runStream(ctx, b.logger, stream{
		name: "BybitClient",
		url:  b.url,
		subscribe: func() []any {
			return []any{map[string]any{"op": "subscribe", "args": args}}
		},
		ping:         map[string]string{"op": "ping"},
		pingInterval: 20 * time.Second,
		handle: func(msg []byte) ([]model.Quote, error) {
			return b.parse(msg, idx)
		},
	}, quoteChan)
}

func (b *BybitClient) parse(msg []byte, idx symbolIndex) ([]model.Quote, error) {
	var m bybitMessage
	if err := sonnet.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	// pong, subscription acks
	if m.Op != "" || m.Data == nil {
		return nil, nil
	}
	symbol, ok := idx[m.Data.Symbol]
	if !ok {
		return nil, nil
	}
	// Deltas with one side unchanged omit it; they carry no full top of book.
	if len(m.Data.Bids) == 0 || len(m.Data.Asks) == 0 {
		return nil, nil
	}

	bid, bidSize, err := parseLevel(m.Data.Bids[0][0], m.Data.Bids[0][1])
	if err != nil {
		return nil, fmt.Errorf("bybit %s bid: %w", symbol, err)
	}
	ask, askSize, err := parseLevel(m.Data.Asks[0][0], m.Data.Asks[0][1])
	if err != nil {
		return nil, fmt.Errorf("bybit %s ask: %w", symbol, err)
	}

	ts := m.TS
	if ts == 0 {
		ts = b.now().UnixMilli()
	}
	q, err := newQuote(symbol, model.Bybit, bid, ask, bidSize, askSize, ts)
	if err != nil {
		return nil, err
	}
	return []model.Quote{q}, nil
}
