package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"flasharb/internal/model"
)

const hyperliquidURL = "wss://api.hyperliquid.xyz/ws"

// HyperliquidClient streams l2Book snapshots from Hyperliquid, one subscription per coin.
type HyperliquidClient struct {
	logger *slog.Logger
	url    string
	now    func() time.Time
}

// NewHyperliquidClient creates a new HyperliquidClient.
func NewHyperliquidClient(logger *slog.Logger, url string) *HyperliquidClient {
	if url == "" {
		url = hyperliquidURL
	}
	return &HyperliquidClient{logger: logger, url: url, now: time.Now}
}

func (h *HyperliquidClient) GetName() model.Exchange {
	return model.Hyperliquid
}

type hyperliquidLevel struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
	N  int    `json:"n"`
}

type hyperliquidMessage struct {
	Channel string `json:"channel"`
	Data    struct {
		Coin   string               `json:"coin"`
		Time   int64                `json:"time"`
		Levels [][]hyperliquidLevel `json:"levels"`
	} `json:"data"`
}

func hyperliquidCoin(symbol string) string {
	base, _ := splitSymbol(symbol)
	return base
}

// StartStream multiplexes every coin over a single connection.
func (h *HyperliquidClient) StartStream(ctx context.Context, quoteChan chan<- model.Quote, symbols []string) error {
	idx := newSymbolIndex(symbols, hyperliquidCoin)

	return runStream(ctx, h.logger, stream{
		name: "HyperliquidClient",
		url:  h.url,
		subscribe: func() []any {
			msgs := make([]any, 0, len(idx))
			for _, coin := range idx.venueSymbols() {
				msgs = append(msgs, map[string]any{
					"method":       "subscribe",
					"subscription": map[string]string{"type": "l2Book", "coin": coin},
				})
			}
			return msgs
		},
		ping:         map[string]string{"method": "ping"},
		pingInterval: 30 * time.Second,
		handle: func(msg []byte) ([]model.Quote, error) {
			return h.parse(msg, idx)
		},
	}, quoteChan)
}

func (h *HyperliquidClient) parse(msg []byte, idx symbolIndex) ([]model.Quote, error) {
	var m hyperliquidMessage
	if err := sonnet.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	if m.Channel != "l2Book" {
		return nil, nil
	}
	symbol, ok := idx[m.Data.Coin]
	if !ok {
		return nil, nil
	}
	if len(m.Data.Levels) < 2 || len(m.Data.Levels[0]) == 0 || len(m.Data.Levels[1]) == 0 {
		return nil, fmt.Errorf("hyperliquid %s: %w", symbol, errNoLevels)
	}

	top := m.Data.Levels[0][0]
	bid, bidSize, err := parseLevel(top.Px, top.Sz)
	if err != nil {
		return nil, fmt.Errorf("hyperliquid %s bid: %w", symbol, err)
	}
	top = m.Data.Levels[1][0]
	ask, askSize, err := parseLevel(top.Px, top.Sz)
	if err != nil {
		return nil, fmt.Errorf("hyperliquid %s ask: %w", symbol, err)
	}

	ts := m.Data.Time
	if ts == 0 {
		ts = h.now().UnixMilli()
	}
	q, err := newQuote(symbol, model.Hyperliquid, bid, ask, bidSize, askSize, ts)
	if err != nil {
		return nil, err
	}
	return []model.Quote{q}, nil
}
