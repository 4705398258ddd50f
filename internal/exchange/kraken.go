package exchange

import (
	"context"
	"log/slog"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"flasharb/internal/model"
)

const krakenURL = "wss://futures.kraken.com/ws/v1"

// KrakenClient implements the ExchangeClient interface for Kraken Futures perpetuals.
type KrakenClient struct {
	logger *slog.Logger
	url    string
	now    func() time.Time
}

// NewKrakenClient creates a new KrakenClient.
func NewKrakenClient(logger *slog.Logger, url string) *KrakenClient {
	if url == "" {
		url = krakenURL
	}
	return &KrakenClient{logger: logger, url: url, now: time.Now}
}

func (k *KrakenClient) GetName() model.Exchange {
	return model.Kraken
}

type krakenMessage struct {
	Event     string  `json:"event"`
	Feed      string  `json:"feed"`
	ProductID string  `json:"product_id"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	BidSize   float64 `json:"bid_size"`
	AskSize   float64 `json:"ask_size"`
	Time      int64   `json:"time"`
}

// StartStream connects to the Kraken Futures WebSocket API and streams ticker updates.
func (k *KrakenClient) StartStream(ctx context.Context, quoteChan chan<- model.Quote, symbols []string) error {
	idx := newSymbolIndex(symbols, krakenProduct)
	products := idx.venueSymbols()

	return runStream(ctx, k.logger, stream{
		name: "KrakenClient",
		url:  k.url,
		subscribe: func() []any {
			return []any{map[string]any{
				"event":       "subscribe",
				"feed":        "ticker",
				"product_ids": products,
			}}
		},
		handle: func(msg []byte) ([]model.Quote, error) {
			return k.parse(msg, idx)
		},
	}, quoteChan)
}

func (k *KrakenClient) parse(msg []byte, idx symbolIndex) ([]model.Quote, error) {
	var m krakenMessage
	if err := sonnet.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	// Handle subscription confirmation and heartbeats
	if m.Event != "" {
		if m.Event == "subscribed" {
			k.logger.Info("KrakenClient: subscription confirmed", "feed", m.Feed)
		}
		return nil, nil
	}
	if m.Feed != "ticker" {
		return nil, nil
	}
	symbol, ok := idx[m.ProductID]
	if !ok {
		return nil, nil
	}

	ts := m.Time
	if ts == 0 {
		ts = k.now().UnixMilli()
	}
	q, err := newQuote(symbol, model.Kraken, m.Bid, m.Ask, m.BidSize, m.AskSize, ts)
	if err != nil {
		return nil, err
	}
	return []model.Quote{q}, nil
}
