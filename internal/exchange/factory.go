package exchange

import (
	"fmt"
	"log/slog"

	"flasharb/internal/config"
	"flasharb/internal/model"
)

// NewClient creates a new exchange client based on the given name and configuration.
// A non-empty cfg.URL overrides the venue's public endpoint.
func NewClient(name string, logger *slog.Logger, cfg config.ExchangeConfig) (ExchangeClient, error) {
	switch model.Exchange(name) {
	case model.Binance:
		return NewBinanceClient(logger), nil
	case model.Bybit:
		return NewBybitClient(logger, cfg.URL), nil
	case model.Hyperliquid:
		return NewHyperliquidClient(logger, cfg.URL), nil
	case model.Extended:
		return NewExtendedClient(logger, cfg.URL), nil
	case model.Kraken:
		return NewKrakenClient(logger, cfg.URL), nil
	default:
		return nil, fmt.Errorf("unknown exchange: %s", name)
	}
}
