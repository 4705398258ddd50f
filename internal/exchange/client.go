// Package exchange contains the feed normalizers. Each client turns one venue's
// WebSocket market data into model.Quote events.
package exchange

import (
	"context"

	"flasharb/internal/model"
)

// ExchangeClient defines the standard interface for all exchange clients.
// StartStream blocks until ctx is cancelled, reconnecting on its own.
type ExchangeClient interface {
	GetName() model.Exchange
	StartStream(ctx context.Context, quoteChan chan<- model.Quote, symbols []string) error
}
