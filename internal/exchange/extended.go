package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"flasharb/internal/model"
)

const extendedURL = "wss://api.starknet.extended.exchange/stream.extended.exchange/v1/orderbooks"

// ExtendedClient streams depth=1 order books from Extended. The venue serves one
// market per connection, so StartStream runs a session per symbol.
type ExtendedClient struct {
	logger  *slog.Logger
	baseURL string
	now     func() time.Time
}

// NewExtendedClient creates a new ExtendedClient.
func NewExtendedClient(logger *slog.Logger, baseURL string) *ExtendedClient {
	if baseURL == "" {
		baseURL = extendedURL
	}
	return &ExtendedClient{logger: logger, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

func (e *ExtendedClient) GetName() model.Exchange {
	return model.Extended
}

type extendedLevel struct {
	P string `json:"p"`
	Q string `json:"q"`
}

type extendedMessage struct {
	Type string `json:"type"`
	TS   int64  `json:"ts"`
	Data *struct {
		Market string          `json:"m"`
		Bids   []extendedLevel `json:"b"`
		Asks   []extendedLevel `json:"a"`
	} `json:"data"`
}

func (e *ExtendedClient) StartStream(ctx context.Context, quoteChan chan<- model.Quote, symbols []string) error {
	header := http.Header{}
	header.Set("User-Agent", "flasharb/1.0")

	var wg sync.WaitGroup
	for _, symbol := range symbols {
		symbol := strings.ToUpper(symbol)
		market := extendedMarket(symbol)
		wg.Add(1)
		go func() {
			defer wg.Done()
			runStream(ctx, e.logger.With("market", market), stream{
				name:   "ExtendedClient",
				url:    e.baseURL + "/" + market + "?depth=1",
				header: header,
				handle: func(msg []byte) ([]model.Quote, error) {
					return e.parse(msg, symbol)
				},
			}, quoteChan)
		}()
	}
	wg.Wait()
	return nil
}

func (e *ExtendedClient) parse(msg []byte, symbol string) ([]model.Quote, error) {
	var m extendedMessage
	if err := sonnet.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	if m.Data == nil {
		return nil, nil
	}
	if len(m.Data.Bids) == 0 || len(m.Data.Asks) == 0 {
		return nil, fmt.Errorf("extended %s: %w", symbol, errNoLevels)
	}

	bid, bidSize, err := parseLevel(m.Data.Bids[0].P, m.Data.Bids[0].Q)
	if err != nil {
		return nil, fmt.Errorf("extended %s bid: %w", symbol, err)
	}
	ask, askSize, err := parseLevel(m.Data.Asks[0].P, m.Data.Asks[0].Q)
	if err != nil {
		return nil, fmt.Errorf("extended %s ask: %w", symbol, err)
	}

	ts := m.TS
	if ts == 0 {
		ts = e.now().UnixMilli()
	}
	q, err := newQuote(symbol, model.Extended, bid, ask, bidSize, askSize, ts)
	if err != nil {
		return nil, err
	}
	return []model.Quote{q}, nil
}
