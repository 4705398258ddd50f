package exchange

import (
	"errors"
	"fmt"
	"strconv"

	"flasharb/internal/model"
)

var errInvalidQuote = errors.New("invalid quote")

// newQuote builds a Quote and rejects anything the scanner cannot use.
func newQuote(symbol string, exchange model.Exchange, bid, ask, bidSize, askSize float64, ts int64) (model.Quote, error) {
	q := model.Quote{
		Symbol:    symbol,
		Exchange:  exchange,
		Bid:       bid,
		Ask:       ask,
		BidSize:   bidSize,
		AskSize:   askSize,
		Timestamp: ts,
	}
	if !q.Valid() {
		return model.Quote{}, fmt.Errorf("%w: %s %s bid=%v ask=%v", errInvalidQuote, exchange, symbol, bid, ask)
	}
	return q, nil
}

// parseLevel parses a price/size pair transmitted as strings.
func parseLevel(price, size string) (float64, float64, error) {
	p, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse price %q: %w", price, err)
	}
	s, err := strconv.ParseFloat(size, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse size %q: %w", size, err)
	}
	return p, s, nil
}
