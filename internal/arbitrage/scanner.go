package arbitrage

import (
	"sort"
	"time"

	"flasharb/internal/book"
	"flasharb/internal/config"
	"flasharb/internal/fees"
	"flasharb/internal/model"
)

// Scanner finds fee-adjusted cross-exchange opportunities in the book store.
// Scan only reads from the store.
type Scanner struct {
	store *book.Store
	fees  *fees.Table
	cfg   config.ScannerConfig
	now   func() time.Time
}

// NewScanner creates a new Scanner.
func NewScanner(store *book.Store, fees *fees.Table, cfg config.ScannerConfig) *Scanner {
	return &Scanner{store: store, fees: fees, cfg: cfg, now: time.Now}
}

// Scan returns every opportunity in the current book, most profitable first.
func (s *Scanner) Scan() []model.Opportunity {
	now := s.now().UnixMilli()
	var opportunities []model.Opportunity

	for _, symbol := range s.store.Symbols() {
		entries := s.store.Snapshot(symbol)
		if len(entries) < 2 {
			continue
		}
		for _, buy := range entries {
			for _, sell := range entries {
				if buy.Exchange == sell.Exchange {
					continue
				}
				if op, ok := s.evaluate(symbol, buy, sell, now); ok {
					opportunities = append(opportunities, op)
				}
			}
		}
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		a, b := opportunities[i], opportunities[j]
		if a.NetProfitUSD != b.NetProfitUSD {
			return a.NetProfitUSD > b.NetProfitUSD
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if a.BuyExchange != b.BuyExchange {
			return a.BuyExchange < b.BuyExchange
		}
		return a.SellExchange < b.SellExchange
	})
	return opportunities
}

// evaluate checks buying at buy's ask and selling at sell's bid.
func (s *Scanner) evaluate(symbol string, buy, sell book.Entry, now int64) (model.Opportunity, bool) {
	bq, sq := buy.Quote, sell.Quote
	if !bq.Valid() || !sq.Valid() {
		return model.Opportunity{}, false
	}

	// The pair is as old as its oldest quote.
	age := max(quoteAge(now, bq.Timestamp), quoteAge(now, sq.Timestamp))
	if age > s.cfg.MaxStalenessMS {
		return model.Opportunity{}, false
	}

	buyPrice, sellPrice := bq.Ask, sq.Bid
	if sellPrice <= buyPrice {
		return model.Opportunity{}, false
	}

	qty := min(bq.AskSize, sq.BidSize)
	tradeableUSD := qty * buyPrice
	if tradeableUSD < s.cfg.MinTradeUSD {
		return model.Opportunity{}, false
	}

	buyFeePct := s.fees.TakerFee(buy.Exchange)
	sellFeePct := s.fees.TakerFee(sell.Exchange)

	cost := tradeableUSD * (1 + buyFeePct/100)
	revenue := qty * sellPrice * (1 - sellFeePct/100)
	netProfitUSD := revenue - cost
	if netProfitUSD <= 0 || netProfitUSD <= s.cfg.MinProfitUSD {
		return model.Opportunity{}, false
	}

	bottleneck := sell.Exchange
	if bq.AskSize < sq.BidSize {
		bottleneck = buy.Exchange
	}

	return model.Opportunity{
		Symbol:              symbol,
		BuyExchange:         buy.Exchange,
		BuyPrice:            buyPrice,
		SellExchange:        sell.Exchange,
		SellPrice:           sellPrice,
		SpreadPct:           (sellPrice - buyPrice) / buyPrice * 100,
		TotalFeesPct:        buyFeePct + sellFeePct,
		NetProfitPct:        netProfitUSD / cost * 100,
		NetProfitUSD:        netProfitUSD,
		MaxTradeableQty:     qty,
		MaxTradeableUSD:     tradeableUSD,
		LiquidityBottleneck: bottleneck,
		DataAgeMS:           age,
		Timestamp:           now,
	}, true
}

// quoteAge clamps quotes stamped in the future to zero age.
func quoteAge(now, ts int64) int64 {
	if ts >= now {
		return 0
	}
	return now - ts
}
