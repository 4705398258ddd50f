package model

import (
	"math"
	"time"
)

// Exchange identifies a trading venue.
type Exchange string

const (
	Binance     Exchange = "binance"
	Bybit       Exchange = "bybit"
	Hyperliquid Exchange = "hyperliquid"
	Extended    Exchange = "extended"
	Kraken      Exchange = "kraken"
)

// Quote represents a single best bid/ask update from an exchange.
// Symbols use the exchange-neutral "BASE-QUOTE" form, e.g. "BTC-USDT".
type Quote struct {
	Symbol    string
	Exchange  Exchange
	Bid       float64
	Ask       float64
	BidSize   float64
	AskSize   float64
	Timestamp int64 // epoch milliseconds
}

// Valid reports whether every numeric field is usable by the scanner.
func (q Quote) Valid() bool {
	for _, v := range []float64{q.Bid, q.Ask, q.BidSize, q.AskSize} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return q.Symbol != "" && q.Exchange != "" && q.Bid > 0 && q.Ask > 0 && q.BidSize >= 0 && q.AskSize >= 0
}

// Opportunity is a directional cross-exchange arbitrage found during one scan.
type Opportunity struct {
	Symbol              string   `json:"symbol"`
	BuyExchange         Exchange `json:"buy_exchange"`
	BuyPrice            float64  `json:"buy_price"`
	SellExchange        Exchange `json:"sell_exchange"`
	SellPrice           float64  `json:"sell_price"`
	SpreadPct           float64  `json:"spread_pct"`
	TotalFeesPct        float64  `json:"total_fees_pct"`
	NetProfitPct        float64  `json:"net_profit_pct"`
	NetProfitUSD        float64  `json:"net_profit_usd"`
	MaxTradeableQty     float64  `json:"max_tradeable_qty"`
	MaxTradeableUSD     float64  `json:"max_tradeable_usd"`
	LiquidityBottleneck Exchange `json:"liquidity_bottleneck"`
	DataAgeMS           int64    `json:"data_age_ms"`
	Timestamp           int64    `json:"timestamp"`
}

// TradeRecord represents a completed simulated arbitrage trade.
type TradeRecord struct {
	ID           string    `json:"id" db:"id"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
	Symbol       string    `json:"symbol" db:"symbol"`
	BuyExchange  Exchange  `json:"buy_exchange" db:"buy_exchange"`
	SellExchange Exchange  `json:"sell_exchange" db:"sell_exchange"`
	BuyPrice     float64   `json:"buy_price" db:"buy_price"`
	SellPrice    float64   `json:"sell_price" db:"sell_price"`
	ProfitUSD    float64   `json:"profit_usd" db:"profit_usd"`
	BalanceAfter float64   `json:"balance_after" db:"balance_after"`
	Note         string    `json:"note" db:"note"`
}

// Stats summarises the simulated account after a cycle.
type Stats struct {
	TotalUSD   float64              `json:"total_usd"`
	Balances   map[Exchange]float64 `json:"balances"`
	TradeCount int                  `json:"trade_count"`
	LastAction string               `json:"last_action"`
}

// CyclePayload is handed to the distribution sink once per cycle.
type CyclePayload struct {
	Opportunities []Opportunity `json:"opportunities"`
	Stats         Stats         `json:"stats"`
	LastTrades    []TradeRecord `json:"last_trades"`
}
