// Package execution simulates capital-constrained execution of the best opportunity
// each cycle against a per-venue paper balance ledger.
//
// A Simulator is not safe for concurrent use; the cycle loop is its only caller.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"flasharb/internal/config"
	"flasharb/internal/ledger"
	"flasharb/internal/model"
)

// Rejection reasons. They are decisions, not faults.
var (
	ErrNoOpportunity     = errors.New("no opportunity")
	ErrBelowMinimum      = errors.New("trade capital below minimum")
	ErrUnknownVenue      = errors.New("venue has no balance")
	ErrInsufficientFunds = errors.New("insufficient funds on buy venue")
	ErrUnprofitable      = errors.New("friction-adjusted profit below threshold")
)

// TradeNote is attached to every simulated trade.
const TradeNote = "VWAP + Slippage"

// InitialAction is reported until the first trade executes.
const InitialAction = "System started"

// Decision is the outcome of one Evaluate call.
type Decision struct {
	Executed bool
	// Reason is set when the trade was rejected.
	Reason   error
	Capital  float64
	Friction float64
	Trade    model.TradeRecord
}

// Simulator holds the venue balances, trade counter and recent trade history.
type Simulator struct {
	logger   *slog.Logger
	repo     ledger.Repository
	cfg      config.ExecutionConfig
	balances *Balances

	history    []model.TradeRecord
	tradeCount int
	lastAction string

	now   func() time.Time
	newID func() string
}

// NewSimulator creates a Simulator with the given starting balances.
func NewSimulator(logger *slog.Logger, repo ledger.Repository, cfg config.ExecutionConfig, initial map[model.Exchange]float64) *Simulator {
	return &Simulator{
		logger:     logger,
		repo:       repo,
		cfg:        cfg,
		balances:   NewBalances(initial),
		lastAction: InitialAction,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
}

// Seed replaces the recent history, typically with records read back from the ledger.
func (s *Simulator) Seed(trades []model.TradeRecord) {
	s.history = nil
	for _, t := range trades {
		s.remember(t)
	}
}

// Evaluate decides whether to execute the top opportunity and applies it to the balances.
func (s *Simulator) Evaluate(ctx context.Context, opportunities []model.Opportunity) Decision {
	if len(opportunities) == 0 {
		return Decision{Reason: ErrNoOpportunity}
	}
	op := opportunities[0]
	if op.MaxTradeableUSD <= 0 {
		return Decision{Reason: ErrBelowMinimum}
	}

	capital := s.balances.Total().InexactFloat64() * s.cfg.CapitalFraction
	if s.cfg.MaxTradeUSD > 0 {
		capital = min(capital, s.cfg.MaxTradeUSD)
	}
	capital = min(capital, op.MaxTradeableUSD)

	// Consuming a larger share of the visible liquidity moves the fill further from the quote.
	friction := s.cfg.SlippageBps/10000 + (capital/op.MaxTradeableUSD)*s.cfg.ImpactCoefficient
	buyPrice := op.BuyPrice * (1 + friction)
	sellPrice := op.SellPrice * (1 - friction)

	d := Decision{Capital: capital, Friction: friction}

	if capital < s.cfg.MinTradeUSD {
		d.Reason = ErrBelowMinimum
		return d
	}

	capitalDec := decimal.NewFromFloat(capital).Round(8)
	buyBal, ok := s.balances.Balance(op.BuyExchange)
	if !ok {
		d.Reason = fmt.Errorf("%w: %s", ErrUnknownVenue, op.BuyExchange)
		return d
	}
	if _, ok := s.balances.Balance(op.SellExchange); !ok {
		d.Reason = fmt.Errorf("%w: %s", ErrUnknownVenue, op.SellExchange)
		return d
	}
	if buyBal.LessThan(capitalDec) {
		d.Reason = ErrInsufficientFunds
		return d
	}

	qty := capital / buyPrice
	cost := qty * buyPrice * (1 + s.cfg.BaseFeeRate)
	revenue := qty * sellPrice * (1 - s.cfg.BaseFeeRate)
	profit := revenue - cost
	if profit <= s.cfg.MinProfitUSD {
		d.Reason = ErrUnprofitable
		return d
	}

	profitDec := decimal.NewFromFloat(profit).Round(8)
	s.balances.Settle(op.BuyExchange, op.SellExchange, capitalDec, profitDec)
	s.tradeCount++

	trade := model.TradeRecord{
		ID:           s.newID(),
		Timestamp:    s.now(),
		Symbol:       op.Symbol,
		BuyExchange:  op.BuyExchange,
		SellExchange: op.SellExchange,
		BuyPrice:     buyPrice,
		SellPrice:    sellPrice,
		ProfitUSD:    profitDec.InexactFloat64(),
		BalanceAfter: s.balances.Total().InexactFloat64(),
		Note:         TradeNote,
	}
	s.remember(trade)
	s.lastAction = fmt.Sprintf("WIN: %s (+$%.4f)", op.Symbol, trade.ProfitUSD)

	s.logger.Info("Simulated trade executed",
		"tradeNumber", s.tradeCount,
		"symbol", op.Symbol,
		"buyExchange", op.BuyExchange,
		"sellExchange", op.SellExchange,
		"capital", capital,
		"profit", trade.ProfitUSD,
		"frictionPct", friction*100,
	)

	// The in-memory ledger stays authoritative when persistence fails.
	if err := s.repo.LogTrade(ctx, trade); err != nil {
		s.logger.Error("Failed to log trade", "error", err, "tradeID", trade.ID)
	}

	d.Executed = true
	d.Trade = trade
	return d
}

func (s *Simulator) remember(t model.TradeRecord) {
	s.history = append(s.history, t)
	if n := s.cfg.HistorySize; n > 0 && len(s.history) > n {
		s.history = append([]model.TradeRecord(nil), s.history[len(s.history)-n:]...)
	}
}

// Stats returns the current balances, trade count and last action.
func (s *Simulator) Stats() model.Stats {
	return model.Stats{
		TotalUSD:   s.balances.Total().InexactFloat64(),
		Balances:   s.balances.Float64(),
		TradeCount: s.tradeCount,
		LastAction: s.lastAction,
	}
}

// History returns a copy of the recent trades, oldest first.
func (s *Simulator) History() []model.TradeRecord {
	out := make([]model.TradeRecord, len(s.history))
	copy(out, s.history)
	return out
}

// Balances exposes the venue ledger for inspection.
func (s *Simulator) Balances() *Balances {
	return s.balances
}
