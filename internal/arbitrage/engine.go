package arbitrage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"flasharb/internal/book"
	"flasharb/internal/config"
	"flasharb/internal/execution"
	"flasharb/internal/model"
)

// Sink receives the result of every cycle.
type Sink interface {
	Publish(payload model.CyclePayload)
}

// ArbitrageEngine runs the scan, execute and distribute cycle on a fixed period.
type ArbitrageEngine struct {
	logger    *slog.Logger
	store     *book.Store
	scanner   *Scanner
	simulator *execution.Simulator
	sink      Sink
	cfg       config.CycleConfig

	statusLimiter *rate.Limiter
	cycles        uint64
}

// NewArbitrageEngine creates a new instance of the ArbitrageEngine.
func NewArbitrageEngine(logger *slog.Logger, store *book.Store, scanner *Scanner, simulator *execution.Simulator, sink Sink, cfg config.CycleConfig) *ArbitrageEngine {
	e := &ArbitrageEngine{
		logger:    logger,
		store:     store,
		scanner:   scanner,
		simulator: simulator,
		sink:      sink,
		cfg:       cfg,
	}
	if every := cfg.StatusLogInterval(); every > 0 {
		e.statusLimiter = rate.NewLimiter(rate.Every(every), 1)
	}
	return e
}

// Run waits for the warm-up period and then executes one cycle per interval
// until ctx is cancelled. Cycles never overlap.
func (e *ArbitrageEngine) Run(ctx context.Context) error {
	if warmup := e.cfg.Warmup(); warmup > 0 {
		e.logger.Info("Warming up order books", "duration", warmup)
		timer := time.NewTimer(warmup)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}

	ticker := time.NewTicker(e.cfg.Interval())
	defer ticker.Stop()
	e.logger.Info("Arbitrage engine started", "interval", e.cfg.Interval())

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Arbitrage engine stopped", "cycles", e.cycles)
			return nil
		case <-ticker.C:
			e.RunCycle(ctx)
		}
	}
}

// RunCycle scans the book, lets the simulator act on the best opportunity and
// publishes the result. The payload is always well formed, with empty lists
// rather than nil ones.
func (e *ArbitrageEngine) RunCycle(ctx context.Context) model.CyclePayload {
	e.cycles++

	opportunities := e.scanner.Scan()
	if opportunities == nil {
		opportunities = []model.Opportunity{}
	}

	decision := e.simulator.Evaluate(ctx, opportunities)
	if decision.Reason != nil && !errors.Is(decision.Reason, execution.ErrNoOpportunity) {
		e.logger.Debug("Top opportunity skipped",
			"symbol", opportunities[0].Symbol,
			"reason", decision.Reason,
			"capital", decision.Capital,
		)
	}

	payload := model.CyclePayload{
		Opportunities: opportunities,
		Stats:         e.simulator.Stats(),
		LastTrades:    e.simulator.History(),
	}
	e.sink.Publish(payload)

	if e.statusLimiter != nil && e.statusLimiter.Allow() {
		e.logStatus(payload)
	}
	return payload
}

func (e *ArbitrageEngine) logStatus(payload model.CyclePayload) {
	args := []any{
		"cycle", e.cycles,
		"symbols", len(e.store.Symbols()),
		"opportunities", len(payload.Opportunities),
		"totalUSD", payload.Stats.TotalUSD,
		"trades", payload.Stats.TradeCount,
		"lastAction", payload.Stats.LastAction,
	}
	if len(payload.Opportunities) > 0 {
		best := payload.Opportunities[0]
		args = append(args,
			"bestSymbol", best.Symbol,
			"bestRoute", string(best.BuyExchange)+"->"+string(best.SellExchange),
			"bestNetProfitUSD", best.NetProfitUSD,
		)
	}
	e.logger.Info("Engine status", args...)
}
