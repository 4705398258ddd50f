package execution

import (
	"sort"

	"github.com/shopspring/decimal"

	"flasharb/internal/model"
)

// Balances is the per-venue USD ledger. It is owned by a single goroutine.
type Balances struct {
	venues map[model.Exchange]decimal.Decimal
}

// NewBalances creates a ledger seeded with the initial venue balances.
func NewBalances(initial map[model.Exchange]float64) *Balances {
	b := &Balances{venues: make(map[model.Exchange]decimal.Decimal, len(initial))}
	for ex, usd := range initial {
		b.venues[ex] = decimal.NewFromFloat(usd)
	}
	return b
}

// Balance returns the balance held on exchange and whether the venue is known.
func (b *Balances) Balance(exchange model.Exchange) (decimal.Decimal, bool) {
	bal, ok := b.venues[exchange]
	return bal, ok
}

// Total returns the sum of every venue balance.
func (b *Balances) Total() decimal.Decimal {
	total := decimal.Zero
	for _, ex := range b.Venues() {
		total = total.Add(b.venues[ex])
	}
	return total
}

// Venues returns the known venues in name order.
func (b *Balances) Venues() []model.Exchange {
	venues := make([]model.Exchange, 0, len(b.venues))
	for ex := range b.venues {
		venues = append(venues, ex)
	}
	sort.Slice(venues, func(i, j int) bool { return venues[i] < venues[j] })
	return venues
}

// Settle debits capital from the buy venue and credits capital plus profit to the sell venue.
// Callers must have checked that both venues exist.
func (b *Balances) Settle(buy, sell model.Exchange, capital, profit decimal.Decimal) {
	b.venues[buy] = b.venues[buy].Sub(capital)
	b.venues[sell] = b.venues[sell].Add(capital).Add(profit)
}

// Float64 returns a copy of the balances as float64 values for reporting.
func (b *Balances) Float64() map[model.Exchange]float64 {
	out := make(map[model.Exchange]float64, len(b.venues))
	for ex, bal := range b.venues {
		out[ex] = bal.InexactFloat64()
	}
	return out
}
