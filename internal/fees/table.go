package fees

import "flasharb/internal/model"

// Fee holds maker and taker rates in percent (0.05 means 0.05%).
type Fee struct {
	Maker float64
	Taker float64
}

// Table is a read-only per-exchange fee lookup. Unknown exchanges are charged the
// fallback rates so a misconfigured venue never looks cheaper than it is.
type Table struct {
	fees     map[model.Exchange]Fee
	fallback Fee
}

// NewTable copies fees into a new Table.
func NewTable(fees map[model.Exchange]Fee, fallback Fee) *Table {
	t := &Table{fees: make(map[model.Exchange]Fee, len(fees)), fallback: fallback}
	for ex, f := range fees {
		t.fees[ex] = f
	}
	return t
}

// TakerFee returns the taker rate in percent for exchange.
func (t *Table) TakerFee(exchange model.Exchange) float64 {
	if f, ok := t.fees[exchange]; ok {
		return f.Taker
	}
	return t.fallback.Taker
}

// MakerFee returns the maker rate in percent for exchange.
func (t *Table) MakerFee(exchange model.Exchange) float64 {
	if f, ok := t.fees[exchange]; ok {
		return f.Maker
	}
	return t.fallback.Maker
}
