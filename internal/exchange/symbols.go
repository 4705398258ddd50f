package exchange

import "strings"

// splitSymbol splits "BTC-USDT" into "BTC" and "USDT".
func splitSymbol(symbol string) (base, quote string) {
	base, quote, _ = strings.Cut(strings.ToUpper(symbol), "-")
	return base, quote
}

// compactSymbol maps "BTC-USDT" to "BTCUSDT" (Binance, Bybit).
func compactSymbol(symbol string) string {
	base, quote := splitSymbol(symbol)
	return base + quote
}

// extendedMarket maps "BTC-USDT" to "BTC-USD".
func extendedMarket(symbol string) string {
	base, _ := splitSymbol(symbol)
	return base + "-USD"
}

// krakenProduct maps "BTC-USDT" to the perpetual "PF_XBTUSD".
func krakenProduct(symbol string) string {
	base, _ := splitSymbol(symbol)
	if base == "BTC" {
		base = "XBT"
	}
	return "PF_" + base + "USD"
}

// symbolIndex maps venue symbols back to the neutral form.
type symbolIndex map[string]string

func newSymbolIndex(symbols []string, venue func(string) string) symbolIndex {
	idx := make(symbolIndex, len(symbols))
	for _, s := range symbols {
		idx[venue(s)] = strings.ToUpper(s)
	}
	return idx
}

func (idx symbolIndex) venueSymbols() []string {
	out := make([]string, 0, len(idx))
	for v := range idx {
		out = append(out, v)
	}
	return out
}
