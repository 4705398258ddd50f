// Package book keeps the latest quote per (symbol, exchange) for every feed.
//
// Feeds write concurrently and each write replaces a whole Quote value, so readers
// never see a partially updated entry. Entries are never evicted; stale quotes are
// filtered by timestamp at read time.
package book

import (
	"context"
	"sort"
	"sync"

	"flasharb/internal/model"
)

// Entry pairs an exchange with its latest quote for one symbol.
type Entry struct {
	Exchange model.Exchange
	Quote    model.Quote
}

// Store is a two-level symbol -> exchange -> Quote map safe for concurrent use.
type Store struct {
	// symbol -> *venues
	books sync.Map
}

// venues holds the latest quote of every exchange for one symbol.
type venues struct {
	// exchange -> model.Quote
	quotes sync.Map
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Update replaces the quote stored for (symbol, exchange). Last write wins.
func (s *Store) Update(symbol string, exchange model.Exchange, quote model.Quote) {
	v, ok := s.books.Load(symbol)
	if !ok {
		v, _ = s.books.LoadOrStore(symbol, &venues{})
	}
	v.(*venues).quotes.Store(exchange, quote)
}

// Snapshot returns a copy of every exchange quote currently known for symbol,
// ordered by exchange name. It returns nil for an unknown symbol.
func (s *Store) Snapshot(symbol string) []Entry {
	v, ok := s.books.Load(symbol)
	if !ok {
		return nil
	}

	var entries []Entry
	v.(*venues).quotes.Range(func(key, value any) bool {
		entries = append(entries, Entry{Exchange: key.(model.Exchange), Quote: value.(model.Quote)})
		return true
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].Exchange < entries[j].Exchange })
	return entries
}

// Symbols returns every known symbol in lexical order.
func (s *Store) Symbols() []string {
	var symbols []string
	s.books.Range(func(key, _ any) bool {
		symbols = append(symbols, key.(string))
		return true
	})
	sort.Strings(symbols)
	return symbols
}

// ExchangeCount returns how many exchanges have quoted symbol.
func (s *Store) ExchangeCount(symbol string) int {
	v, ok := s.books.Load(symbol)
	if !ok {
		return 0
	}
	n := 0
	v.(*venues).quotes.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Consume drains quotes into the store until ctx is done or the channel closes.
func (s *Store) Consume(ctx context.Context, quotes <-chan model.Quote) {
	for {
		select {
		case <-ctx.Done():
			return
		case q, ok := <-quotes:
			if !ok {
				return
			}
			s.Update(q.Symbol, q.Exchange, q)
		}
	}
}
