package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"flasharb/internal/model"
)

// TimestampLayout is the timestamp format used in the CSV ledger.
const TimestampLayout = "2006-01-02 15:04:05"

var csvHeader = []string{"Timestamp", "Symbol", "BuyEx", "SellEx", "BuyPrice", "SellPrice", "Profit", "Balance", "Note", "ID"}

// CSVRepository appends trades to a local CSV file.
type CSVRepository struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewCSVRepository creates a CSVRepository writing to path.
func NewCSVRepository(path string, logger *slog.Logger) *CSVRepository {
	return &CSVRepository{path: path, logger: logger}
}

// Path returns the ledger file location.
func (r *CSVRepository) Path() string {
	return r.path
}

// Migrate writes the header when the file does not exist yet.
func (r *CSVRepository) Migrate(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(r.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat ledger: %w", err)
	}

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write ledger header: %w", err)
	}
	w.Flush()
	return w.Error()
}

// LogTrade appends one row.
func (r *CSVRepository) LogTrade(ctx context.Context, trade model.TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(encodeRow(trade)); err != nil {
		return fmt.Errorf("append trade: %w", err)
	}
	w.Flush()
	return w.Error()
}

// RecentTrades reads the last n well-formed rows.
func (r *CSVRepository) RecentTrades(ctx context.Context, n int) ([]model.TradeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var (
		trades  []model.TradeRecord
		skipped int
	)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped++
				continue
			}
			return nil, fmt.Errorf("read ledger: %w", err)
		}
		if len(row) > 0 && row[0] == csvHeader[0] {
			continue
		}
		trade, err := decodeRow(row)
		if err != nil {
			skipped++
			continue
		}
		trades = append(trades, trade)
		if n > 0 && len(trades) > n {
			trades = trades[1:]
		}
	}

	if skipped > 0 {
		r.logger.Warn("Skipped malformed ledger rows", "path", r.path, "count", skipped)
	}
	return trades, nil
}

// Close is a no-op; the file is opened per write.
func (r *CSVRepository) Close() error {
	return nil
}

func encodeRow(t model.TradeRecord) []string {
	return []string{
		t.Timestamp.Local().Format(TimestampLayout),
		t.Symbol,
		string(t.BuyExchange),
		string(t.SellExchange),
		strconv.FormatFloat(t.BuyPrice, 'f', -1, 64),
		strconv.FormatFloat(t.SellPrice, 'f', -1, 64),
		strconv.FormatFloat(t.ProfitUSD, 'f', -1, 64),
		strconv.FormatFloat(t.BalanceAfter, 'f', -1, 64),
		t.Note,
		t.ID,
	}
}

func decodeRow(row []string) (model.TradeRecord, error) {
	if len(row) < 9 {
		return model.TradeRecord{}, fmt.Errorf("expected at least 9 fields, got %d", len(row))
	}
	ts, err := time.ParseInLocation(TimestampLayout, row[0], time.Local)
	if err != nil {
		return model.TradeRecord{}, err
	}

	var nums [4]float64
	for i := range nums {
		if nums[i], err = strconv.ParseFloat(row[4+i], 64); err != nil {
			return model.TradeRecord{}, err
		}
	}

	t := model.TradeRecord{
		Timestamp:    ts,
		Symbol:       row[1],
		BuyExchange:  model.Exchange(row[2]),
		SellExchange: model.Exchange(row[3]),
		BuyPrice:     nums[0],
		SellPrice:    nums[1],
		ProfitUSD:    nums[2],
		BalanceAfter: nums[3],
		Note:         row[8],
	}
	if len(row) > 9 {
		t.ID = row[9]
	}
	return t, nil
}
