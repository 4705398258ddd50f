package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"flasharb/internal/arbitrage"
	"flasharb/internal/book"
	"flasharb/internal/config"
	"flasharb/internal/dashboard"
	"flasharb/internal/exchange"
	"flasharb/internal/execution"
	"flasharb/internal/fees"
	"flasharb/internal/ledger"
	"flasharb/internal/logging"
	"flasharb/internal/model"
)

// feedBuffer is the capacity of each feed's quote channel.
const feedBuffer = 1000

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("cannot load .env: %v", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("cannot set up logging: %v", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Fatal error", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	names := cfg.EnabledExchanges()
	sort.Strings(names)

	feeEntries := make(map[model.Exchange]fees.Fee, len(names))
	balances := make(map[model.Exchange]float64, len(names))
	for _, name := range names {
		ex := cfg.Exchanges[name]
		feeEntries[model.Exchange(name)] = fees.Fee{Maker: ex.MakerFeePercent, Taker: ex.TakerFeePercent}
		balances[model.Exchange(name)] = ex.InitialBalanceUSD
	}
	feeTable := fees.NewTable(feeEntries, fees.Fee{Maker: cfg.Fees.DefaultMakerPercent, Taker: cfg.Fees.DefaultTakerPercent})

	repo, err := ledger.Open(ctx, cfg.Ledger, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	simulator := execution.NewSimulator(logger, repo, cfg.Execution, balances)
	if recent, err := repo.RecentTrades(ctx, cfg.Ledger.SeedSize); err != nil {
		logger.Warn("Could not seed trade history", "error", err)
	} else {
		simulator.Seed(recent)
		logger.Info("Trade history seeded", "trades", len(recent))
	}

	store := book.NewStore()
	hub := dashboard.NewHub(logger, cfg.Dashboard)
	scanner := arbitrage.NewScanner(store, feeTable, cfg.Scanner)
	engine := arbitrage.NewArbitrageEngine(logger, store, scanner, simulator, hub, cfg.Cycle)

	var wg sync.WaitGroup
	for _, name := range names {
		client, err := exchange.NewClient(name, logger, cfg.Exchanges[name])
		if err != nil {
			return err
		}

		quotes := make(chan model.Quote, feedBuffer)
		wg.Add(2)
		go func() {
			defer wg.Done()
			defer close(quotes)
			if err := client.StartStream(ctx, quotes, cfg.Symbols); err != nil {
				logger.Error("Feed stopped", "exchange", client.GetName(), "error", err)
			}
		}()
		go func() {
			defer wg.Done()
			store.Consume(ctx, quotes)
		}()
		logger.Info("Feed started", "exchange", client.GetName(), "symbols", len(cfg.Symbols))
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hub.ListenAndServe(ctx); err != nil {
			logger.Error("Dashboard server failed", "error", err)
		}
	}()

	logger.Info("Flash arbitrage simulator started",
		"exchanges", names,
		"symbols", len(cfg.Symbols),
		"ledger", cfg.Ledger.Driver,
	)
	err = engine.Run(ctx)
	wg.Wait()

	stats := simulator.Stats()
	logger.Info("Shutting down", "trades", stats.TradeCount, "totalUSD", stats.TotalUSD, "lastAction", stats.LastAction)

	if cfg.Archive.Enabled && cfg.Ledger.Driver == "csv" {
		archiveLedger(cfg, logger)
	}
	return err
}

// archiveLedger uploads the CSV ledger with a fresh context; the run context is already cancelled.
func archiveLedger(cfg config.Config, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	archiver, err := ledger.NewArchiver(ctx, cfg.Archive, logger)
	if err != nil {
		logger.Error("Could not create ledger archiver", "error", err)
		return
	}
	if _, err := archiver.Upload(ctx, cfg.Ledger.Path); err != nil {
		logger.Error("Ledger archive failed", "error", err)
	}
}
