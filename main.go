package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"bds-scraper/browser"
	"bds-scraper/config"
	"bds-scraper/ledger"
	"bds-scraper/models"
	"bds-scraper/scraper/batdongsan"
	"bds-scraper/services"
	"bds-scraper/storage"
	"bds-scraper/utils"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}

	logger, err := utils.NewFileLogger(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		logger = utils.NewLogger(cfg.LogLevel)
		logger.Warn("File logging disabled: %v", err)
	}
	defer logger.Sync()

	runID := uuid.NewString()
	logger = logger.With("run", runID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("=== BDS Scraping System starting ===")
	logger.Info("Config: %d targets | fetcher: %s | headless: %v | sink: %s | ledger: %s",
		len(cfg.Targets), cfg.Scraper.Fetcher, cfg.Scraper.Headless, cfg.Sink, cfg.Ledger)

	summarySvc := services.NewSummaryService(logger, os.Stdout)
	abort := func(err error) int {
		summary := &models.RunSummary{RunID: runID, Err: err}
		summarySvc.Log(summary)
		summarySvc.Print(summary)
		return 1
	}

	backend, err := openLedgerBackend(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open ledger: %v", err)
		return abort(err)
	}
	led, err := ledger.Open(ctx, backend, runID, logger)
	if err != nil {
		_ = backend.Close()
		logger.Error("Failed to load ledger: %v", err)
		return abort(err)
	}
	defer func() {
		if err := led.Close(); err != nil {
			logger.Error("Ledger close failed: %v", err)
		}
	}()

	sink, err := openSink(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open %s sink: %v", cfg.Sink, err)
		if cfg.Sink == config.SinkPostgres {
			logger.Error("Make sure Docker is running: docker compose up -d")
		}
		return abort(err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Error("Sink close failed: %v", err)
		}
	}()

	fetcher, err := openFetcher(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start fetch session: %v", err)
		return abort(err)
	}
	defer fetcher.Close()

	scraper := batdongsan.New(cfg.Scraper, fetcher, led, sink, logger)
	summary, err := scraper.Scrape(ctx, cfg.Targets)

	summarySvc.Log(summary)
	summarySvc.Print(summary)

	if err != nil {
		logger.Error("Run aborted: %v", err)
		return 1
	}
	return 0
}

func openLedgerBackend(ctx context.Context, cfg *config.Config) (ledger.Backend, error) {
	switch cfg.Ledger {
	case config.LedgerFile:
		return ledger.NewFileBackend(cfg.LedgerPath)
	default:
		return ledger.NewSQLiteBackend(ctx, cfg.LedgerPath)
	}
}

func openSink(ctx context.Context, cfg *config.Config, logger *utils.Logger) (storage.RecordSink, error) {
	switch cfg.Sink {
	case config.SinkPostgres:
		return storage.NewPostgresWriter(ctx, cfg.DSN(), logger)
	case config.SinkMongo:
		return storage.NewMongoWriter(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, logger)
	case config.SinkJSON:
		return storage.NewJSONWriter(cfg.JSONOutputDir, logger)
	default:
		return nil, eris.Errorf("unknown sink %q", cfg.Sink)
	}
}

func openFetcher(ctx context.Context, cfg *config.Config, logger *utils.Logger) (browser.Fetcher, error) {
	if cfg.Scraper.Fetcher == config.FetcherHTTP {
		return browser.NewStatic(cfg.Scraper.PageLoadTimeoutDuration(), logger), nil
	}
	return browser.NewChrome(ctx, browser.ChromeOptions{
		Headless:        cfg.Scraper.Headless,
		BinaryPath:      cfg.Scraper.ChromeBin,
		WaitTimeout:     cfg.Scraper.WaitTimeoutDuration(),
		PageLoadTimeout: cfg.Scraper.PageLoadTimeoutDuration(),
	}, logger)
}
