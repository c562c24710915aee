package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mkelleher/buywrite/internal/calendar"
	"github.com/mkelleher/buywrite/internal/config"
	"github.com/mkelleher/buywrite/internal/gateway"
	"github.com/mkelleher/buywrite/internal/ledger"
	"github.com/mkelleher/buywrite/internal/recon"
	"github.com/mkelleher/buywrite/internal/retry"
)

func main() {
	var configPath string
	var recoverDay bool
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.BoolVar(&recoverDay, "recover", false, "Rebuild today's ledger from the saved fill snapshot instead of the gateway")
	flag.Parse()

	// Load .env before the config file so ${VAR} expansion sees it
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := log.New(os.Stdout, "[recorder] ", log.LstdFlags)

	logger.Printf("Starting covered-call recorder in %s mode", cfg.Environment.Mode)
	if cfg.IsPaperTrading() {
		logger.Println("Paper account: recording sandbox fills")
	}

	store, err := ledger.NewStore(cfg.Ledger.Path)
	if err != nil {
		logger.Fatalf("Failed to open ledger store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Printf("Warning: closing ledger store: %v", err)
		}
	}()

	snapshots, err := ledger.NewSnapshotStore(cfg.Ledger.SnapshotDir)
	if err != nil {
		logger.Fatalf("Failed to open snapshot dir: %v", err)
	}

	cal, err := calendar.New(cfg.Calendar.HolidaysFile, cfg.Calendar.HalfDaysFile, cfg.Calendar.TreatHalfDaysAsClosed)
	if err != nil {
		logger.Fatalf("Failed to load trading calendar: %v", err)
	}

	gw := buildGateway(cfg, logger)

	engine, err := recon.New(recon.Params{
		Store:     store,
		Snapshots: snapshots,
		Gateway:   gw,
		Calendar:  cal,
		Logger:    logger,
		Location:  cfg.Location(),
		CloseHour: cfg.Market.CloseHour,
	})
	if err != nil {
		logger.Fatalf("Failed to build engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Println("Shutdown signal received, cancelling run...")
		cancel()
	}()

	ran, err := engine.Run(ctx, recoverDay)
	if err != nil {
		logger.Fatalf("Recorder run failed: %v", err)
	}
	if !ran {
		logger.Println("Market closed today, nothing to record")
		return
	}

	logger.Println("Ledger recorded successfully")
}

// buildGateway wraps the raw API client with retries, then a circuit
// breaker, so transient gateway faults do not abort the daily run.
func buildGateway(cfg *config.Config, logger *log.Logger) gateway.Gateway {
	var client *gateway.Client
	if cfg.Gateway.APIEndpoint != "" {
		client = gateway.NewClientWithBaseURL(cfg.Gateway.APIKey, cfg.Gateway.AccountID, cfg.IsPaperTrading(), cfg.Gateway.APIEndpoint)
	} else {
		client = gateway.NewClient(cfg.Gateway.APIKey, cfg.Gateway.AccountID, cfg.IsPaperTrading())
	}
	client = client.WithLocation(cfg.Location())

	retrying := retry.NewClient(client, logger)
	return gateway.NewCircuitBreakerGateway(retrying)
}
