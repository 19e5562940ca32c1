package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pulsedeck/internal/api"
	"pulsedeck/internal/cache"
	"pulsedeck/internal/config"
	"pulsedeck/internal/golden"
	"pulsedeck/internal/logger"
	"pulsedeck/internal/maintenance"
	"pulsedeck/internal/market"
	"pulsedeck/internal/monitoring"
	"pulsedeck/internal/provider"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		Output:   cfg.Logging.Output,
		Filename: cfg.Logging.Filename,
	})
	log := logger.Global()

	log.Info("starting pulsedeck",
		"version", cfg.App.Version, "env", cfg.App.Env)

	metrics := monitoring.NewMetrics()

	goldenSvc := golden.NewService(cfg.Golden.Path, cfg.Golden.BackupPath, golden.Windows{
		Fresh:    cfg.Golden.Windows.Fresh,
		Stale:    cfg.Golden.Windows.Stale,
		Archived: cfg.Golden.Windows.Archived,
		Fallback: cfg.Golden.Windows.Fallback,
	}, log)

	// Redis is optional: when disabled or unreachable the tiered cache runs
	// on its in-process store alone.
	var primary cache.Store
	if cfg.Redis.Enabled {
		store, err := cache.NewRedisStore(&cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, log)
		if err != nil {
			log.Warn("Redis unavailable, running on in-memory cache only", "error", err.Error())
		} else {
			primary = store
		}
	}

	tieredCache := cache.NewTieredCache(cache.Options{
		Primary: primary,
		Memory:  cache.NewMemoryStore(cfg.Cache.MemoryMaxSize),
		Golden:  goldenSvc,
		Tiers: cache.TierTable{
			Realtime:   cfg.Cache.Tiers.Realtime,
			Frequent:   cfg.Cache.Tiers.Frequent,
			Stable:     cfg.Cache.Tiers.Stable,
			Historical: cfg.Cache.Tiers.Historical,
		},
		Recorder: metrics,
		Log:      log,
	})

	binance := provider.NewBinanceClient(providerConfig(cfg.Providers.Binance, metrics), log)
	okx := provider.NewOKXClient(providerConfig(cfg.Providers.OKX, metrics), log)
	fred := provider.NewFREDClient(providerConfig(cfg.Providers.FRED, metrics), log)
	alphavantage := provider.NewAlphaVantageClient(providerConfig(cfg.Providers.AlphaVantage, metrics), log)
	farside := provider.NewFarsideClient(providerConfig(cfg.Providers.Farside, metrics), log)
	coingecko := provider.NewCoinGeckoClient(providerConfig(cfg.Providers.CoinGecko, metrics), log)

	synth := market.NewSynthesizer(time.Now().UnixNano())

	oiProviders := []market.OpenInterestProvider{binance, okx}
	fundingProviders := []market.FundingProvider{binance, okx}

	services := api.Services{
		Cache:     tieredCache,
		Golden:    goldenSvc,
		Leverage:  market.NewLeverageService(tieredCache, oiProviders, fundingProviders, coingecko, synth, log),
		Funding:   market.NewFundingService(tieredCache, fundingProviders, synth, log),
		ETF:       market.NewETFFlowService(tieredCache, farside, synth, log),
		Liquidity: market.NewLiquidityService(tieredCache, fred, synth, log),
		RSI:       market.NewRSIService(tieredCache, alphavantage, synth, log),
		Metrics:   metrics,
	}

	server := api.NewServer(cfg, services, log)

	scheduler := maintenance.NewScheduler(tieredCache, goldenSvc, metrics, log)
	if err := scheduler.Start(); err != nil {
		log.Error("failed to start maintenance scheduler", "error", err.Error())
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server error", "error", err.Error())
		}
	case sig := <-quit:
		log.Info("received shutdown signal", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	scheduler.Stop()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err.Error())
	}
	if err := tieredCache.Close(); err != nil {
		log.Error("cache close failed", "error", err.Error())
	}

	log.Info("pulsedeck stopped")
}

// loadConfig falls back to defaults when the config file is absent, so the
// binary runs out of the box.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

func providerConfig(pc config.ProviderConfig, recorder provider.RequestRecorder) provider.Config {
	return provider.Config{
		BaseURL:        pc.BaseURL,
		APIKey:         pc.APIKey,
		Timeout:        pc.Timeout,
		RequestsPerSec: pc.RequestsPerSec,
		Burst:          pc.Burst,
		Recorder:       recorder,
	}
}
