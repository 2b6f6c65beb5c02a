package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"stockpulse/internal/anomaly"
	"stockpulse/internal/api"
	"stockpulse/internal/cache"
	"stockpulse/internal/config"
	"stockpulse/internal/logger"
	"stockpulse/internal/monitor"
	"stockpulse/internal/reddit"
	"stockpulse/internal/stocks"
	"stockpulse/internal/storage"
	"stockpulse/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to the YAML config file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration invalid: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Loaded configuration from %s", *configPath)

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Storage init failed: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Error closing storage: %v", err)
		}
	}()

	trendingCache := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TrendingTTL)
	if trendingCache != nil {
		if err := trendingCache.Ping(context.Background()); err != nil {
			logger.Warn("Redis unreachable, trending responses will not be cached: %v", err)
		} else {
			logger.Info("Trending cache enabled (redis %s, ttl %v)", cfg.Redis.Addr, cfg.Redis.TrendingTTL)
		}
	} else {
		logger.Debug("Redis not configured, trending cache disabled")
	}
	defer func() {
		if err := trendingCache.Close(); err != nil {
			logger.Error("Error closing Redis client: %v", err)
		}
	}()

	redditClient := reddit.NewClient(cfg.Reddit.BaseURL, cfg.Reddit.UserAgent, cfg.Reddit.Timeout)

	var stocksClient *stocks.Client
	if cfg.Stocks.APIKey != "" {
		stocksClient = stocks.NewClient(cfg.Stocks.BaseURL, cfg.Stocks.APIKey, cfg.Stocks.Timeout)
		logger.Info("Price polling enabled")
	} else {
		logger.Debug("No stocks API key configured, price polling disabled")
	}

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Telegram setup failed: %v", err)
		}
		logger.Info("Telegram notifications enabled")
		if err := telegramClient.SendStartup(cfg.Reddit.Subreddits, cfg.Monitor.WindowMinutes); err != nil {
			logger.Warn("Startup notification not delivered: %v", err)
		}
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	det := anomaly.New(anomaly.Config{
		ZThreshold:  cfg.Anomaly.ZThreshold,
		WindowHours: cfg.Anomaly.WindowHours,
	})

	mon := monitor.New(store, det, redditClient, stocksClient, telegramClient, monitor.Config{
		Subreddits:           cfg.Reddit.Subreddits,
		FetchLimit:           cfg.Reddit.FetchLimit,
		PollInterval:         cfg.Monitor.PollInterval,
		PriceRefreshInterval: cfg.Monitor.PriceRefreshInterval,
		WindowMinutes:        cfg.Monitor.WindowMinutes,
		AlertCooldown:        cfg.Monitor.AlertCooldown,
		Watchlist:            cfg.Monitor.Watchlist,
	})

	if telegramClient != nil {
		telegramClient.StatusFunc = func() string {
			total, err := store.MentionTotal()
			if err != nil {
				return "Running"
			}
			return fmt.Sprintf("Running, %d mentions stored, watching %d subreddits",
				total, len(cfg.Reddit.Subreddits))
		}
	}

	srv := api.New(cfg)
	srv.RegisterRoutes(store, mon, trendingCache)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Monitor.Enabled {
		g.Go(func() error {
			return mon.Run(ctx)
		})
	} else {
		logger.Info("Ingestion disabled, serving stored data only")
	}

	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Received shutdown signal, stopping API server")
		return srv.Shutdown()
	})

	if err := g.Wait(); err != nil {
		logger.Error("Service exited with error: %v", err)
		return
	}
	logger.Info("Service stopped")
}
