package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tapewatch/internal/config"
	"tapewatch/internal/engine"
	"tapewatch/internal/feed"
	"tapewatch/internal/market"
	"tapewatch/internal/monitor"
	"tapewatch/internal/notify"
	"tapewatch/internal/store"
	"tapewatch/internal/util"
)

func main() {
	// Local .env is optional; real deployments use the environment.
	_ = godotenv.Load()

	cfgPath := "config/tapewatch.yaml"
	if p := os.Getenv("TAPEWATCH_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	clock := market.NewClock()
	if clock.Degraded() {
		logger.Warn("IANA zone data unavailable, using fixed UTC-5 offset; session boundaries are wrong during DST")
	}

	symbols, err := market.LoadWatchlist(cfg.Detector.TickerFile)
	if err != nil {
		log.Fatalf("failed to load watchlist: %v", err)
	}
	stats, err := market.LoadStats(cfg.Detector.StatsFile)
	if err != nil {
		log.Fatalf("failed to load stats cache: %v", err)
	}
	logger.Info("watchlist loaded", "symbols", len(symbols), "stats", len(stats))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var sink engine.Sink
	if cfg.Detector.DisableNotifications || cfg.Telegram.BotToken == "" {
		logger.Info("notifications disabled, alerts go to the log")
		sink = notify.NewLogSink(logger)
	} else {
		tg := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, "", logger)
		go tg.Run(ctx)
		sink = tg
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
		log.Fatalf("failed to create data dir: %v", err)
	}
	alerts, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open alert store: %v", err)
	}
	defer alerts.Close()
	sink = &store.RecordingSink{Store: alerts, Next: sink, Log: logger}

	eng := engine.New(cfg.Detector, cfg.Sessions, stats, sink, clock, logger)
	logger.Info("detector ready", "profile", eng.Profile())

	worker := monitor.NewWorker(eng, clock, cfg.Storage.SnapshotDir, time.Minute, logger).
		WithBarStore(store.NewParquetStore(cfg.Storage.DataDir))
	if err := os.MkdirAll(cfg.Storage.SnapshotDir, 0o755); err != nil {
		log.Fatalf("failed to create snapshot dir: %v", err)
	}
	if err := worker.Restore(); err != nil {
		logger.Warn("snapshot restore failed, starting cold", "err", err)
	}
	go worker.Run(ctx)

	srv := monitor.NewServer(
		fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		monitor.Health{
			Status:        "ok",
			Profile:       eng.Profile(),
			Feed:          cfg.Feed.Source,
			DegradedClock: clock.Degraded(),
		},
		logger,
	)
	go func() {
		if err := srv.Run(ctx); err != nil {
			logger.Error("monitor server stopped", "err", err)
		}
	}()

	var src feed.Feed
	switch {
	case cfg.Feed.Source == "polygon" && cfg.Feed.PolygonAPIKey != "":
		src = feed.NewPolygon(cfg.Feed.PolygonAPIKey, cfg.Feed.PolygonURL, logger)
	case cfg.Feed.AlpacaKey != "":
		src = feed.NewAlpaca(cfg.Feed.AlpacaKey, cfg.Feed.AlpacaSecret, cfg.Feed.AlpacaFeed, logger)
	default:
		log.Fatalf("no feed credentials configured (POLYGON_API_KEY or APCA_API_KEY_ID)")
	}

	logger.Info("starting feed", "source", src.Name())
	if err := src.Run(ctx, symbols, eng); err != nil && ctx.Err() == nil {
		log.Fatalf("feed error: %v", err)
	}
	logger.Info("shutdown complete")
}
