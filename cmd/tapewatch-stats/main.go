package main

import (
	"flag"
	"log"

	"github.com/joho/godotenv"

	"tapewatch/internal/config"
	"tapewatch/internal/market"
	"tapewatch/internal/util"
)

func main() {
	_ = godotenv.Load()

	var (
		dir      = flag.String("dir", "", "directory of daily flat files (*.csv.gz)")
		out      = flag.String("out", "", "stats cache CSV path (default from config)")
		lookback = flag.Int("lookback", 20, "trading days to average")
		cfgPath  = flag.String("config", "config/tapewatch.yaml", "config file")
	)
	flag.Parse()

	if *dir == "" {
		log.Fatal("-dir is required")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *out == "" {
		*out = cfg.Detector.StatsFile
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	symbols, err := market.LoadWatchlist(cfg.Detector.TickerFile)
	if err != nil {
		log.Fatalf("failed to load watchlist: %v", err)
	}

	// When Alpaca credentials are around, check the archive is current
	// before averaging stale days into the cache.
	if cfg.Feed.AlpacaKey != "" {
		if day, err := market.LatestFinishedTradingDay(cfg.Feed.AlpacaKey, cfg.Feed.AlpacaSecret, ""); err != nil {
			logger.Warn("calendar check skipped", "err", err)
		} else if newest, err := market.LatestDailyFileDate(*dir); err == nil && newest.Before(day) {
			logger.Warn("flat file archive is behind the trading calendar",
				"newest_file", newest.Format("2006-01-02"),
				"latest_trading_day", day.Format("2006-01-02"))
		}
	}

	stats, err := market.BuildStats(*dir, symbols, *lookback, logger)
	if err != nil {
		log.Fatalf("failed to build stats: %v", err)
	}
	if err := market.WriteStats(*out, stats, symbols); err != nil {
		log.Fatalf("failed to write stats cache: %v", err)
	}

	logger.Info("stats cache written", "symbols", len(stats), "out", *out)
}
