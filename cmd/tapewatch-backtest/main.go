package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"tapewatch/internal/backtest"
	"tapewatch/internal/config"
	"tapewatch/internal/domain"
	"tapewatch/internal/market"
	"tapewatch/internal/replay"
	"tapewatch/internal/store"
	"tapewatch/internal/util"
)

func main() {
	_ = godotenv.Load()

	var (
		dir     = flag.String("dir", "", "directory of daily flat files (*.csv.gz)")
		out     = flag.String("out", "backtest-report.json", "JSON report path")
		db      = flag.String("db", "", "optional sqlite path for alert/outcome persistence")
		profile = flag.String("profile", "", "detector profile override (staged|persistence|likelihood)")
		cfgPath = flag.String("config", "config/tapewatch.yaml", "config file")
	)
	flag.Parse()

	if *dir == "" {
		log.Fatal("-dir is required")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg.Detector.BacktestMode = true
	if *profile != "" {
		cfg.Detector.Profile = *profile
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	symbols, err := market.LoadWatchlist(cfg.Detector.TickerFile)
	if err != nil {
		log.Fatalf("failed to load watchlist: %v", err)
	}
	stats, err := market.LoadStats(cfg.Detector.StatsFile)
	if err != nil {
		log.Fatalf("failed to load stats cache: %v", err)
	}

	days, err := loadDays(*dir, symbols)
	if err != nil {
		log.Fatalf("failed to load flat files: %v", err)
	}
	logger.Info("tape loaded", "days", len(days), "symbols", len(symbols))

	runner := &backtest.Runner{
		Cfg:      cfg.Detector,
		Sessions: cfg.Sessions,
		Stats:    stats,
		Log:      logger,
	}
	if *db != "" {
		alerts, err := store.NewSQLiteStore(*db)
		if err != nil {
			log.Fatalf("failed to open alert store: %v", err)
		}
		defer alerts.Close()
		runner.Alerts = alerts
	}

	res, err := runner.Run(context.Background(), days)
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}
	if err := backtest.WriteReport(*out, res); err != nil {
		log.Fatalf("failed to write report: %v", err)
	}

	logger.Info("backtest done",
		"days", res.Days, "alerts", res.Alerts,
		"wins", res.Wins, "losses", res.Losses,
		"win_rate", res.WinRate, "avg_pnl_pct", res.AvgPnlPct,
		"report", *out)
}

// loadDays reads every daily flat file under dir in date order, filtered to
// the watchlist.
func loadDays(dir string, symbols []string) ([][]domain.Bar, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".csv.gz") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	filter := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		filter[s] = struct{}{}
	}

	var days [][]domain.Bar
	for _, f := range files {
		bars, err := replay.ReadDay(f, filter)
		if err != nil {
			return nil, err
		}
		days = append(days, bars)
	}
	return days, nil
}
