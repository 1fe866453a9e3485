package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"tapewatch/internal/backtest"
	"tapewatch/internal/config"
	"tapewatch/internal/domain"
	"tapewatch/internal/market"
	"tapewatch/internal/replay"
	"tapewatch/internal/util"
)

func main() {
	_ = godotenv.Load()

	var (
		dir        = flag.String("dir", "", "directory of daily flat files (*.csv.gz)")
		out        = flag.String("out", "grid-results.csv", "CSV output path")
		cfgPath    = flag.String("config", "config/tapewatch.yaml", "config file")
		pctEarly   = flag.String("pct-early", "", "comma-separated pct_early values")
		relVolS1   = flag.String("relvol-s1", "", "comma-separated relvol_s1 values")
		pctConfirm = flag.String("pct-confirm", "", "comma-separated pct_confirm values")
		relVolS2   = flag.String("relvol-s2", "", "comma-separated relvol_s2 values")
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

	grid := backtest.Grid{
		PctEarly:   parseFloats(*pctEarly),
		RelVolS1:   parseFloats(*relVolS1),
		PctConfirm: parseFloats(*pctConfirm),
		RelVolS2:   parseFloats(*relVolS2),
	}

	cells, err := backtest.Search(context.Background(), grid, cfg.Detector, cfg.Sessions, stats, days, logger)
	if err != nil {
		log.Fatalf("grid search failed: %v", err)
	}
	if err := backtest.WriteCSV(*out, cells); err != nil {
		log.Fatalf("failed to write results: %v", err)
	}
	logger.Info("grid search done", "cells", len(cells), "out", *out)
}

func parseFloats(s string) []float64 {
	if s == "" {
		return nil
	}
	var out []float64
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			log.Fatalf("invalid value %q: %v", part, err)
		}
		out = append(out, v)
	}
	return out
}

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
