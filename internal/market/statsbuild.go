package market

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"tapewatch/internal/domain"
)

// dailyTotals accumulates one symbol's per-day aggregates while scanning
// flat files.
type dailyTotals struct {
	volume float64
	ranges float64
	days   int
}

// BuildStats scans the most recent lookback daily flat files
// (YYYY-MM-DD.csv.gz, columns ticker,volume,open,close,high,low,...) under
// dir and computes per-symbol average daily volume and high-low range.
// Files that fail to parse are skipped with a log line.
func BuildStats(dir string, tickers []string, lookback int, log *slog.Logger) (map[string]domain.HistStats, error) {
	files, err := listDailyFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no daily flat files found in %s", dir)
	}
	if len(files) > lookback {
		files = files[:lookback]
	}

	target := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		target[t] = struct{}{}
	}

	totals := make(map[string]*dailyTotals, len(tickers))
	for _, file := range files {
		if err := accumulateDaily(file, target, totals); err != nil {
			log.Warn("skipping daily flat file", "file", filepath.Base(file), "err", err)
			continue
		}
	}

	now := time.Now()
	stats := make(map[string]domain.HistStats, len(totals))
	for sym, t := range totals {
		if t.days == 0 {
			continue
		}
		stats[sym] = domain.HistStats{
			Symbol:       sym,
			AvgVolume20d: t.volume / float64(t.days),
			AvgRange20d:  t.ranges / float64(t.days),
			LastUpdated:  now,
		}
	}
	return stats, nil
}

// LatestDailyFileDate returns the date of the newest daily flat file in
// dir, for freshness checks against the trading calendar.
func LatestDailyFileDate(dir string) (time.Time, error) {
	files, err := listDailyFiles(dir)
	if err != nil {
		return time.Time{}, err
	}
	if len(files) == 0 {
		return time.Time{}, fmt.Errorf("no daily flat files found in %s", dir)
	}
	stem := strings.TrimSuffix(filepath.Base(files[0]), ".csv.gz")
	d, err := time.Parse("2006-01-02", stem)
	if err != nil {
		d, err = time.Parse("20060102", stem)
	}
	return d, err
}

// listDailyFiles returns the .csv.gz files in dir sorted by date
// descending. Both YYYY-MM-DD and YYYYMMDD file names are accepted.
func listDailyFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading flat file dir %s: %w", dir, err)
	}

	type dated struct {
		date time.Time
		path string
	}
	var files []dated
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".csv.gz") {
			continue
		}
		stem := strings.TrimSuffix(name, ".csv.gz")
		d, err := time.Parse("2006-01-02", stem)
		if err != nil {
			d, err = time.Parse("20060102", stem)
			if err != nil {
				continue
			}
		}
		files = append(files, dated{date: d, path: filepath.Join(dir, name)})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].date.After(files[j].date) })

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

// accumulateDaily folds one daily flat file into totals. The same layout is
// produced for minute aggregates, so multiple rows per ticker are summed
// (volume) and merged (high/low) before the day is counted once.
func accumulateDaily(path string, target map[string]struct{}, totals map[string]*dailyTotals) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}
	defer gz.Close()

	cr := csv.NewReader(gz)
	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, need := range []string{"ticker", "volume", "high", "low"} {
		if _, ok := col[need]; !ok {
			return fmt.Errorf("missing column %q", need)
		}
	}

	type dayAgg struct {
		volume    float64
		high, low float64
	}
	day := make(map[string]*dayAgg)

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		sym := strings.ToUpper(strings.TrimSpace(row[col["ticker"]]))
		if _, ok := target[sym]; !ok {
			continue
		}
		vol, err1 := strconv.ParseFloat(row[col["volume"]], 64)
		high, err2 := strconv.ParseFloat(row[col["high"]], 64)
		low, err3 := strconv.ParseFloat(row[col["low"]], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}

		a, ok := day[sym]
		if !ok {
			day[sym] = &dayAgg{volume: vol, high: high, low: low}
			continue
		}
		a.volume += vol
		if high > a.high {
			a.high = high
		}
		if low < a.low {
			a.low = low
		}
	}

	for sym, a := range day {
		t, ok := totals[sym]
		if !ok {
			t = &dailyTotals{}
			totals[sym] = t
		}
		t.volume += a.volume
		t.ranges += a.high - a.low
		t.days++
	}
	return nil
}
