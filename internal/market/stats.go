package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"tapewatch/internal/domain"
)

// LoadStats reads the historical stats cache CSV
// (symbol,avg_volume_20d,avg_range_20d,last_updated). A missing file is
// not an error: the engine degrades to base thresholds and mid liquidity.
// Malformed rows are skipped.
func LoadStats(path string) (map[string]domain.HistStats, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]domain.HistStats{}, nil
		}
		return nil, fmt.Errorf("opening stats cache %s: %w", path, err)
	}
	defer f.Close()

	return parseStats(f)
}

func parseStats(r io.Reader) (map[string]domain.HistStats, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	stats := make(map[string]domain.HistStats)
	first := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading stats cache: %w", err)
		}
		if first {
			first = false
			if len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "symbol") {
				continue
			}
		}
		if len(row) < 3 {
			continue
		}

		sym := strings.ToUpper(strings.TrimSpace(row[0]))
		vol, err1 := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		rng, err2 := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if sym == "" || err1 != nil || err2 != nil {
			continue
		}

		hs := domain.HistStats{
			Symbol:       sym,
			AvgVolume20d: vol,
			AvgRange20d:  rng,
		}
		if len(row) >= 4 {
			if ts, err := time.Parse("2006-01-02", strings.TrimSpace(row[3])); err == nil {
				hs.LastUpdated = ts
			}
		}
		stats[sym] = hs
	}
	return stats, nil
}

// WriteStats writes the stats cache CSV consumed by LoadStats.
func WriteStats(path string, stats map[string]domain.HistStats, order []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating stats cache %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"symbol", "avg_volume_20d", "avg_range_20d", "last_updated"}); err != nil {
		return err
	}
	for _, sym := range order {
		hs, ok := stats[sym]
		if !ok {
			continue
		}
		updated := hs.LastUpdated
		if updated.IsZero() {
			updated = time.Now()
		}
		rec := []string{
			hs.Symbol,
			strconv.FormatFloat(hs.AvgVolume20d, 'f', 0, 64),
			strconv.FormatFloat(hs.AvgRange20d, 'f', 4, 64),
			updated.Format("2006-01-02"),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
