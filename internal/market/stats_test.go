package market

import (
	"compress/gzip"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tapewatch/internal/domain"
)

func TestLoadStats(t *testing.T) {
	body := "symbol,avg_volume_20d,avg_range_20d,last_updated\n" +
		"AAPL,2500000,1.2500,2025-03-03\n" +
		"tsla,900000,3.1000,2025-03-03\n" +
		"BAD,notanumber,1.0,2025-03-03\n" +
		"SHORT,100\n"
	path := writeFile(t, "stats.csv", body)

	stats, err := LoadStats(path)
	if err != nil {
		t.Fatalf("LoadStats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("stats = %d entries, want 2", len(stats))
	}

	hs, ok := stats["AAPL"]
	if !ok {
		t.Fatal("AAPL missing")
	}
	if hs.AvgVolume20d != 2500000 || hs.AvgRange20d != 1.25 {
		t.Errorf("AAPL = %+v", hs)
	}
	if hs.LastUpdated.Format("2006-01-02") != "2025-03-03" {
		t.Errorf("last updated = %v", hs.LastUpdated)
	}
	if _, ok := stats["TSLA"]; !ok {
		t.Error("lowercase ticker not normalized")
	}
}

func TestLoadStatsMissingFile(t *testing.T) {
	stats, err := LoadStats(filepath.Join(t.TempDir(), "nope.csv"))
	if err != nil {
		t.Fatalf("missing stats cache should not error: %v", err)
	}
	if len(stats) != 0 {
		t.Errorf("stats = %v, want empty", stats)
	}
}

func TestWriteStatsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.csv")
	in := map[string]domain.HistStats{
		"AAPL": {Symbol: "AAPL", AvgVolume20d: 2500000, AvgRange20d: 1.25,
			LastUpdated: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)},
		"TSLA": {Symbol: "TSLA", AvgVolume20d: 900000, AvgRange20d: 3.1,
			LastUpdated: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)},
	}

	if err := WriteStats(path, in, []string{"AAPL", "TSLA", "GONE"}); err != nil {
		t.Fatalf("WriteStats: %v", err)
	}
	out, err := LoadStats(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("round-tripped %d entries, want 2", len(out))
	}
	if out["TSLA"].AvgRange20d != 3.1 {
		t.Errorf("TSLA = %+v", out["TSLA"])
	}
}

func TestLiquidity(t *testing.T) {
	tests := []struct {
		vol  float64
		want float64
	}{
		{0, 0},
		{500000, 0.5},
		{1_000_000, 1},
		{5_000_000, 1},
	}
	for _, tt := range tests {
		hs := domain.HistStats{AvgVolume20d: tt.vol}
		if got := hs.Liquidity(); got != tt.want {
			t.Errorf("Liquidity(%v) = %v, want %v", tt.vol, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Stats building from daily flat files
// ---------------------------------------------------------------------------

func writeDailyFile(t *testing.T, dir, name, body string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
}

func statsTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildStats(t *testing.T) {
	dir := t.TempDir()
	header := "ticker,volume,open,close,high,low,window_start\n"

	// Two rows per day for AAPL: volumes sum, high/low merge.
	writeDailyFile(t, dir, "2025-03-03.csv.gz", header+
		"AAPL,1000000,10,10.5,11.0,9.5,0\n"+
		"AAPL,500000,10.5,10.6,10.8,10.2,0\n"+
		"SKIP,999,1,1,1,1,0\n")
	writeDailyFile(t, dir, "2025-03-04.csv.gz", header+
		"AAPL,2000000,10,10.5,12.0,10.0,0\n")

	stats, err := BuildStats(dir, []string{"AAPL"}, 20, statsTestLogger())
	if err != nil {
		t.Fatalf("BuildStats: %v", err)
	}
	hs, ok := stats["AAPL"]
	if !ok {
		t.Fatal("AAPL missing")
	}
	if hs.AvgVolume20d != (1500000+2000000)/2 {
		t.Errorf("avg volume = %v", hs.AvgVolume20d)
	}
	// Day ranges: (11.0-9.5) and (12.0-10.0).
	if math.Abs(hs.AvgRange20d-(1.5+2.0)/2) > 1e-9 {
		t.Errorf("avg range = %v", hs.AvgRange20d)
	}
	if _, ok := stats["SKIP"]; ok {
		t.Error("untargeted ticker included")
	}
}

func TestBuildStatsLookback(t *testing.T) {
	dir := t.TempDir()
	header := "ticker,volume,open,close,high,low,window_start\n"
	writeDailyFile(t, dir, "2025-03-03.csv.gz", header+"AAPL,1000,10,10,11,9,0\n")
	writeDailyFile(t, dir, "2025-03-04.csv.gz", header+"AAPL,3000,10,10,11,9,0\n")

	// Lookback of 1 keeps only the newest file.
	stats, err := BuildStats(dir, []string{"AAPL"}, 1, statsTestLogger())
	if err != nil {
		t.Fatal(err)
	}
	if stats["AAPL"].AvgVolume20d != 3000 {
		t.Errorf("avg volume = %v, want 3000", stats["AAPL"].AvgVolume20d)
	}
}

func TestBuildStatsEmptyDir(t *testing.T) {
	if _, err := BuildStats(t.TempDir(), []string{"AAPL"}, 20, statsTestLogger()); err == nil {
		t.Fatal("empty dir accepted")
	}
}

func TestLatestDailyFileDate(t *testing.T) {
	dir := t.TempDir()
	header := "ticker,volume,open,close,high,low,window_start\n"
	writeDailyFile(t, dir, "2025-03-03.csv.gz", header)
	writeDailyFile(t, dir, "20250304.csv.gz", header)

	d, err := LatestDailyFileDate(dir)
	if err != nil {
		t.Fatalf("LatestDailyFileDate: %v", err)
	}
	if d.Format("2006-01-02") != "2025-03-04" {
		t.Errorf("latest date = %v", d)
	}
}
