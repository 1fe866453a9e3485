package market

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadWatchlist(t *testing.T) {
	path := writeFile(t, "tickers.csv", "SYMBOL\naapl\nTSLA\nAAPL\n\nnvda\n")

	syms, err := LoadWatchlist(path)
	if err != nil {
		t.Fatalf("LoadWatchlist: %v", err)
	}
	want := []string{"AAPL", "TSLA", "NVDA"}
	if len(syms) != len(want) {
		t.Fatalf("symbols = %v, want %v", syms, want)
	}
	for i := range want {
		if syms[i] != want[i] {
			t.Errorf("symbol %d = %q, want %q", i, syms[i], want[i])
		}
	}
}

func TestLoadWatchlistExtraColumns(t *testing.T) {
	path := writeFile(t, "tickers.csv", "ticker,name\nAAPL,Apple Inc\nTSLA,Tesla\n")
	syms, err := LoadWatchlist(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(syms) != 2 || syms[0] != "AAPL" {
		t.Errorf("symbols = %v", syms)
	}
}

func TestLoadWatchlistEmpty(t *testing.T) {
	path := writeFile(t, "tickers.csv", "SYMBOL\n")
	if _, err := LoadWatchlist(path); err == nil {
		t.Fatal("empty watchlist accepted")
	}
}

func TestLoadWatchlistMissing(t *testing.T) {
	if _, err := LoadWatchlist(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatal("missing watchlist accepted")
	}
}
