package backtest

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"tapewatch/internal/config"
	"tapewatch/internal/domain"
	"tapewatch/internal/market"
)

func TestSearchSweepsAllCells(t *testing.T) {
	cfg := config.Default()
	clock := market.NewClock()

	day := []domain.Bar{
		regularBar(clock, "GRID", 0, 10.00, 10.00, 15000, 50),
		regularBar(clock, "GRID", 1, 10.00, 10.00, 15000, 50),
		regularBar(clock, "GRID", 2, 10.00, 10.00, 15000, 50),
		regularBar(clock, "GRID", 3, 10.00, 10.60, 125000, 300),
	}

	g := Grid{
		PctEarly: []float64{4.0, 5.0},
		RelVolS1: []float64{2.0, 3.0},
	}
	cells, err := Search(context.Background(), g, cfg.Detector, cfg.Sessions,
		nil, [][]domain.Bar{day}, testLogger())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// 2x2 sweep; unset axes collapse to the configured value.
	if len(cells) != 4 {
		t.Fatalf("cells = %d, want 4", len(cells))
	}
	for _, c := range cells {
		if c.PctConfirm != cfg.Sessions.Regular.PctConfirm {
			t.Errorf("pct_confirm = %v, want fallback %v", c.PctConfirm, cfg.Sessions.Regular.PctConfirm)
		}
	}
	// A looser early threshold can only admit more alerts.
	if cells[0].PctEarly != 4.0 || cells[3].PctEarly != 5.0 {
		t.Errorf("cell ordering: %+v", cells)
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.csv")
	cells := []Cell{
		{PctEarly: 4.5, RelVolS1: 2.5, PctConfirm: 7.8, RelVolS2: 4.3,
			Alerts: 3, Wins: 2, Losses: 1, WinRate: 0.667, AvgPnlPct: 1.25},
	}
	if err := WriteCSV(path, cells); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	if rows[0][0] != "pct_early" || rows[1][0] != "4.50" || rows[1][4] != "3" {
		t.Errorf("csv = %v", rows)
	}
}
