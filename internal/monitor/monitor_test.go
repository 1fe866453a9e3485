package monitor

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"testing"
	"time"

	"tapewatch/internal/config"
	"tapewatch/internal/domain"
	"tapewatch/internal/engine"
	"tapewatch/internal/market"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type discardSink struct{}

func (discardSink) Send(domain.Alert) bool { return true }

func newTestEngine() (*engine.Engine, *market.Clock) {
	cfg := config.Default()
	clock := market.NewClock()
	return engine.New(cfg.Detector, cfg.Sessions, nil, discardSink{}, clock, testLogger()), clock
}

func TestServerHealthz(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := NewServer(addr, Health{Status: "ok", Profile: "staged", Feed: "polygon"}, testLogger())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + addr + "/healthz")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("healthz never came up: %v", err)
	}
	defer resp.Body.Close()

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decoding healthz: %v", err)
	}
	if h.Status != "ok" || h.Profile != "staged" {
		t.Errorf("health = %+v", h)
	}

	mresp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	mresp.Body.Close()
	if mresp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", mresp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Error("server did not shut down")
	}
}

func TestWorkerSnapshotPath(t *testing.T) {
	eng, clock := newTestEngine()
	w := NewWorker(eng, clock, "/var/snap", time.Minute, testLogger())

	ts := time.Date(2025, 3, 4, 10, 0, 0, 0, clock.Location())
	if got := w.SnapshotPath(ts); got != "/var/snap/session-2025-03-04.json" {
		t.Errorf("SnapshotPath = %q", got)
	}
}

func TestWorkerSnapshotAndRestore(t *testing.T) {
	eng, clock := newTestEngine()
	dir := t.TempDir()
	w := NewWorker(eng, clock, dir, time.Minute, testLogger())

	ts := time.Date(2025, 3, 4, 10, 0, 0, 0, clock.Location())
	eng.OnBar(domain.Bar{Symbol: "SNAP", Timestamp: ts,
		Open: 10, High: 10.2, Low: 9.9, Close: 10.1,
		Volume: 5000, TradeCount: 40, VWAP: 10.05})

	w.snapshot(ts)
	if _, err := os.Stat(w.SnapshotPath(ts)); err != nil {
		t.Fatalf("snapshot file missing: %v", err)
	}

	eng2, _ := newTestEngine()
	w2 := NewWorker(eng2, clock, dir, time.Minute, testLogger())
	if err := eng2.LoadSnapshot(w2.SnapshotPath(ts)); err != nil {
		t.Fatalf("restore: %v", err)
	}
	bars := eng2.Bars()
	if len(bars) != 1 || bars[0].Symbol != "SNAP" || bars[0].Volume != 5000 {
		t.Errorf("restored bars = %+v", bars)
	}
}
