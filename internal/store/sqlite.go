package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tapewatch/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

var _ AlertStore = (*SQLiteStore)(nil)

// SQLiteStore persists alerts and simulated outcomes.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol       TEXT NOT NULL,
	stage        INTEGER NOT NULL,
	path         TEXT NOT NULL DEFAULT '',
	ts           INTEGER NOT NULL,
	session      TEXT NOT NULL,
	price        REAL NOT NULL,
	pct_change   REAL NOT NULL,
	rel_vol      REAL NOT NULL,
	volume       INTEGER NOT NULL,
	trade_count  INTEGER NOT NULL,
	vwap         REAL NOT NULL,
	spread       REAL,
	quality      REAL NOT NULL,
	setup_price  REAL NOT NULL DEFAULT 0,
	expansion    REAL NOT NULL DEFAULT 0,
	cum_volume   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_alerts_symbol_ts ON alerts(symbol, ts);

CREATE TABLE IF NOT EXISTS outcomes (
	alert_id     INTEGER PRIMARY KEY REFERENCES alerts(id),
	result       TEXT NOT NULL,
	entry_price  REAL NOT NULL,
	exit_price   REAL NOT NULL,
	stop_price   REAL NOT NULL,
	target_price REAL NOT NULL,
	pnl_pct      REAL NOT NULL,
	bars_held    INTEGER NOT NULL
);
`

// NewSQLiteStore opens (or creates) the database at dbPath and applies the
// schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", dbPath, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// SaveAlert inserts an alert and returns its row id.
func (s *SQLiteStore) SaveAlert(ctx context.Context, a domain.Alert) (int64, error) {
	var spread any
	if a.Spread != nil {
		spread = *a.Spread
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (symbol, stage, path, ts, session, price, pct_change,
			rel_vol, volume, trade_count, vwap, spread, quality,
			setup_price, expansion, cum_volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Symbol, int(a.Stage), string(a.Path), a.Timestamp.UnixMilli(),
		string(a.Session), a.Price, a.PctChange, a.RelVol, a.Volume,
		a.TradeCount, a.VWAP, spread, a.Quality,
		a.SetupPrice, a.ExpansionPct, a.CumVolume)
	if err != nil {
		return 0, fmt.Errorf("inserting alert: %w", err)
	}
	return res.LastInsertId()
}

// SaveOutcome attaches a simulated outcome to an alert.
func (s *SQLiteStore) SaveOutcome(ctx context.Context, alertID int64, o domain.Outcome) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO outcomes (alert_id, result, entry_price,
			exit_price, stop_price, target_price, pnl_pct, bars_held)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		alertID, o.Result, o.EntryPrice, o.ExitPrice, o.StopPrice,
		o.TargetPrice, o.PnlPct, o.BarsHeld)
	if err != nil {
		return fmt.Errorf("inserting outcome: %w", err)
	}
	return nil
}

// ListAlerts returns alerts ordered by time ascending, up to limit. Empty
// symbol matches all symbols; limit <= 0 means no limit.
func (s *SQLiteStore) ListAlerts(ctx context.Context, symbol string, limit int) ([]domain.Alert, error) {
	query := `
		SELECT symbol, stage, path, ts, session, price, pct_change, rel_vol,
			volume, trade_count, vwap, spread, quality,
			setup_price, expansion, cum_volume
		FROM alerts`
	var args []any
	if symbol != "" {
		query += " WHERE symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY ts"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var (
			a      domain.Alert
			stage  int
			path   string
			sess   string
			ts     int64
			spread sql.NullFloat64
		)
		if err := rows.Scan(&a.Symbol, &stage, &path, &ts, &sess, &a.Price,
			&a.PctChange, &a.RelVol, &a.Volume, &a.TradeCount, &a.VWAP,
			&spread, &a.Quality, &a.SetupPrice, &a.ExpansionPct,
			&a.CumVolume); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		a.Stage = domain.Stage(stage)
		a.Path = domain.ConfirmPath(path)
		a.Session = domain.Session(sess)
		a.Timestamp = time.UnixMilli(ts)
		if spread.Valid {
			v := spread.Float64
			a.Spread = &v
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
