// Package config loads the tapewatch YAML configuration and applies
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tapewatch/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the tapewatch system.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Server   Server   `yaml:"server"`
	Feed     Feed     `yaml:"feed"`
	Telegram Telegram `yaml:"telegram"`
	Logging  Logging  `yaml:"logging"`
	Detector Detector `yaml:"detector"`
	Sessions Sessions `yaml:"sessions"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir     string `yaml:"data_dir"`     // flat files and bar archives
	SQLitePath  string `yaml:"sqlite_path"`  // alert/outcome database
	SnapshotDir string `yaml:"snapshot_dir"` // end-of-session JSON snapshots
}

// Server holds the monitor HTTP listener configuration (healthz, metrics).
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Feed selects and configures the live market-data source.
type Feed struct {
	Source        string `yaml:"source"` // "polygon" or "alpaca"
	PolygonAPIKey string `yaml:"polygon_api_key"`
	PolygonURL    string `yaml:"polygon_url"`
	AlpacaKey     string `yaml:"alpaca_key"`
	AlpacaSecret  string `yaml:"alpaca_secret"`
	AlpacaFeed    string `yaml:"alpaca_feed"` // "sip" or "iex"
}

// Telegram holds the notification bot credentials.
type Telegram struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Detector selects the detection profile and its operational switches.
type Detector struct {
	// Profile is one of "staged", "persistence", "likelihood".
	Profile string `yaml:"profile"`

	CooldownMinutes int    `yaml:"cooldown_minutes"`
	TickerFile      string `yaml:"ticker_file"`
	StatsFile       string `yaml:"stats_file"`

	// MinLiquidity is the liquidity score below which a symbol is silently
	// skipped. Symbols without historical stats score DefaultLiquidity.
	MinLiquidity     float64 `yaml:"min_liquidity"`
	DefaultLiquidity float64 `yaml:"default_liquidity"`

	// WatchSinkQuality is the minimum quality score for forwarding a Watch
	// alert to the sink (the in-memory watch list records all of them).
	WatchSinkQuality float64 `yaml:"watch_sink_quality"`

	DisableNotifications bool `yaml:"disable_notifications"`
	Stage2Debug          bool `yaml:"stage2_debug"`
	BacktestMode         bool `yaml:"backtest_mode"`
}

// SessionParams holds the detection thresholds for one trading session.
// Every column of the shipped table is overridable.
type SessionParams struct {
	VolBase     float64 `yaml:"vol_base"`
	SpreadLimit float64 `yaml:"spread_limit"`
	PctEarly    float64 `yaml:"pct_early"`
	PctConfirm  float64 `yaml:"pct_confirm"`
	RelVolS1    float64 `yaml:"relvol_s1"`
	RelVolS2    float64 `yaml:"relvol_s2"`
	WatchRelVol float64 `yaml:"watch_relvol"`
	WatchPct    float64 `yaml:"watch_pct"`
	MinTrades   int64   `yaml:"min_trades"`

	// VolMult scales avg_volume_20d into the effective volume threshold:
	// max(VolBase, avg_volume_20d * VolMult).
	VolMult float64 `yaml:"vol_mult"`
}

// Sessions holds per-session parameter sets.
type Sessions struct {
	Premarket  SessionParams `yaml:"premarket"`
	Regular    SessionParams `yaml:"regular"`
	Postmarket SessionParams `yaml:"postmarket"`
}

// For returns the parameter set for the given session. CLOSED returns the
// zero value; callers gate on session before using it.
func (s Sessions) For(sess domain.Session) SessionParams {
	switch sess {
	case domain.SessionPremarket:
		return s.Premarket
	case domain.SessionPostmarket:
		return s.Postmarket
	default:
		return s.Regular
	}
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

// Default returns the shipped configuration.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:     "data",
			SQLitePath:  "data/tapewatch.db",
			SnapshotDir: "data/snapshots",
		},
		Server: Server{
			Host: "0.0.0.0",
			Port: 8391,
		},
		Feed: Feed{
			Source:     "polygon",
			PolygonURL: "wss://socket.polygon.io/stocks",
			AlpacaFeed: "sip",
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Detector: Detector{
			Profile:          "staged",
			CooldownMinutes:  5,
			TickerFile:       "data/tickers.csv",
			StatsFile:        "data/stats_cache.csv",
			MinLiquidity:     0.10,
			DefaultLiquidity: 0.5,
			WatchSinkQuality: 45,
		},
		Sessions: Sessions{
			Premarket: SessionParams{
				VolBase:     30000,
				SpreadLimit: 0.030,
				PctEarly:    3.8,
				PctConfirm:  7.8,
				RelVolS1:    2.4,
				RelVolS2:    4.1,
				WatchRelVol: 1.8,
				WatchPct:    2.5,
				MinTrades:   3,
				VolMult:     0.015,
			},
			Regular: SessionParams{
				VolBase:     90000,
				SpreadLimit: 0.020,
				PctEarly:    4.5,
				PctConfirm:  7.8,
				RelVolS1:    2.5,
				RelVolS2:    4.3,
				WatchRelVol: 2.0,
				WatchPct:    3.0,
				MinTrades:   3,
				VolMult:     0.10,
			},
			Postmarket: SessionParams{
				VolBase:     24000,
				SpreadLimit: 0.038,
				PctEarly:    3.8,
				PctConfirm:  7.0,
				RelVolS1:    2.3,
				RelVolS2:    4.0,
				WatchRelVol: 1.7,
				WatchPct:    2.5,
				MinTrades:   3,
				VolMult:     0.02,
			},
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at path over the defaults and then
// applies environment variable overrides. A missing file is not an error;
// defaults plus environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("POLYGON_API_KEY"); v != "" {
		cfg.Feed.PolygonAPIKey = v
	}
	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Feed.AlpacaKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Feed.AlpacaSecret = v
	}

	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}

	if v := os.Getenv("TICKER_FILE"); v != "" {
		cfg.Detector.TickerFile = v
	}
	if envBool("DISABLE_NOTIFICATIONS") {
		cfg.Detector.DisableNotifications = true
	}
	if envBool("STAGE2_DEBUG") {
		cfg.Detector.Stage2Debug = true
	}
	if envBool("BACKTEST_MODE") {
		cfg.Detector.BacktestMode = true
	}
}

// envBool treats "1", "true", "yes" (case-insensitive) as true.
func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
