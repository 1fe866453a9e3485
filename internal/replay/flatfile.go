// Package replay drives the detection engine offline from archived minute
// bars: gzipped daily flat files or the Parquet archive.
package replay

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"tapewatch/internal/domain"
	"tapewatch/internal/market"
)

// ReadDay parses one gzipped daily flat file of minute aggregates with
// columns ticker,volume,open,close,high,low,window_start,transactions.
// window_start is epoch nanoseconds (milliseconds and seconds are also
// accepted). Rows failing to parse are skipped. If filter is non-empty,
// only those symbols are returned.
func ReadDay(path string, filter map[string]struct{}) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening flat file %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, need := range []string{"ticker", "volume", "open", "close", "high", "low", "window_start"} {
		if _, ok := col[need]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, need)
		}
	}
	txCol, hasTx := col["transactions"]

	var bars []domain.Bar
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		sym := strings.ToUpper(strings.TrimSpace(row[col["ticker"]]))
		if sym == "" {
			continue
		}
		if filter != nil {
			if _, ok := filter[sym]; !ok {
				continue
			}
		}

		vol, err1 := strconv.ParseInt(strings.TrimSpace(row[col["volume"]]), 10, 64)
		open, err2 := strconv.ParseFloat(row[col["open"]], 64)
		close_, err3 := strconv.ParseFloat(row[col["close"]], 64)
		high, err4 := strconv.ParseFloat(row[col["high"]], 64)
		low, err5 := strconv.ParseFloat(row[col["low"]], 64)
		ws, err6 := strconv.ParseInt(strings.TrimSpace(row[col["window_start"]]), 10, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil || err6 != nil {
			continue
		}

		bar := domain.Bar{
			Symbol:    sym,
			Timestamp: market.NormalizeTimestamp(ws),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close_,
			Volume:    vol,
		}
		if hasTx && txCol < len(row) {
			if tx, err := strconv.ParseInt(strings.TrimSpace(row[txCol]), 10, 64); err == nil {
				bar.TradeCount = tx
			}
		}
		// Flat files carry no VWAP; the OHLC midpoint stands in.
		bar.VWAP = (bar.High + bar.Low + bar.Close) / 3
		bar.Value = bar.VWAP * float64(bar.Volume)
		bars = append(bars, bar)
	}
	return bars, nil
}
