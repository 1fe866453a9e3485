package market

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// LoadWatchlist reads ticker symbols from the first column of a CSV (or
// plain newline-separated) file. A leading header row of SYMBOL or TICKER
// is skipped. Symbols are upper-cased and deduplicated, preserving order.
func LoadWatchlist(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening watchlist %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading watchlist %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(records))
	symbols := make([]string, 0, len(records))
	for _, row := range records {
		if len(row) == 0 {
			continue
		}
		sym := strings.ToUpper(strings.TrimSpace(row[0]))
		if sym == "" || sym == "SYMBOL" || sym == "TICKER" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		symbols = append(symbols, sym)
	}

	if len(symbols) == 0 {
		return nil, fmt.Errorf("watchlist %s contains no symbols", path)
	}
	return symbols, nil
}
