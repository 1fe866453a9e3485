package engine

// SpreadRatio returns the relative bid/ask spread for a symbol. With a
// usable quote (bid > 0, ask > 0, ask >= bid) it is (ask-bid)/midpoint.
// Without one, a conservative tier keyed on price stands in; with no price
// either, nil means unknown.
func (e *Engine) SpreadRatio(symbol string, price float64) *float64 {
	e.quoteMu.Lock()
	q, ok := e.quotes[symbol]
	e.quoteMu.Unlock()

	if ok && q.Bid > 0 && q.Ask > 0 && q.Ask >= q.Bid {
		mid := (q.Bid + q.Ask) / 2
		r := (q.Ask - q.Bid) / mid
		return &r
	}

	if price > 0 {
		var r float64
		switch {
		case price >= 5:
			r = 0.001
		case price >= 1:
			r = 0.005
		default:
			r = 0.01
		}
		return &r
	}
	return nil
}
