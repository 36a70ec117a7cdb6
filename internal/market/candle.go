package market

import (
	"errors"
	"time"
)

// ErrDataUnavailable indicates the exchange could not supply candles for a
// symbol this cycle. Callers skip the symbol and move on.
var ErrDataUnavailable = errors.New("market data unavailable")

// Candle represents a single OHLCV candlestick. Candles are immutable once
// appended to a Series.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool {
	return c.Close > c.Open
}

// Bearish reports whether the candle closed below its open.
func (c Candle) Bearish() bool {
	return c.Close < c.Open
}

// Series is an append-only, chronologically ordered sequence of candles.
// Index order is the sole ordering key used by the analysis code; wall-clock
// timestamps are carried for reporting only.
type Series struct {
	candles []Candle
}

// NewSeries creates a Series from candles already sorted in ascending
// chronological order.
func NewSeries(candles []Candle) *Series {
	s := &Series{candles: make([]Candle, len(candles))}
	copy(s.candles, candles)
	return s
}

// Append adds a candle to the end of the series.
func (s *Series) Append(c Candle) {
	s.candles = append(s.candles, c)
}

// Len returns the number of candles in the series.
func (s *Series) Len() int {
	return len(s.candles)
}

// At returns the candle at index i. Panics on out-of-range access, matching
// slice semantics; all analysis code bounds-checks before calling.
func (s *Series) At(i int) Candle {
	return s.candles[i]
}

// Last returns the most recent candle and false when the series is empty.
func (s *Series) Last() (Candle, bool) {
	if len(s.candles) == 0 {
		return Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// LastClose returns the most recent close price, or 0 when empty.
func (s *Series) LastClose() float64 {
	if c, ok := s.Last(); ok {
		return c.Close
	}
	return 0
}

// Slice returns a copy of the candles in [from, to).
func (s *Series) Slice(from, to int) []Candle {
	if from < 0 {
		from = 0
	}
	if to > len(s.candles) {
		to = len(s.candles)
	}
	if from >= to {
		return nil
	}
	out := make([]Candle, to-from)
	copy(out, s.candles[from:to])
	return out
}

// AverageVolume returns the mean volume over the trailing period candles,
// excluding the candle at the current (last) index.
func (s *Series) AverageVolume(period int) float64 {
	n := len(s.candles)
	if n < 2 {
		return 0
	}
	end := n - 1
	start := end - period
	if start < 0 {
		start = 0
	}
	if end == start {
		return 0
	}
	sum := 0.0
	for i := start; i < end; i++ {
		sum += s.candles[i].Volume
	}
	return sum / float64(end-start)
}
