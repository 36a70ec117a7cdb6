package market

import (
	"testing"
	"time"
)

func testSeries(rows [][4]float64) *Series {
	open := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]Candle, len(rows))
	for i, r := range rows {
		candles[i] = Candle{
			OpenTime: open.Add(time.Duration(i) * time.Hour),
			Open:     r[0], High: r[1], Low: r[2], Close: r[3],
			Volume: 100,
		}
	}
	return NewSeries(candles)
}

func TestCandleDirection(t *testing.T) {
	bull := Candle{Open: 10, Close: 11}
	bear := Candle{Open: 11, Close: 10}
	doji := Candle{Open: 10, Close: 10}

	if !bull.Bullish() || bull.Bearish() {
		t.Error("candle closing above open should be bullish only")
	}
	if !bear.Bearish() || bear.Bullish() {
		t.Error("candle closing below open should be bearish only")
	}
	if doji.Bullish() || doji.Bearish() {
		t.Error("doji should be neither bullish nor bearish")
	}
}

func TestSeriesBasics(t *testing.T) {
	s := testSeries([][4]float64{{10, 11, 9, 10.5}, {10.5, 12, 10, 11.5}})

	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if s.At(1).Close != 11.5 {
		t.Errorf("At(1).Close = %v, want 11.5", s.At(1).Close)
	}
	last, ok := s.Last()
	if !ok || last.Close != 11.5 {
		t.Errorf("Last = (%v, %v), want close 11.5", last.Close, ok)
	}
	if s.LastClose() != 11.5 {
		t.Errorf("LastClose = %v, want 11.5", s.LastClose())
	}

	s.Append(Candle{Open: 11.5, High: 12, Low: 11, Close: 11.8})
	if s.Len() != 3 || s.LastClose() != 11.8 {
		t.Errorf("after Append: Len = %d, LastClose = %v", s.Len(), s.LastClose())
	}
}

func TestEmptySeries(t *testing.T) {
	s := NewSeries(nil)
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
	if _, ok := s.Last(); ok {
		t.Error("Last on empty series should report false")
	}
	if s.LastClose() != 0 {
		t.Error("LastClose on empty series should be 0")
	}
	if got := s.Slice(0, 5); got != nil {
		t.Errorf("Slice on empty series = %v, want nil", got)
	}
}

func TestSeriesIsolatedFromInput(t *testing.T) {
	candles := []Candle{{Close: 1}, {Close: 2}}
	s := NewSeries(candles)
	candles[0].Close = 99
	if s.At(0).Close != 1 {
		t.Error("mutating the input slice must not affect the series")
	}
}

func TestSliceClampsBounds(t *testing.T) {
	s := testSeries([][4]float64{{1, 1, 1, 1}, {2, 2, 2, 2}, {3, 3, 3, 3}})

	out := s.Slice(-5, 10)
	if len(out) != 3 {
		t.Fatalf("Slice(-5, 10) len = %d, want 3", len(out))
	}
	out = s.Slice(1, 2)
	if len(out) != 1 || out[0].Close != 2 {
		t.Errorf("Slice(1, 2) = %v, want the middle candle", out)
	}
	if s.Slice(2, 1) != nil {
		t.Error("inverted range should return nil")
	}

	// The returned slice is a copy.
	out = s.Slice(0, 3)
	out[0].Close = 99
	if s.At(0).Close == 99 {
		t.Error("mutating a Slice result must not affect the series")
	}
}

func TestAverageVolume(t *testing.T) {
	open := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := []Candle{
		{OpenTime: open, Volume: 10},
		{OpenTime: open.Add(time.Hour), Volume: 20},
		{OpenTime: open.Add(2 * time.Hour), Volume: 30},
		{OpenTime: open.Add(3 * time.Hour), Volume: 500}, // current candle excluded
	}
	s := NewSeries(candles)

	if got := s.AverageVolume(3); got != 20 {
		t.Errorf("AverageVolume(3) = %v, want 20", got)
	}
	// Period longer than history uses what exists.
	if got := s.AverageVolume(10); got != 20 {
		t.Errorf("AverageVolume(10) = %v, want 20", got)
	}

	short := NewSeries(candles[:1])
	if got := short.AverageVolume(3); got != 0 {
		t.Errorf("AverageVolume with one candle = %v, want 0", got)
	}
}
