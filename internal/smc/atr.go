package smc

import (
	"fmt"

	"smc-trading-bot/internal/market"
)

// ATR holds per-index average true range values for a series. Values are a
// simple rolling mean of true range over the period, undefined for the first
// period candles.
type ATR struct {
	period int
	values []float64
}

// ComputeATR computes the average true range for every index of the series.
func ComputeATR(series *market.Series, period int) *ATR {
	n := series.Len()
	tr := make([]float64, n)
	for i := 0; i < n; i++ {
		c := series.At(i)
		r := c.High - c.Low
		if i > 0 {
			prevClose := series.At(i - 1).Close
			if hc := abs(c.High - prevClose); hc > r {
				r = hc
			}
			if lc := abs(c.Low - prevClose); lc > r {
				r = lc
			}
		}
		tr[i] = r
	}

	values := make([]float64, n)
	var sum float64
	for i := 0; i < n; i++ {
		sum += tr[i]
		if i >= period {
			sum -= tr[i-period]
			values[i] = sum / float64(period)
		}
	}
	return &ATR{period: period, values: values}
}

// AtIndex returns the ATR at index i, or false when the value is undefined.
func (a *ATR) AtIndex(i int) (float64, bool) {
	if i < a.period || i >= len(a.values) {
		return 0, false
	}
	return a.values[i], true
}

// Last returns the ATR at the final index of the computed series.
func (a *ATR) Last() (float64, error) {
	v, ok := a.AtIndex(len(a.values) - 1)
	if !ok {
		return 0, fmt.Errorf("atr needs more than %d candles: %w", a.period, ErrInsufficientData)
	}
	return v, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
