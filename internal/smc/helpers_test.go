package smc

import (
	"math"
	"time"

	"smc-trading-bot/internal/market"
)

// seriesFrom builds an hourly series from [open, high, low, close] rows.
func seriesFrom(rows [][4]float64) *market.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]market.Candle, len(rows))
	for i, r := range rows {
		candles[i] = market.Candle{
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Open:     r[0],
			High:     r[1],
			Low:      r[2],
			Close:    r[3],
			Volume:   100,
		}
	}
	return market.NewSeries(candles)
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
