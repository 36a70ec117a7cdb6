package strategy

import (
	"testing"
	"time"

	"smc-trading-bot/internal/market"
	"smc-trading-bot/internal/smc"
)

type row struct {
	o, h, l, c, v float64
}

// seriesOf builds an hourly series starting at 2024-01-01 00:00 UTC.
func seriesOf(rows []row) *market.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]market.Candle, len(rows))
	for i, r := range rows {
		vol := r.v
		if vol == 0 {
			vol = 100
		}
		candles[i] = market.Candle{
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Open:     r.o,
			High:     r.h,
			Low:      r.l,
			Close:    r.c,
			Volume:   vol,
		}
	}
	return market.NewSeries(candles)
}

func analyze(t *testing.T, series *market.Series) *smc.Analysis {
	t.Helper()
	analyzer := smc.NewAnalyzer(smc.Config{
		SwingLength:    1,
		ChochPriority:  true,
		LiquidityRange: 0.01,
		ATRPeriod:      3,
	})
	analysis, err := analyzer.Analyze(series)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	return analysis
}

// A swing high at index 1 broken bullishly at 3, then a swing low at 5 broken
// bearishly at 7. Leaves an unmitigated bullish order block at [7, 11.2] and
// an unmitigated bearish one at [7.5, 13.5], latest structure bearish CHOCH.
var reversalRows = []row{
	{o: 9, h: 10, l: 5, c: 9.5},
	{o: 9.5, h: 12, l: 6, c: 11},
	{o: 11, h: 11.2, l: 7, c: 8},
	{o: 8, h: 13.5, l: 7.5, c: 13},
	{o: 13, h: 13.4, l: 9, c: 12.5},
	{o: 12.5, h: 13, l: 8.5, c: 10},
	{o: 10, h: 10.2, l: 9, c: 9.4},
	{o: 9.4, h: 9.5, l: 7.9, c: 8},
}
