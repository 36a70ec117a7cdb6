package smc

import "smc-trading-bot/internal/market"

// DetectFVGs finds three-candle imbalances. A bullish gap exists where the
// third candle's low sits above the first candle's high, a bearish gap where
// the third candle's high sits below the first candle's low. OriginIndex is
// the middle candle.
//
// With joinConsecutive, gaps whose middle candles are adjacent and share a
// direction are merged into one zone covering both ranges, provided the
// earlier gap is still unmitigated when the later one completes. A gap is
// mitigated
// at the first candle after the pattern whose close falls back inside the
// zone; MitigatedAt is write-once across re-runs.
func DetectFVGs(series *market.Series, joinConsecutive bool) []FairValueGap {
	n := series.Len()
	var gaps []FairValueGap

	for i := 1; i < n-1; i++ {
		a := series.At(i - 1)
		c := series.At(i + 1)

		var gap FairValueGap
		switch {
		case c.Low > a.High:
			gap = FairValueGap{OriginIndex: i, Direction: Bullish, Top: c.Low, Bottom: a.High}
		case c.High < a.Low:
			gap = FairValueGap{OriginIndex: i, Direction: Bearish, Top: a.Low, Bottom: c.High}
		default:
			continue
		}

		if joinConsecutive && len(gaps) > 0 {
			prev := &gaps[len(gaps)-1]
			// The candle completing this gap is the first index at which the
			// previous gap can mitigate. A mitigated gap is done; the new one
			// starts its own zone.
			completing := series.At(i + 1)
			prevLive := completing.Close < prev.Bottom || completing.Close > prev.Top
			if prevLive && prev.Direction == gap.Direction && gap.OriginIndex == prev.OriginIndex+1 {
				if gap.Top > prev.Top {
					prev.Top = gap.Top
				}
				if gap.Bottom < prev.Bottom {
					prev.Bottom = gap.Bottom
				}
				continue
			}
		}
		gaps = append(gaps, gap)
	}

	for g := range gaps {
		markGapMitigation(series, &gaps[g])
	}
	return gaps
}

func markGapMitigation(series *market.Series, gap *FairValueGap) {
	for i := gap.OriginIndex + 2; i < series.Len(); i++ {
		c := series.At(i)
		if c.Close >= gap.Bottom && c.Close <= gap.Top {
			idx := i
			gap.MitigatedAt = &idx
			return
		}
	}
}

// ActiveGaps returns unmitigated gaps of the given direction originating in
// the trailing lookback candles, in origin order.
func ActiveGaps(gaps []FairValueGap, dir Direction, seriesLen, lookback int) []FairValueGap {
	return ActiveGapsAsOf(gaps, dir, seriesLen, lookback, seriesLen-1)
}

// ActiveGapsAsOf is ActiveGaps with the mitigation cutoff moved to asOf: a
// gap mitigated after asOf still counts as active. The lookback window stays
// anchored to the end of the series.
func ActiveGapsAsOf(gaps []FairValueGap, dir Direction, seriesLen, lookback, asOf int) []FairValueGap {
	floor := seriesLen - lookback
	if floor < 0 {
		floor = 0
	}

	var active []FairValueGap
	for _, g := range gaps {
		if g.Direction != dir || g.OriginIndex < floor {
			continue
		}
		if !g.Active(asOf) {
			continue
		}
		active = append(active, g)
	}
	return active
}
