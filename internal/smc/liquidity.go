package smc

import "smc-trading-bot/internal/market"

// DetectLiquidity clusters swing highs and swing lows that sit within
// rangePercent of each other into liquidity levels. The first swing in a
// cluster anchors both the tolerance band and the level price, and each swing
// belongs to at most one cluster. A cluster needs at least two members; a
// lone swing is not resting liquidity.
//
// A level is swept at the first candle after its last member whose wick
// reaches the level: at or above it for swing-high liquidity, at or below it
// for swing-low. An exact touch counts; stop hunts routinely tag a level to
// the tick. Swept levels keep their SweptAt index across re-runs.
func DetectLiquidity(series *market.Series, swings []SwingPoint, rangePercent float64) []LiquidityLevel {
	var levels []LiquidityLevel
	used := make(map[int]bool)

	for i, anchor := range swings {
		if used[anchor.Index] {
			continue
		}
		tolerance := anchor.Price * rangePercent

		level := LiquidityLevel{
			Index:    anchor.Index,
			EndIndex: anchor.Index,
			Kind:     anchor.Kind,
			Level:    anchor.Price,
		}
		members := 1

		for _, sw := range swings[i+1:] {
			if sw.Kind != anchor.Kind || used[sw.Index] {
				continue
			}
			if sw.Price < anchor.Price-tolerance || sw.Price > anchor.Price+tolerance {
				continue
			}
			used[sw.Index] = true
			level.EndIndex = sw.Index
			members++
		}

		if members < 2 {
			continue
		}
		used[anchor.Index] = true
		markSweep(series, &level)
		levels = append(levels, level)
	}
	return levels
}

func markSweep(series *market.Series, level *LiquidityLevel) {
	for i := level.EndIndex + 1; i < series.Len(); i++ {
		c := series.At(i)
		crossed := (level.Kind == SwingHigh && c.High >= level.Level) ||
			(level.Kind == SwingLow && c.Low <= level.Level)
		if crossed {
			idx := i
			level.Swept = true
			level.SweptAt = &idx
			return
		}
	}
}

// RecentLiquidity returns the most recent count levels of the given kind,
// newest first, ordered by the last swing that formed each level.
func RecentLiquidity(levels []LiquidityLevel, kind SwingKind, count int) []LiquidityLevel {
	var matched []LiquidityLevel
	for _, lv := range levels {
		if lv.Kind == kind {
			matched = append(matched, lv)
		}
	}
	var recent []LiquidityLevel
	for i := len(matched) - 1; i >= 0 && len(recent) < count; i-- {
		recent = append(recent, matched[i])
	}
	return recent
}
