package smc

import "smc-trading-bot/internal/market"

// DetectOrderBlocks derives order blocks from structure breaks: the block is
// the last opposing candle before the displacement that produced the break,
// its zone the candle's full range. StrengthPct grades the displacement that
// followed relative to the zone height, capped at 100.
//
// Mitigation marks the first later candle where price trades back through the
// zone's far edge: through the bottom for bullish blocks, through the top for
// bearish. With closeMitigation only closes count, otherwise any wick does.
// MitigatedAt is write-once; re-running over a longer series never clears it.
func DetectOrderBlocks(series *market.Series, events []StructureEvent, closeMitigation bool) []OrderBlock {
	n := series.Len()
	var blocks []OrderBlock

	for _, ev := range events {
		origin := findOpposingCandle(series, ev)
		if origin < 0 {
			continue
		}

		c := series.At(origin)
		top, bottom := c.High, c.Low
		if top < bottom {
			top, bottom = bottom, top
		}

		ob := OrderBlock{
			OriginIndex: origin,
			Direction:   ev.Direction,
			Top:         top,
			Bottom:      bottom,
			StrengthPct: blockStrength(series, ev, top, bottom),
			Volume:      c.Volume,
		}

		for i := origin + 1; i < n; i++ {
			if blockMitigated(series.At(i), &ob, closeMitigation) {
				idx := i
				ob.MitigatedAt = &idx
				break
			}
		}
		blocks = append(blocks, ob)
	}
	return blocks
}

// findOpposingCandle scans backward from the break candle for the last candle
// closed against the break direction.
func findOpposingCandle(series *market.Series, ev StructureEvent) int {
	for i := ev.BrokenAt - 1; i >= 0; i-- {
		c := series.At(i)
		if ev.Direction == Bullish && c.Bearish() {
			return i
		}
		if ev.Direction == Bearish && c.Bullish() {
			return i
		}
	}
	return -1
}

func blockStrength(series *market.Series, ev StructureEvent, top, bottom float64) float64 {
	height := top - bottom
	if height <= 0 {
		return 0
	}
	breakClose := series.At(ev.BrokenAt).Close
	var displacement float64
	if ev.Direction == Bullish {
		displacement = breakClose - top
	} else {
		displacement = bottom - breakClose
	}
	if displacement <= 0 {
		return 0
	}
	strength := displacement / height * 100
	if strength > 100 {
		strength = 100
	}
	return strength
}

func blockMitigated(c market.Candle, ob *OrderBlock, closeMitigation bool) bool {
	if ob.Direction == Bullish {
		if closeMitigation {
			return c.Close < ob.Bottom
		}
		return c.Low < ob.Bottom
	}
	if closeMitigation {
		return c.Close > ob.Top
	}
	return c.High > ob.Top
}

// ActiveOrderBlocks returns the blocks of the given direction originating in
// the trailing lookback candles that are still unmitigated as of the last
// index, in origin order. Mitigated historical blocks are excluded for good.
func ActiveOrderBlocks(blocks []OrderBlock, dir Direction, seriesLen, lookback int) []OrderBlock {
	currentIndex := seriesLen - 1
	floor := seriesLen - lookback
	if floor < 0 {
		floor = 0
	}

	var active []OrderBlock
	for _, ob := range blocks {
		if ob.Direction != dir || ob.OriginIndex < floor {
			continue
		}
		if !ob.Active(currentIndex) {
			continue
		}
		active = append(active, ob)
	}
	return active
}
