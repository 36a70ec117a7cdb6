package smc

import "smc-trading-bot/internal/market"

// DetectStructure walks the series forward, maintaining the most recent
// confirmed swing high and low as structure levels. A close through a level
// emits a StructureEvent: CHOCH when the break reverses the direction of the
// previous event, BOS otherwise. Only closes count; wick-only excursions are
// ignored for noise suppression. A break consumes both levels, so the next
// event needs freshly confirmed swings.
//
// A swing at index s is confirmed once length candles exist on its right,
// i.e. at candle index s+length.
func DetectStructure(series *market.Series, swings []SwingPoint, length int) []StructureEvent {
	n := series.Len()
	if n == 0 || len(swings) == 0 {
		return nil
	}

	byIndex := make(map[int]SwingPoint, len(swings))
	for _, sp := range swings {
		byIndex[sp.Index] = sp
	}

	var (
		events   []StructureEvent
		lastHigh *SwingPoint
		lastLow  *SwingPoint
		prevDir  Direction
	)

	for j := 0; j < n; j++ {
		// Confirm swings whose right-hand window completed at this candle.
		if sp, ok := byIndex[j-length]; ok {
			cp := sp
			switch sp.Kind {
			case SwingHigh:
				lastHigh = &cp
			case SwingLow:
				lastLow = &cp
			}
		}

		close := series.At(j).Close

		if lastHigh != nil && close > lastHigh.Price {
			kind := BOS
			if prevDir == Bearish {
				kind = CHOCH
			}
			events = append(events, StructureEvent{
				Index:     lastHigh.Index,
				Kind:      kind,
				Direction: Bullish,
				Level:     lastHigh.Price,
				BrokenAt:  j,
			})
			prevDir = Bullish
			lastHigh, lastLow = nil, nil
			continue
		}

		if lastLow != nil && close < lastLow.Price {
			kind := BOS
			if prevDir == Bullish {
				kind = CHOCH
			}
			events = append(events, StructureEvent{
				Index:     lastLow.Index,
				Kind:      kind,
				Direction: Bearish,
				Level:     lastLow.Price,
				BrokenAt:  j,
			})
			prevDir = Bearish
			lastHigh, lastLow = nil, nil
		}
	}
	return events
}

// LatestStructure returns the most recent structure event whose break falls
// within the trailing lookback candles ending at currentIndex. When two
// events share a break index, CHOCH wins over BOS if chochPriority is set.
// Returns nil when no event qualifies.
func LatestStructure(events []StructureEvent, currentIndex, lookback int, chochPriority bool) *StructureEvent {
	floor := currentIndex - lookback + 1
	if floor < 0 {
		floor = 0
	}

	var best *StructureEvent
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.BrokenAt > currentIndex || ev.BrokenAt < floor {
			continue
		}
		if best == nil {
			cp := ev
			best = &cp
			continue
		}
		if ev.BrokenAt < best.BrokenAt {
			break
		}
		// Same break index: apply the configured tie-break.
		if chochPriority && ev.Kind == CHOCH && best.Kind == BOS {
			cp := ev
			best = &cp
		}
	}
	return best
}
