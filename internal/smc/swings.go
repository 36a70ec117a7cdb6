package smc

import "smc-trading-bot/internal/market"

// DetectSwings classifies local extrema over a symmetric window of half-width
// length. Index i is a swing HIGH when its high strictly exceeds every high
// in the preceding length candles and is at least as high as every high in
// the following length candles; the asymmetry lets the earlier of two
// equal-value extremes keep the flag. Mirror logic for LOW. Indices without
// length candles of context on both sides are undecided.
//
// Returns an empty slice when the series is shorter than 2*length+1.
func DetectSwings(series *market.Series, length int) []SwingPoint {
	n := series.Len()
	if length < 1 || n < 2*length+1 {
		return nil
	}

	var swings []SwingPoint
	for i := length; i < n-length; i++ {
		high := series.At(i).High
		low := series.At(i).Low

		isHigh := true
		isLow := true
		for j := i - length; j <= i+length; j++ {
			if j == i {
				continue
			}
			other := series.At(j)
			if j < i {
				// Earlier candle with an equal extreme keeps its own flag.
				if other.High >= high {
					isHigh = false
				}
				if other.Low <= low {
					isLow = false
				}
			} else {
				if other.High > high {
					isHigh = false
				}
				if other.Low < low {
					isLow = false
				}
			}
			if !isHigh && !isLow {
				break
			}
		}

		if isHigh {
			swings = append(swings, SwingPoint{Index: i, Kind: SwingHigh, Price: high})
		} else if isLow {
			swings = append(swings, SwingPoint{Index: i, Kind: SwingLow, Price: low})
		}
	}
	return swings
}
