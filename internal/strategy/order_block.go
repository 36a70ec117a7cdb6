package strategy

import (
	"fmt"
	"time"

	"smc-trading-bot/internal/market"
	"smc-trading-bot/internal/smc"
)

// OrderBlockConfig tunes the order block retest strategy.
type OrderBlockConfig struct {
	RequireStructure     bool // demand an aligned structure break before entry
	RequireFVGConfluence bool // demand an overlapping fair value gap
}

// OrderBlockStrategy enters when price retests an unmitigated order block.
// Long setups are checked before shorts, so a candle touching both a demand
// and a supply zone resolves long.
type OrderBlockStrategy struct {
	config OrderBlockConfig
}

func NewOrderBlockStrategy(config OrderBlockConfig) *OrderBlockStrategy {
	return &OrderBlockStrategy{config: config}
}

func (s *OrderBlockStrategy) Name() string {
	return "order_block"
}

func (s *OrderBlockStrategy) Evaluate(series *market.Series, analysis *smc.Analysis, symbol string) (*Signal, error) {
	price := series.LastClose()
	if price <= 0 {
		return nil, nil
	}

	if sig := s.checkSide(analysis, symbol, price, smc.Bullish); sig != nil {
		return sig, nil
	}
	if sig := s.checkSide(analysis, symbol, price, smc.Bearish); sig != nil {
		return sig, nil
	}
	return nil, nil
}

func (s *OrderBlockStrategy) checkSide(analysis *smc.Analysis, symbol string, price float64, dir smc.Direction) *Signal {
	if s.config.RequireStructure {
		latest := analysis.LatestStructure()
		if latest == nil || latest.Direction != dir {
			return nil
		}
	}

	for _, ob := range analysis.ActiveOrderBlocks(dir) {
		if !zoneTouched(price, ob.Top, ob.Bottom) {
			continue
		}
		if s.config.RequireFVGConfluence && !hasGapConfluence(analysis, dir, ob.Top, ob.Bottom, price) {
			continue
		}

		side := SideLong
		if dir == smc.Bearish {
			side = SideShort
		}
		return &Signal{
			Strategy:   s.Name(),
			Symbol:     symbol,
			Side:       side,
			EntryPrice: price,
			ZoneTop:    ob.Top,
			ZoneBottom: ob.Bottom,
			Reason: fmt.Sprintf("price %.4f retested %s order block [%.4f, %.4f] strength %.0f%%",
				price, dir, ob.Bottom, ob.Top, ob.StrengthPct),
			Timestamp: time.Now(),
		}
	}
	return nil
}

// zoneTouched widens the zone by the larger of a fifth of its height and half
// a percent of price, so near-misses on wide zones and thin zones both count.
func zoneTouched(price, top, bottom float64) bool {
	tolerance := (top - bottom) * 0.2
	if min := price * 0.005; min > tolerance {
		tolerance = min
	}
	return price >= bottom-tolerance && price <= top+tolerance
}

// hasGapConfluence reports whether an active same-direction gap overlaps the
// zone or contains the current price.
func hasGapConfluence(analysis *smc.Analysis, dir smc.Direction, top, bottom, price float64) bool {
	for _, gap := range analysis.ActiveGaps(dir) {
		if gap.Contains(price) {
			return true
		}
		if gap.Bottom <= top && gap.Top >= bottom {
			return true
		}
	}
	return false
}
