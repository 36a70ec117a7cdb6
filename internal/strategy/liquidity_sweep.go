package strategy

import (
	"fmt"
	"time"

	"smc-trading-bot/internal/market"
	"smc-trading-bot/internal/smc"
)

// LiquiditySweepConfig tunes the sweep reversal strategy.
type LiquiditySweepConfig struct {
	RequireVolume bool    // demand elevated volume on the sweep candle
	VolumeFactor  float64 // sweep volume multiple over the trailing average
	VolumePeriod  int     // candles in the trailing volume average
	MinExcursion  float64 // minimum wick beyond the level, as a fraction of it
}

// DefaultLiquiditySweepConfig returns the sweep strategy defaults.
func DefaultLiquiditySweepConfig() LiquiditySweepConfig {
	return LiquiditySweepConfig{
		RequireVolume: true,
		VolumeFactor:  1.2,
		VolumePeriod:  20,
		MinExcursion:  0.001,
	}
}

// LiquiditySweepStrategy enters on a stop hunt reversal: a wick through a
// liquidity level within the last two candles, with the current close already
// back on the far side. The two most recent levels per side are considered.
type LiquiditySweepStrategy struct {
	config LiquiditySweepConfig
}

func NewLiquiditySweepStrategy(config LiquiditySweepConfig) *LiquiditySweepStrategy {
	def := DefaultLiquiditySweepConfig()
	if config.VolumeFactor <= 0 {
		config.VolumeFactor = def.VolumeFactor
	}
	if config.VolumePeriod <= 0 {
		config.VolumePeriod = def.VolumePeriod
	}
	if config.MinExcursion <= 0 {
		config.MinExcursion = def.MinExcursion
	}
	return &LiquiditySweepStrategy{config: config}
}

func (s *LiquiditySweepStrategy) Name() string {
	return "liquidity_sweep"
}

func (s *LiquiditySweepStrategy) Evaluate(series *market.Series, analysis *smc.Analysis, symbol string) (*Signal, error) {
	if series.Len() == 0 {
		return nil, nil
	}

	if sig := s.checkSide(series, analysis, symbol, smc.SwingLow); sig != nil {
		return sig, nil
	}
	if sig := s.checkSide(series, analysis, symbol, smc.SwingHigh); sig != nil {
		return sig, nil
	}
	return nil, nil
}

func (s *LiquiditySweepStrategy) checkSide(series *market.Series, analysis *smc.Analysis, symbol string, kind smc.SwingKind) *Signal {
	currentIndex := series.Len() - 1
	price := series.LastClose()

	for _, level := range analysis.RecentLiquidity(kind, 2) {
		if !level.Swept || level.SweptAt == nil {
			continue
		}
		sweptAt := *level.SweptAt
		if currentIndex-sweptAt > 1 {
			continue
		}

		sweep := series.At(sweptAt)
		var excursion float64
		reverted := false
		if kind == smc.SwingLow {
			excursion = level.Level - sweep.Low
			reverted = price > level.Level
		} else {
			excursion = sweep.High - level.Level
			reverted = price < level.Level
		}
		if !reverted || excursion <= level.Level*s.config.MinExcursion {
			continue
		}
		if s.config.RequireVolume && !s.volumeElevated(series, sweep.Volume) {
			continue
		}

		side := SideLong
		zoneTop, zoneBottom := level.Level, sweep.Low
		if kind == smc.SwingHigh {
			side = SideShort
			zoneTop, zoneBottom = sweep.High, level.Level
		}
		return &Signal{
			Strategy:   s.Name(),
			Symbol:     symbol,
			Side:       side,
			EntryPrice: price,
			ZoneTop:    zoneTop,
			ZoneBottom: zoneBottom,
			Reason: fmt.Sprintf("%s liquidity at %.4f swept at index %d, close %.4f reverted",
				level.Kind, level.Level, sweptAt, price),
			Timestamp: time.Now(),
		}
	}
	return nil
}

func (s *LiquiditySweepStrategy) volumeElevated(series *market.Series, sweepVolume float64) bool {
	avg := series.AverageVolume(s.config.VolumePeriod)
	if avg <= 0 {
		return false
	}
	return sweepVolume > avg*s.config.VolumeFactor
}
