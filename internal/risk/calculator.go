// Package risk derives stops, targets and position size from a signal and
// the volatility of the analyzed series.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"smc-trading-bot/internal/strategy"
)

// Config tunes the risk calculator.
type Config struct {
	TakeProfitATRMult float64 // ATR multiple for the target distance
	StopLossATRMult   float64 // ATR multiple for the stop distance
	ZoneBufferATRMult float64 // extra ATR fraction placed behind a zone stop
	RiskPerTradePct   float64 // percent of balance risked per trade
}

// DefaultConfig returns the calculator defaults.
func DefaultConfig() Config {
	return Config{
		TakeProfitATRMult: 2.0,
		StopLossATRMult:   1.5,
		ZoneBufferATRMult: 0.2,
		RiskPerTradePct:   1.0,
	}
}

// Plan is a fully sized trade derived from a signal.
type Plan struct {
	Side       strategy.Side `json:"side"`
	EntryPrice float64       `json:"entry_price"`
	StopLoss   float64       `json:"stop_loss"`
	TakeProfit float64       `json:"take_profit"`
	Quantity   float64       `json:"quantity"`
	RiskAmount float64       `json:"risk_amount"`
}

// Calculator turns signals into sized trade plans.
type Calculator struct {
	config Config
}

func NewCalculator(config Config) *Calculator {
	def := DefaultConfig()
	if config.TakeProfitATRMult <= 0 {
		config.TakeProfitATRMult = def.TakeProfitATRMult
	}
	if config.StopLossATRMult <= 0 {
		config.StopLossATRMult = def.StopLossATRMult
	}
	if config.ZoneBufferATRMult <= 0 {
		config.ZoneBufferATRMult = def.ZoneBufferATRMult
	}
	if config.RiskPerTradePct <= 0 {
		config.RiskPerTradePct = def.RiskPerTradePct
	}
	return &Calculator{config: config}
}

// Levels computes the stop and target for a signal. Distances are ATR based
// with a floor of 1% of entry for the target and 0.5% for the stop, so thin
// volatility never produces a degenerate bracket. When the signal carries a
// zone, the stop goes behind it with an ATR buffer, but never closer to entry
// than the plain ATR stop; a zone stop on the wrong side of entry falls back
// to the ATR stop.
func (c *Calculator) Levels(sig *strategy.Signal, atr float64) (stopLoss, takeProfit float64, err error) {
	entry := sig.EntryPrice
	if entry <= 0 {
		return 0, 0, fmt.Errorf("signal for %s has no entry price", sig.Symbol)
	}
	if atr <= 0 {
		return 0, 0, fmt.Errorf("signal for %s has no volatility context", sig.Symbol)
	}

	tpDist := c.config.TakeProfitATRMult * atr
	if floor := entry * 0.01; floor > tpDist {
		tpDist = floor
	}
	slDist := c.config.StopLossATRMult * atr
	if floor := entry * 0.005; floor > slDist {
		slDist = floor
	}
	buffer := c.config.ZoneBufferATRMult * atr

	switch sig.Side {
	case strategy.SideLong:
		takeProfit = entry + tpDist
		stopLoss = entry - slDist
		if sig.ZoneBottom > 0 {
			if zoneStop := sig.ZoneBottom - buffer; zoneStop < stopLoss {
				stopLoss = zoneStop
			}
		}
		if stopLoss >= entry {
			stopLoss = entry - slDist
		}
	case strategy.SideShort:
		takeProfit = entry - tpDist
		stopLoss = entry + slDist
		if sig.ZoneTop > 0 {
			if zoneStop := sig.ZoneTop + buffer; zoneStop > stopLoss {
				stopLoss = zoneStop
			}
		}
		if stopLoss <= entry {
			stopLoss = entry + slDist
		}
	default:
		return 0, 0, fmt.Errorf("unknown signal side %q", sig.Side)
	}
	return stopLoss, takeProfit, nil
}

// BuildPlan sizes the trade so the stop distance costs RiskPerTradePct of
// balance, with the quantity rounded down to the instrument's step.
func (c *Calculator) BuildPlan(sig *strategy.Signal, atr, balance, qtyStep float64) (*Plan, error) {
	stopLoss, takeProfit, err := c.Levels(sig, atr)
	if err != nil {
		return nil, err
	}
	if balance <= 0 {
		return nil, fmt.Errorf("cannot size %s trade: balance is %.2f", sig.Symbol, balance)
	}

	stopDist := sig.EntryPrice - stopLoss
	if stopDist < 0 {
		stopDist = -stopDist
	}
	riskAmount := balance * c.config.RiskPerTradePct / 100

	qty := decimal.NewFromFloat(riskAmount).Div(decimal.NewFromFloat(stopDist))
	if qtyStep > 0 {
		step := decimal.NewFromFloat(qtyStep)
		qty = qty.Div(step).Floor().Mul(step)
	}
	quantity, _ := qty.Float64()
	if quantity <= 0 {
		return nil, fmt.Errorf("sized quantity for %s rounds to zero", sig.Symbol)
	}

	return &Plan{
		Side:       sig.Side,
		EntryPrice: sig.EntryPrice,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Quantity:   quantity,
		RiskAmount: riskAmount,
	}, nil
}
