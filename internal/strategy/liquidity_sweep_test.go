package strategy

import (
	"testing"

	"smc-trading-bot/internal/smc"
)

// Equal lows near 50 form a liquidity pool; the final candle wicks through it
// on elevated volume and closes back above.
var sweepRows = []row{
	{o: 53, h: 54, l: 52, c: 53},
	{o: 53, h: 53.5, l: 50, c: 52},
	{o: 52, h: 53, l: 52, c: 52.5},
	{o: 52.5, h: 53.5, l: 52.5, c: 53},
	{o: 53, h: 53.2, l: 50.2, c: 52},
	{o: 52, h: 53, l: 52, c: 52.5},
	{o: 52.5, h: 53, l: 52.2, c: 52.8},
	{o: 52.8, h: 53, l: 52, c: 52.5},
	{o: 52.5, h: 52.8, l: 49.7, c: 51, v: 150},
}

func TestLiquiditySweepStrategyLong(t *testing.T) {
	series := seriesOf(sweepRows)
	analysis := analyze(t, series)

	s := NewLiquiditySweepStrategy(DefaultLiquiditySweepConfig())
	sig, err := s.Evaluate(series, analysis, "ETHUSDT")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if sig == nil || sig.Side != SideLong {
		t.Fatalf("expected a long signal, got %+v", sig)
	}
	// Stop context is the sweep wick under the level.
	if sig.ZoneTop != 50 || sig.ZoneBottom != 49.7 {
		t.Errorf("zone = [%v, %v], want [49.7, 50]", sig.ZoneBottom, sig.ZoneTop)
	}
}

func TestLiquiditySweepStrategyVolumeFilter(t *testing.T) {
	rows := append([]row{}, sweepRows...)
	rows[8].v = 100 // sweep volume no better than the average
	series := seriesOf(rows)
	analysis := analyze(t, series)

	s := NewLiquiditySweepStrategy(DefaultLiquiditySweepConfig())
	sig, err := s.Evaluate(series, analysis, "ETHUSDT")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if sig != nil {
		t.Errorf("expected the volume filter to block the signal, got %+v", sig)
	}

	relaxed := DefaultLiquiditySweepConfig()
	relaxed.RequireVolume = false
	sig, err = NewLiquiditySweepStrategy(relaxed).Evaluate(series, analysis, "ETHUSDT")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if sig == nil {
		t.Error("expected a signal with the volume filter disabled")
	}
}

func TestLiquiditySweepStrategyStaleSweep(t *testing.T) {
	rows := append(append([]row{}, sweepRows...),
		row{o: 51, h: 52.5, l: 50.8, c: 52},
		row{o: 52, h: 52.6, l: 51, c: 52.2},
	)
	series := seriesOf(rows)

	sweptAt := 8
	analysis := &smc.Analysis{Liquidity: []smc.LiquidityLevel{
		{Index: 1, EndIndex: 4, Kind: smc.SwingLow, Level: 50, Swept: true, SweptAt: &sweptAt},
	}}

	cfg := DefaultLiquiditySweepConfig()
	cfg.RequireVolume = false
	sig, err := NewLiquiditySweepStrategy(cfg).Evaluate(series, analysis, "ETHUSDT")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if sig != nil {
		t.Errorf("a sweep two candles old must not fire, got %+v", sig)
	}
}

func TestLiquiditySweepStrategyShallowExcursion(t *testing.T) {
	rows := append([]row{}, sweepRows...)
	rows[8].l = 49.98 // 0.04% under the level, below the threshold
	series := seriesOf(rows)

	sweptAt := 8
	analysis := &smc.Analysis{Liquidity: []smc.LiquidityLevel{
		{Index: 1, EndIndex: 4, Kind: smc.SwingLow, Level: 50, Swept: true, SweptAt: &sweptAt},
	}}

	cfg := DefaultLiquiditySweepConfig()
	cfg.RequireVolume = false
	sig, err := NewLiquiditySweepStrategy(cfg).Evaluate(series, analysis, "ETHUSDT")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if sig != nil {
		t.Errorf("a shallow wick must not fire, got %+v", sig)
	}
}

func TestLiquiditySweepStrategyShort(t *testing.T) {
	rows := []row{
		{o: 58, h: 60, l: 57, c: 58.5},
		{o: 58.5, h: 59, l: 57.5, c: 58},
		{o: 58, h: 60.3, l: 57.8, c: 59.5},
	}
	series := seriesOf(rows)

	sweptAt := 2
	analysis := &smc.Analysis{Liquidity: []smc.LiquidityLevel{
		{Index: 0, EndIndex: 1, Kind: smc.SwingHigh, Level: 60, Swept: true, SweptAt: &sweptAt},
	}}

	cfg := DefaultLiquiditySweepConfig()
	cfg.RequireVolume = false
	sig, err := NewLiquiditySweepStrategy(cfg).Evaluate(series, analysis, "ETHUSDT")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if sig == nil || sig.Side != SideShort {
		t.Fatalf("expected a short signal, got %+v", sig)
	}
	if sig.ZoneTop != 60.3 || sig.ZoneBottom != 60 {
		t.Errorf("zone = [%v, %v], want [60, 60.3]", sig.ZoneBottom, sig.ZoneTop)
	}
}
