package strategy

import (
	"testing"

	"smc-trading-bot/internal/smc"
)

// A bullish gap forms at [10.5, 11] and the last candle retraces into it.
// Candles are hourly from midnight UTC, so the last candle opens at 03:00.
var silverBulletRows = []row{
	{o: 10, h: 10.5, l: 9.5, c: 10.2},
	{o: 10.2, h: 12, l: 10.1, c: 11.8},
	{o: 11.8, h: 12.5, l: 11.0, c: 12.2},
	{o: 12.2, h: 12.4, l: 10.6, c: 10.8},
}

func TestSilverBulletStrategyInSession(t *testing.T) {
	series := seriesOf(silverBulletRows)
	analysis := analyze(t, series)

	s, err := NewSilverBulletStrategy(SilverBulletConfig{
		Sessions: []Session{{Start: "03:00", End: "04:00"}},
		Timezone: "UTC",
	})
	if err != nil {
		t.Fatalf("NewSilverBulletStrategy() error = %v", err)
	}

	sig, err := s.Evaluate(series, analysis, "BTCUSDT")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if sig == nil || sig.Side != SideLong {
		t.Fatalf("expected a long signal inside the session, got %+v", sig)
	}
	if sig.ZoneBottom != 10.5 || sig.ZoneTop != 11.0 {
		t.Errorf("zone = [%v, %v], want the gap [10.5, 11]", sig.ZoneBottom, sig.ZoneTop)
	}
}

func TestSilverBulletStrategyOutsideSession(t *testing.T) {
	series := seriesOf(silverBulletRows)
	analysis := analyze(t, series)

	s, err := NewSilverBulletStrategy(SilverBulletConfig{
		Sessions: []Session{{Start: "10:00", End: "11:00"}},
		Timezone: "UTC",
	})
	if err != nil {
		t.Fatalf("NewSilverBulletStrategy() error = %v", err)
	}

	sig, err := s.Evaluate(series, analysis, "BTCUSDT")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if sig != nil {
		t.Errorf("expected no signal outside the session, got %+v", sig)
	}
}

// The end minute is excluded: a candle opening exactly at End does not trade.
func TestSilverBulletStrategySessionEndExclusive(t *testing.T) {
	series := seriesOf(silverBulletRows)
	analysis := analyze(t, series)

	s, err := NewSilverBulletStrategy(SilverBulletConfig{
		Sessions: []Session{{Start: "02:00", End: "03:00"}},
		Timezone: "UTC",
	})
	if err != nil {
		t.Fatalf("NewSilverBulletStrategy() error = %v", err)
	}

	sig, err := s.Evaluate(series, analysis, "BTCUSDT")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if sig != nil {
		t.Errorf("expected no signal at the session end boundary, got %+v", sig)
	}
}

// A gap that fell out of the active lookback window does not trade, even
// when it is still unmitigated as of the prior candle.
func TestSilverBulletStrategySkipsStaleGap(t *testing.T) {
	series := seriesOf(silverBulletRows)
	analyzer := smc.NewAnalyzer(smc.Config{
		SwingLength:    1,
		ChochPriority:  true,
		LiquidityRange: 0.01,
		ATRPeriod:      3,
		ActiveLookback: 2, // gap origin at index 1 is outside the window
	})
	analysis, err := analyzer.Analyze(series)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	s, err := NewSilverBulletStrategy(SilverBulletConfig{
		Sessions: []Session{{Start: "03:00", End: "04:00"}},
		Timezone: "UTC",
	})
	if err != nil {
		t.Fatalf("NewSilverBulletStrategy() error = %v", err)
	}

	sig, err := s.Evaluate(series, analysis, "BTCUSDT")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if sig != nil {
		t.Errorf("expected no signal from a gap older than the lookback, got %+v", sig)
	}
}

func TestSilverBulletStrategyPriceOutsideGap(t *testing.T) {
	rows := append([]row{}, silverBulletRows...)
	rows[3].c = 12.0 // retracement never reaches the gap
	series := seriesOf(rows)
	analysis := analyze(t, series)

	s, err := NewSilverBulletStrategy(SilverBulletConfig{
		Sessions: []Session{{Start: "03:00", End: "04:00"}},
		Timezone: "UTC",
	})
	if err != nil {
		t.Fatalf("NewSilverBulletStrategy() error = %v", err)
	}

	sig, err := s.Evaluate(series, analysis, "BTCUSDT")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if sig != nil {
		t.Errorf("expected no signal with price above the gap, got %+v", sig)
	}
}

func TestNewSilverBulletStrategyValidation(t *testing.T) {
	if _, err := NewSilverBulletStrategy(SilverBulletConfig{Timezone: "Not/AZone"}); err == nil {
		t.Error("expected an error for an unknown timezone")
	}
	if _, err := NewSilverBulletStrategy(SilverBulletConfig{
		Sessions: []Session{{Start: "25:99", End: "11:00"}},
		Timezone: "UTC",
	}); err == nil {
		t.Error("expected an error for a malformed session clock")
	}

	s, err := NewSilverBulletStrategy(SilverBulletConfig{})
	if err != nil {
		t.Fatalf("defaults should validate, got %v", err)
	}
	if len(s.config.Sessions) == 0 {
		t.Error("expected default sessions to be applied")
	}
}
