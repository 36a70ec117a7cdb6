package smc

import (
	"errors"
	"reflect"
	"testing"
)

func analyzerTestConfig() Config {
	return Config{
		SwingLength:       1,
		StructureLookback: 100,
		ChochPriority:     true,
		LiquidityRange:    0.01,
		ATRPeriod:         3,
		ActiveLookback:    100,
	}
}

func TestAnalyzeInsufficientData(t *testing.T) {
	a := NewAnalyzer(analyzerTestConfig())
	series := seriesFrom(structureRows[:3])

	if _, err := a.Analyze(series); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Analyze() error = %v, want ErrInsufficientData", err)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	a := NewAnalyzer(analyzerTestConfig())
	series := seriesFrom(structureRows)

	first, err := a.Analyze(series)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	second, err := a.Analyze(series)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if !reflect.DeepEqual(first.Swings, second.Swings) ||
		!reflect.DeepEqual(first.Structure, second.Structure) ||
		!reflect.DeepEqual(first.OrderBlocks, second.OrderBlocks) ||
		!reflect.DeepEqual(first.Gaps, second.Gaps) ||
		!reflect.DeepEqual(first.Liquidity, second.Liquidity) {
		t.Error("repeated analysis of the same series produced different results")
	}
}

func TestAnalyzeStructureQueries(t *testing.T) {
	a := NewAnalyzer(analyzerTestConfig())
	analysis, err := a.Analyze(seriesFrom(structureRows))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	latest := analysis.LatestStructure()
	if latest == nil || latest.Kind != CHOCH || latest.Direction != Bearish {
		t.Errorf("LatestStructure() = %+v, want the bearish CHOCH", latest)
	}

	for _, ob := range analysis.ActiveOrderBlocks(Bullish) {
		if ob.Direction != Bullish {
			t.Errorf("bullish query returned %+v", ob)
		}
		if !ob.Active(7) {
			t.Errorf("active query returned mitigated block %+v", ob)
		}
	}

	if _, err := analysis.LastATR(); err != nil {
		t.Errorf("LastATR() error = %v", err)
	}
}

func TestNewAnalyzerDefaults(t *testing.T) {
	a := NewAnalyzer(Config{})
	def := DefaultConfig()

	if a.cfg.SwingLength != def.SwingLength || a.cfg.ATRPeriod != def.ATRPeriod {
		t.Errorf("zero config not defaulted: %+v", a.cfg)
	}
}
