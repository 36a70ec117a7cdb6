package smc

import (
	"fmt"

	"smc-trading-bot/internal/market"
)

// Config tunes the analyzer. Zero values are replaced by DefaultConfig.
type Config struct {
	SwingLength        int     // fractal window on each side of a swing
	StructureLookback  int     // candles considered by LatestStructure
	ChochPriority      bool    // prefer CHOCH over BOS on the same break
	CloseMitigation    bool    // order blocks mitigate on close, not wick
	FVGJoinConsecutive bool    // merge adjacent same-direction gaps
	LiquidityRange     float64 // relative clustering tolerance for liquidity
	ATRPeriod          int
	ActiveLookback     int // window for active order block and gap queries
}

// DefaultConfig returns the analyzer defaults.
func DefaultConfig() Config {
	return Config{
		SwingLength:       10,
		StructureLookback: 100,
		ChochPriority:     true,
		LiquidityRange:    0.01,
		ATRPeriod:         14,
		ActiveLookback:    100,
	}
}

// Analyzer runs the full market structure pass over a candle series.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer builds an analyzer, filling unset config fields with defaults.
func NewAnalyzer(cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.SwingLength <= 0 {
		cfg.SwingLength = def.SwingLength
	}
	if cfg.StructureLookback <= 0 {
		cfg.StructureLookback = def.StructureLookback
	}
	if cfg.LiquidityRange <= 0 {
		cfg.LiquidityRange = def.LiquidityRange
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = def.ATRPeriod
	}
	if cfg.ActiveLookback <= 0 {
		cfg.ActiveLookback = def.ActiveLookback
	}
	return &Analyzer{cfg: cfg}
}

// Analysis is the immutable result of one analyzer pass. All indices refer to
// the series the analysis was computed from.
type Analysis struct {
	cfg       Config
	seriesLen int

	Swings      []SwingPoint
	Structure   []StructureEvent
	OrderBlocks []OrderBlock
	Gaps        []FairValueGap
	Liquidity   []LiquidityLevel
	ATR         *ATR
}

// Analyze computes swings, structure, order blocks, gaps, liquidity and ATR
// in one pass. The series must cover both the swing window and the ATR
// period; shorter input returns ErrInsufficientData.
func (a *Analyzer) Analyze(series *market.Series) (*Analysis, error) {
	minLen := 2*a.cfg.SwingLength + 1
	if a.cfg.ATRPeriod+1 > minLen {
		minLen = a.cfg.ATRPeriod + 1
	}
	if series.Len() < minLen {
		return nil, fmt.Errorf("analysis needs %d candles, have %d: %w",
			minLen, series.Len(), ErrInsufficientData)
	}

	swings := DetectSwings(series, a.cfg.SwingLength)
	events := DetectStructure(series, swings, a.cfg.SwingLength)

	return &Analysis{
		cfg:         a.cfg,
		seriesLen:   series.Len(),
		Swings:      swings,
		Structure:   events,
		OrderBlocks: DetectOrderBlocks(series, events, a.cfg.CloseMitigation),
		Gaps:        DetectFVGs(series, a.cfg.FVGJoinConsecutive),
		Liquidity:   DetectLiquidity(series, swings, a.cfg.LiquidityRange),
		ATR:         ComputeATR(series, a.cfg.ATRPeriod),
	}, nil
}

// LatestStructure returns the most recent structure event within the
// configured lookback, or nil when none broke in the window.
func (an *Analysis) LatestStructure() *StructureEvent {
	return LatestStructure(an.Structure, an.seriesLen-1, an.cfg.StructureLookback, an.cfg.ChochPriority)
}

// ActiveOrderBlocks returns unmitigated blocks of the given direction within
// the active lookback window.
func (an *Analysis) ActiveOrderBlocks(dir Direction) []OrderBlock {
	return ActiveOrderBlocks(an.OrderBlocks, dir, an.seriesLen, an.cfg.ActiveLookback)
}

// ActiveGaps returns unmitigated fair value gaps of the given direction
// within the active lookback window.
func (an *Analysis) ActiveGaps(dir Direction) []FairValueGap {
	return ActiveGaps(an.Gaps, dir, an.seriesLen, an.cfg.ActiveLookback)
}

// ActiveGapsAsOf returns unmitigated gaps as of the given index, still
// restricted to the active lookback window at the series end.
func (an *Analysis) ActiveGapsAsOf(dir Direction, asOf int) []FairValueGap {
	return ActiveGapsAsOf(an.Gaps, dir, an.seriesLen, an.cfg.ActiveLookback, asOf)
}

// RecentLiquidity returns the most recent count liquidity levels of the given
// kind, newest first.
func (an *Analysis) RecentLiquidity(kind SwingKind, count int) []LiquidityLevel {
	return RecentLiquidity(an.Liquidity, kind, count)
}

// LastATR returns the ATR at the final candle of the analyzed series.
func (an *Analysis) LastATR() (float64, error) {
	return an.ATR.Last()
}
