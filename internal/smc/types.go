// Package smc implements smart-money-concepts market structure analysis:
// swing points, break of structure / change of character, order blocks,
// fair value gaps, liquidity pools and ATR.
package smc

import "errors"

// ErrInsufficientData is returned when a series is shorter than a detector's
// minimum window. Callers treat it as "no signal", never as a hard failure.
var ErrInsufficientData = errors.New("insufficient candle data")

// Direction marks the side of a structure event, zone or signal.
type Direction int

const (
	Bullish Direction = 1
	Bearish Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Bullish:
		return "BULLISH"
	case Bearish:
		return "BEARISH"
	default:
		return "NONE"
	}
}

// SwingKind classifies a swing point.
type SwingKind int

const (
	SwingHigh SwingKind = iota
	SwingLow
)

func (k SwingKind) String() string {
	if k == SwingHigh {
		return "HIGH"
	}
	return "LOW"
}

// SwingPoint is a confirmed local extremum. Index is the candle index in the
// originating series; Price is the extreme (high for HIGH, low for LOW).
type SwingPoint struct {
	Index int       `json:"index"`
	Kind  SwingKind `json:"kind"`
	Price float64   `json:"price"`
}

// StructureKind distinguishes trend continuation from trend reversal breaks.
type StructureKind int

const (
	BOS StructureKind = iota
	CHOCH
)

func (k StructureKind) String() string {
	if k == BOS {
		return "BOS"
	}
	return "CHOCH"
}

// StructureEvent records a close through a confirmed swing level.
// Index is the swing point's candle index, BrokenAt the candle whose close
// produced the break.
type StructureEvent struct {
	Index     int           `json:"index"`
	Kind      StructureKind `json:"kind"`
	Direction Direction     `json:"direction"`
	Level     float64       `json:"level"`
	BrokenAt  int           `json:"broken_at"`
}

// OrderBlock is the last opposing candle before a displacement that broke
// structure. MitigatedAt is write-once: nil until price first re-enters the
// zone after the break, then permanently set.
type OrderBlock struct {
	OriginIndex int       `json:"origin_index"`
	Direction   Direction `json:"direction"`
	Top         float64   `json:"top"`
	Bottom      float64   `json:"bottom"`
	StrengthPct float64   `json:"strength_pct"`
	Volume      float64   `json:"volume"`
	MitigatedAt *int      `json:"mitigated_at,omitempty"`
}

// Active reports whether the block is still unmitigated as of currentIndex.
func (ob *OrderBlock) Active(currentIndex int) bool {
	return ob.MitigatedAt == nil || *ob.MitigatedAt > currentIndex
}

// FairValueGap is a 3-candle imbalance. OriginIndex is the index of the
// middle candle. MitigatedAt follows the same write-once rule as OrderBlock.
type FairValueGap struct {
	OriginIndex int       `json:"origin_index"`
	Direction   Direction `json:"direction"`
	Top         float64   `json:"top"`
	Bottom      float64   `json:"bottom"`
	MitigatedAt *int      `json:"mitigated_at,omitempty"`
}

// Active reports whether the gap is still unmitigated as of currentIndex.
func (g *FairValueGap) Active(currentIndex int) bool {
	return g.MitigatedAt == nil || *g.MitigatedAt > currentIndex
}

// Contains reports whether price lies inside the gap zone.
func (g *FairValueGap) Contains(price float64) bool {
	return price >= g.Bottom && price <= g.Top
}

// LiquidityLevel is a cluster of same-kind swing points whose prices lie
// within a configured percentage of the first member. Level is the first
// member's price; EndIndex the last member's candle index. Swept flips once.
type LiquidityLevel struct {
	Index    int       `json:"index"`
	EndIndex int       `json:"end_index"`
	Kind     SwingKind `json:"kind"`
	Level    float64   `json:"level"`
	Swept    bool      `json:"swept"`
	SweptAt  *int      `json:"swept_at,omitempty"`
}
