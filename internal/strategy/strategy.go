// Package strategy holds the signal generators that turn a market structure
// analysis into trade entries, and the manager that arbitrates between them.
package strategy

import (
	"time"

	"smc-trading-bot/internal/market"
	"smc-trading-bot/internal/smc"
)

// Side is the direction of a proposed trade.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Signal is a trade proposal. ZoneTop and ZoneBottom carry the structure zone
// that anchored the entry so the risk calculator can place the stop behind it;
// both are zero when no zone applies.
type Signal struct {
	Strategy   string    `json:"strategy"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	ZoneTop    float64   `json:"zone_top,omitempty"`
	ZoneBottom float64   `json:"zone_bottom,omitempty"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}

// Strategy evaluates one symbol's series and analysis. A nil signal with a
// nil error means conditions were not met.
type Strategy interface {
	Name() string
	Evaluate(series *market.Series, analysis *smc.Analysis, symbol string) (*Signal, error)
}
