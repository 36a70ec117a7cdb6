// Package performance aggregates closed-trade results into summary stats.
package performance

import (
	"math"
	"sync"
	"time"
)

// Trade is one closed position.
type Trade struct {
	Symbol    string    `json:"symbol"`
	Strategy  string    `json:"strategy"`
	Side      string    `json:"side"`
	PnlUSD    float64   `json:"pnl_usd"`
	PnlPct    float64   `json:"pnl_pct"`
	OpenedAt  time.Time `json:"opened_at"`
	ClosedAt  time.Time `json:"closed_at"`
}

// Stats is a snapshot of aggregate performance. BestTrade and WorstTrade are
// nil until at least one trade closes.
type Stats struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`
	TotalPnlUSD float64 `json:"total_pnl_usd"`
	BestTrade   *Trade  `json:"best_trade,omitempty"`
	WorstTrade  *Trade  `json:"worst_trade,omitempty"`
}

// Tracker accumulates closed trades. Safe for concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	trades []Trade
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Record adds a closed trade. A trade with zero pnl counts as a loss.
func (t *Tracker) Record(trade Trade) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.trades = append(t.trades, trade)
}

// Trades returns a copy of all recorded trades in close order.
func (t *Tracker) Trades() []Trade {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Trade, len(t.trades))
	copy(out, t.trades)
	return out
}

// Stats computes the aggregate snapshot. Best and worst rank by percentage
// return; the earliest trade wins ties.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := Stats{TotalTrades: len(t.trades)}
	if len(t.trades) == 0 {
		return stats
	}

	best, worst := 0, 0
	for i, tr := range t.trades {
		if tr.PnlUSD > 0 {
			stats.Wins++
		} else {
			stats.Losses++
		}
		stats.TotalPnlUSD += tr.PnlUSD
		if tr.PnlPct > t.trades[best].PnlPct {
			best = i
		}
		if tr.PnlPct < t.trades[worst].PnlPct {
			worst = i
		}
	}

	stats.WinRate = math.Round(float64(stats.Wins)/float64(stats.TotalTrades)*10000) / 100
	bt, wt := t.trades[best], t.trades[worst]
	stats.BestTrade = &bt
	stats.WorstTrade = &wt
	return stats
}
