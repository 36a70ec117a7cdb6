// Package circuit guards the entry path against losing streaks. The breaker
// trips on consecutive losses or an accumulated daily loss, blocks new
// entries for a cooldown, then probes with a single trade before fully
// reopening.
package circuit

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type State string

const (
	StateClosed   State = "closed"    // entries allowed
	StateOpen     State = "open"      // entries blocked
	StateHalfOpen State = "half_open" // one probe trade allowed
)

// Config tunes the breaker thresholds. A zero threshold disables that check.
type Config struct {
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	MaxDailyLossPct      float64 `json:"max_daily_loss_pct"`
	MaxDailyTrades       int     `json:"max_daily_trades"`
	CooldownMinutes      int     `json:"cooldown_minutes"`
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		MaxConsecutiveLosses: 5,
		MaxDailyLossPct:      5.0,
		MaxDailyTrades:       50,
		CooldownMinutes:      30,
	}
}

// Breaker tracks closed-trade results and decides whether new entries may
// open. Safe for concurrent use.
type Breaker struct {
	config Config
	logger zerolog.Logger
	onTrip func(reason string)
	now    func() time.Time

	mu                sync.Mutex
	state             State
	consecutiveLosses int
	dailyLossPct      float64
	dailyTrades       int
	dayStart          time.Time
	trippedAt         time.Time
	reason            string
}

func NewBreaker(cfg Config, logger zerolog.Logger) *Breaker {
	if cfg.CooldownMinutes <= 0 {
		cfg.CooldownMinutes = DefaultConfig().CooldownMinutes
	}
	b := &Breaker{
		config: cfg,
		logger: logger.With().Str("component", "circuit_breaker").Logger(),
		now:    time.Now,
		state:  StateClosed,
	}
	b.dayStart = b.now().Truncate(24 * time.Hour)
	return b
}

// OnTrip registers a callback invoked on its own goroutine when the breaker
// opens.
func (b *Breaker) OnTrip(fn func(reason string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTrip = fn
}

// Allow reports whether a new entry may open. While open it returns false
// until the cooldown elapses, then moves to half-open and admits one probe.
func (b *Breaker) Allow() (bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollDay()

	if b.state == StateOpen {
		cooldown := time.Duration(b.config.CooldownMinutes) * time.Minute
		elapsed := b.now().Sub(b.trippedAt)
		if elapsed < cooldown {
			remaining := (cooldown - elapsed).Round(time.Second)
			return false, fmt.Sprintf("breaker open for %s more (%s)", remaining, b.reason)
		}
		b.state = StateHalfOpen
		b.logger.Info().Msg("Breaker half-open, admitting probe trade")
	}

	if b.config.MaxDailyTrades > 0 && b.dailyTrades >= b.config.MaxDailyTrades {
		return false, fmt.Sprintf("daily trade limit reached: %d", b.dailyTrades)
	}
	return true, ""
}

// RecordResult feeds one closed trade's percentage return into the breaker.
// Non-finite values are ignored.
func (b *Breaker) RecordResult(pnlPct float64) {
	if math.IsNaN(pnlPct) || math.IsInf(pnlPct, 0) {
		return
	}

	b.mu.Lock()
	b.rollDay()
	b.dailyTrades++

	if pnlPct < 0 {
		b.consecutiveLosses++
		b.dailyLossPct += -pnlPct
	} else {
		b.consecutiveLosses = 0
		if b.state == StateHalfOpen {
			b.state = StateClosed
			b.logger.Info().Msg("Probe trade won, breaker closed")
		}
	}

	reason := b.tripReason()
	if reason == "" || b.state == StateOpen {
		b.mu.Unlock()
		return
	}

	b.state = StateOpen
	b.trippedAt = b.now()
	b.reason = reason
	onTrip := b.onTrip
	b.mu.Unlock()

	b.logger.Warn().Str("reason", reason).Msg("Circuit breaker tripped")
	if onTrip != nil {
		go onTrip(reason)
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) tripReason() string {
	if b.config.MaxConsecutiveLosses > 0 && b.consecutiveLosses >= b.config.MaxConsecutiveLosses {
		return fmt.Sprintf("%d consecutive losses", b.consecutiveLosses)
	}
	if b.config.MaxDailyLossPct > 0 && b.dailyLossPct >= b.config.MaxDailyLossPct {
		return fmt.Sprintf("daily loss %.2f%% over limit %.2f%%", b.dailyLossPct, b.config.MaxDailyLossPct)
	}
	if b.state == StateHalfOpen {
		return "probe trade lost"
	}
	return ""
}

// rollDay resets daily counters at UTC midnight. Caller holds the lock.
func (b *Breaker) rollDay() {
	day := b.now().Truncate(24 * time.Hour)
	if day.After(b.dayStart) {
		b.dayStart = day
		b.dailyLossPct = 0
		b.dailyTrades = 0
	}
}
