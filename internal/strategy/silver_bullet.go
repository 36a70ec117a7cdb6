package strategy

import (
	"fmt"
	"time"

	"smc-trading-bot/internal/market"
	"smc-trading-bot/internal/smc"
)

// Session is a half-open [Start, End) time-of-day window, "HH:MM" format.
type Session struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SilverBulletConfig tunes the session-window FVG strategy.
type SilverBulletConfig struct {
	Sessions []Session
	Timezone string // IANA name, e.g. "America/New_York"
}

// DefaultSilverBulletSessions are the classic one-hour ICT windows, New York
// time.
func DefaultSilverBulletSessions() []Session {
	return []Session{
		{Start: "03:00", End: "04:00"},
		{Start: "10:00", End: "11:00"},
		{Start: "14:00", End: "15:00"},
	}
}

// SilverBulletStrategy trades fair value gap retracements, but only while the
// last candle opened inside one of the configured session windows. Session
// boundaries are evaluated in the configured timezone; the end minute is
// excluded.
type SilverBulletStrategy struct {
	config   SilverBulletConfig
	location *time.Location
}

func NewSilverBulletStrategy(config SilverBulletConfig) (*SilverBulletStrategy, error) {
	if len(config.Sessions) == 0 {
		config.Sessions = DefaultSilverBulletSessions()
	}
	if config.Timezone == "" {
		config.Timezone = "America/New_York"
	}
	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", config.Timezone, err)
	}
	for _, sess := range config.Sessions {
		if _, err := parseClock(sess.Start); err != nil {
			return nil, fmt.Errorf("session start %q: %w", sess.Start, err)
		}
		if _, err := parseClock(sess.End); err != nil {
			return nil, fmt.Errorf("session end %q: %w", sess.End, err)
		}
	}
	return &SilverBulletStrategy{config: config, location: loc}, nil
}

func (s *SilverBulletStrategy) Name() string {
	return "silver_bullet"
}

func (s *SilverBulletStrategy) Evaluate(series *market.Series, analysis *smc.Analysis, symbol string) (*Signal, error) {
	last, ok := series.Last()
	if !ok {
		return nil, nil
	}
	if !s.inSession(last.OpenTime) {
		return nil, nil
	}

	// The entry candle itself mitigates the gap it closes into, so activity
	// is judged as of the candle before it.
	price := last.Close
	priorIndex := series.Len() - 2
	for _, dir := range []smc.Direction{smc.Bullish, smc.Bearish} {
		for _, gap := range analysis.ActiveGapsAsOf(dir, priorIndex) {
			if !gap.Contains(price) {
				continue
			}
			side := SideLong
			if dir == smc.Bearish {
				side = SideShort
			}
			return &Signal{
				Strategy:   s.Name(),
				Symbol:     symbol,
				Side:       side,
				EntryPrice: price,
				ZoneTop:    gap.Top,
				ZoneBottom: gap.Bottom,
				Reason: fmt.Sprintf("price %.4f inside %s fair value gap [%.4f, %.4f] during session window",
					price, dir, gap.Bottom, gap.Top),
				Timestamp: time.Now(),
			}, nil
		}
	}
	return nil, nil
}

func (s *SilverBulletStrategy) inSession(t time.Time) bool {
	local := t.In(s.location)
	minutes := local.Hour()*60 + local.Minute()
	for _, sess := range s.config.Sessions {
		start, _ := parseClock(sess.Start)
		end, _ := parseClock(sess.End)
		if minutes >= start && minutes < end {
			return true
		}
	}
	return false
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
