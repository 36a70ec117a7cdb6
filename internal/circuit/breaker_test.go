package circuit

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestBreaker(cfg Config) (*Breaker, *time.Time) {
	b := NewBreaker(cfg, zerolog.Nop())
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	b.dayStart = now.Truncate(24 * time.Hour)
	return b, &now
}

func TestBreakerStartsClosed(t *testing.T) {
	b, _ := newTestBreaker(DefaultConfig())
	if b.State() != StateClosed {
		t.Fatalf("state = %s, want closed", b.State())
	}
	if ok, _ := b.Allow(); !ok {
		t.Fatal("new breaker should allow entries")
	}
}

func TestConsecutiveLossesTrip(t *testing.T) {
	b, _ := newTestBreaker(Config{MaxConsecutiveLosses: 3, CooldownMinutes: 30})

	b.RecordResult(-1)
	b.RecordResult(-1)
	if b.State() != StateClosed {
		t.Fatal("breaker tripped before threshold")
	}
	b.RecordResult(-1)
	if b.State() != StateOpen {
		t.Fatal("breaker should trip on third consecutive loss")
	}

	ok, reason := b.Allow()
	if ok {
		t.Fatal("open breaker allowed an entry")
	}
	if !strings.Contains(reason, "consecutive losses") {
		t.Errorf("reason = %q, want consecutive losses", reason)
	}
}

func TestWinResetsStreak(t *testing.T) {
	b, _ := newTestBreaker(Config{MaxConsecutiveLosses: 3, CooldownMinutes: 30})

	b.RecordResult(-1)
	b.RecordResult(-1)
	b.RecordResult(2)
	b.RecordResult(-1)
	b.RecordResult(-1)
	if b.State() != StateClosed {
		t.Fatal("win should have reset the loss streak")
	}
}

func TestDailyLossTrip(t *testing.T) {
	b, _ := newTestBreaker(Config{MaxDailyLossPct: 5, CooldownMinutes: 30})

	b.RecordResult(-2)
	b.RecordResult(-2)
	if b.State() != StateClosed {
		t.Fatal("breaker tripped under the daily limit")
	}
	b.RecordResult(-1.5)
	if b.State() != StateOpen {
		t.Fatal("breaker should trip once daily loss crosses the limit")
	}
}

func TestCooldownAndProbe(t *testing.T) {
	b, now := newTestBreaker(Config{MaxConsecutiveLosses: 2, CooldownMinutes: 30})

	b.RecordResult(-1)
	b.RecordResult(-1)
	if ok, _ := b.Allow(); ok {
		t.Fatal("tripped breaker allowed an entry")
	}

	*now = now.Add(31 * time.Minute)
	ok, _ := b.Allow()
	if !ok {
		t.Fatal("breaker should admit a probe after cooldown")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("state = %s, want half_open", b.State())
	}

	b.RecordResult(1)
	if b.State() != StateClosed {
		t.Fatal("winning probe should close the breaker")
	}
}

func TestLosingProbeReopens(t *testing.T) {
	b, now := newTestBreaker(Config{MaxConsecutiveLosses: 2, CooldownMinutes: 30})

	b.RecordResult(-1)
	b.RecordResult(-1)
	*now = now.Add(31 * time.Minute)
	if ok, _ := b.Allow(); !ok {
		t.Fatal("expected probe admission")
	}

	b.RecordResult(-1)
	if b.State() != StateOpen {
		t.Fatal("losing probe should reopen the breaker")
	}
	if ok, _ := b.Allow(); ok {
		t.Fatal("reopened breaker allowed an entry before cooldown")
	}
}

func TestDailyTradeLimit(t *testing.T) {
	b, _ := newTestBreaker(Config{MaxDailyTrades: 2, CooldownMinutes: 30})

	b.RecordResult(1)
	b.RecordResult(1)
	ok, reason := b.Allow()
	if ok {
		t.Fatal("entry allowed past the daily trade limit")
	}
	if !strings.Contains(reason, "daily trade limit") {
		t.Errorf("reason = %q, want daily trade limit", reason)
	}
}

func TestDayRollResetsCounters(t *testing.T) {
	b, now := newTestBreaker(Config{MaxDailyTrades: 2, MaxDailyLossPct: 5, CooldownMinutes: 30})

	b.RecordResult(-2)
	b.RecordResult(-2)
	if ok, _ := b.Allow(); ok {
		t.Fatal("expected daily trade limit to block")
	}

	*now = now.Add(24 * time.Hour)
	if ok, _ := b.Allow(); !ok {
		t.Fatal("counters should reset on the next day")
	}
}

func TestIgnoresNonFinite(t *testing.T) {
	b, _ := newTestBreaker(Config{MaxConsecutiveLosses: 1, CooldownMinutes: 30})

	b.RecordResult(math.NaN())
	b.RecordResult(math.Inf(-1))
	if b.State() != StateClosed {
		t.Fatal("non-finite results must not trip the breaker")
	}
}
