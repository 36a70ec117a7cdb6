package strategy

import (
	"github.com/rs/zerolog"

	"smc-trading-bot/internal/market"
	"smc-trading-bot/internal/smc"
)

// Manager runs strategies in priority order and returns the first signal.
// Earlier strategies preempt later ones; a strategy error is logged and
// treated as no signal so one broken strategy cannot mute the rest.
type Manager struct {
	strategies []Strategy
	logger     zerolog.Logger
}

func NewManager(logger zerolog.Logger, strategies ...Strategy) *Manager {
	return &Manager{
		strategies: strategies,
		logger:     logger.With().Str("component", "strategy_manager").Logger(),
	}
}

// Names returns the configured strategy names in priority order.
func (m *Manager) Names() []string {
	names := make([]string, len(m.strategies))
	for i, s := range m.strategies {
		names[i] = s.Name()
	}
	return names
}

// Evaluate runs each strategy against the symbol and returns the first
// signal, or nil when none fire.
func (m *Manager) Evaluate(series *market.Series, analysis *smc.Analysis, symbol string) *Signal {
	for _, s := range m.strategies {
		sig, err := s.Evaluate(series, analysis, symbol)
		if err != nil {
			m.logger.Warn().
				Err(err).
				Str("strategy", s.Name()).
				Str("symbol", symbol).
				Msg("Strategy evaluation failed, skipping")
			continue
		}
		if sig != nil {
			m.logger.Info().
				Str("strategy", sig.Strategy).
				Str("symbol", symbol).
				Str("side", string(sig.Side)).
				Float64("entry", sig.EntryPrice).
				Msg("Signal generated")
			return sig
		}
	}
	return nil
}
