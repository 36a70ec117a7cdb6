// Package bot runs the scan loop: fetch candles, analyze structure, arbitrate
// strategy signals, size the trade and hand it to the executor (or a paper
// book in dry-run mode).
package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"smc-trading-bot/internal/api"
	"smc-trading-bot/internal/cache"
	"smc-trading-bot/internal/circuit"
	"smc-trading-bot/internal/database"
	"smc-trading-bot/internal/events"
	"smc-trading-bot/internal/executor"
	"smc-trading-bot/internal/market"
	"smc-trading-bot/internal/performance"
	"smc-trading-bot/internal/risk"
	"smc-trading-bot/internal/smc"
	"smc-trading-bot/internal/strategy"
)

// Config holds scan loop settings.
type Config struct {
	QuoteCurrency    string
	MaxSymbols       int
	ExcludeSymbols   []string
	Interval         string
	KlineLimit       int
	ScanInterval     time.Duration
	MaxOpenPositions int
	DryRun           bool
	PaperBalance     float64
}

type position struct {
	tradeID       int64 // database id, 0 without persistence
	clientOrderID string
	symbol        string
	strategyName  string
	plan          *risk.Plan
	openedAt      time.Time
}

// Bot owns the scan loop and the open position book.
type Bot struct {
	config   Config
	fetcher  market.Fetcher
	cache    *cache.KlineCache // nil disables caching
	analyzer *smc.Analyzer
	manager  *strategy.Manager
	calc     *risk.Calculator
	exec     *executor.Executor // nil in dry-run mode
	guard    *circuit.Breaker   // nil disables the loss breaker
	repo     *database.Repository
	tracker  *performance.Tracker
	bus      *events.Bus
	logger   zerolog.Logger

	mu          sync.RWMutex
	symbols     []string
	positions   map[string]*position
	instruments map[string]*market.Instrument
	lastScan    time.Time
	running     bool

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func New(
	cfg Config,
	fetcher market.Fetcher,
	klineCache *cache.KlineCache,
	analyzer *smc.Analyzer,
	manager *strategy.Manager,
	calc *risk.Calculator,
	exec *executor.Executor,
	guard *circuit.Breaker,
	repo *database.Repository,
	tracker *performance.Tracker,
	bus *events.Bus,
	logger zerolog.Logger,
) *Bot {
	if cfg.PaperBalance <= 0 {
		cfg.PaperBalance = 10000
	}
	return &Bot{
		config:      cfg,
		fetcher:     fetcher,
		cache:       klineCache,
		analyzer:    analyzer,
		manager:     manager,
		calc:        calc,
		exec:        exec,
		guard:       guard,
		repo:        repo,
		tracker:     tracker,
		bus:         bus,
		logger:      logger.With().Str("component", "bot").Logger(),
		positions:   make(map[string]*position),
		instruments: make(map[string]*market.Instrument),
		stopChan:    make(chan struct{}),
	}
}

// Start resolves the symbol universe and launches the scan loop.
func (b *Bot) Start(ctx context.Context) error {
	symbols, err := b.resolveSymbols()
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.symbols = symbols
	b.running = true
	b.mu.Unlock()

	b.logger.Info().
		Int("symbols", len(symbols)).
		Bool("dry_run", b.config.DryRun).
		Strs("strategies", b.manager.Names()).
		Msg("Bot started")

	b.wg.Add(1)
	go b.loop(ctx)
	return nil
}

// Stop halts the scan loop and waits for the current scan to finish.
func (b *Bot) Stop() {
	close(b.stopChan)
	b.wg.Wait()
	b.mu.Lock()
	b.running = false
	b.mu.Unlock()
	b.logger.Info().Msg("Bot stopped")
}

// Status implements api.StatusProvider.
func (b *Bot) Status() api.Status {
	b.mu.RLock()
	defer b.mu.RUnlock()

	status := api.Status{
		Running:        b.running,
		DryRun:         b.config.DryRun,
		Symbols:        len(b.symbols),
		OpenPositions:  len(b.positions),
		LastScanAt:     b.lastScan,
		ActiveStrategy: b.manager.Names(),
	}
	if b.exec != nil {
		status.InCooldown, status.CooldownMins = b.exec.InCooldown()
	}
	if b.guard != nil {
		status.BreakerState = string(b.guard.State())
	}
	return status
}

func (b *Bot) loop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.config.ScanInterval)
	defer ticker.Stop()

	b.scan(ctx)
	for {
		select {
		case <-b.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.scan(ctx)
		}
	}
}

func (b *Bot) resolveSymbols() ([]string, error) {
	all, err := b.fetcher.GetSymbols(b.config.QuoteCurrency)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(b.config.ExcludeSymbols))
	for _, s := range b.config.ExcludeSymbols {
		excluded[s] = true
	}

	var symbols []string
	for _, s := range all {
		if excluded[s] {
			continue
		}
		symbols = append(symbols, s)
		if len(symbols) >= b.config.MaxSymbols {
			break
		}
	}
	return symbols, nil
}

func (b *Bot) scan(ctx context.Context) {
	started := time.Now()
	b.checkOpenPositions(ctx)

	entriesPaused := false
	if b.exec != nil {
		if paused, mins := b.exec.InCooldown(); paused {
			entriesPaused = true
			b.logger.Info().Int("minutes_left", mins).Msg("Entries paused by balance cooldown")
		}
	}
	if !entriesPaused && b.guard != nil {
		if ok, reason := b.guard.Allow(); !ok {
			entriesPaused = true
			b.logger.Info().Str("reason", reason).Msg("Entries paused by circuit breaker")
		}
	}

	b.mu.RLock()
	symbols := b.symbols
	b.mu.RUnlock()

	for _, symbol := range symbols {
		select {
		case <-b.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		if entriesPaused || !b.hasCapacity() || b.hasPosition(symbol) {
			continue
		}
		b.scanSymbol(ctx, symbol)
	}

	b.mu.Lock()
	b.lastScan = time.Now()
	b.mu.Unlock()

	b.bus.Publish(events.Event{
		Type: events.EventScanCompleted,
		Data: map[string]interface{}{
			"symbols":     len(symbols),
			"duration_ms": time.Since(started).Milliseconds(),
		},
	})
}

func (b *Bot) scanSymbol(ctx context.Context, symbol string) {
	series, err := b.fetchSeries(ctx, symbol)
	if err != nil {
		b.logger.Warn().Err(err).Str("symbol", symbol).Msg("Kline fetch failed")
		return
	}

	analysis, err := b.analyzer.Analyze(series)
	if err != nil {
		if errors.Is(err, smc.ErrInsufficientData) {
			b.logger.Debug().Str("symbol", symbol).Msg("Not enough candles yet")
			return
		}
		b.logger.Error().Err(err).Str("symbol", symbol).Msg("Analysis failed")
		return
	}

	sig := b.manager.Evaluate(series, analysis, symbol)
	if sig == nil {
		return
	}
	b.publishSignal(ctx, sig)

	atr, err := analysis.LastATR()
	if err != nil {
		b.logger.Warn().Err(err).Str("symbol", symbol).Msg("No ATR for sizing, dropping signal")
		return
	}

	balance := b.config.PaperBalance
	if !b.config.DryRun {
		balance, err = b.exec.GetBalance(ctx)
		if err != nil {
			b.logger.Error().Err(err).Msg("Balance fetch failed, dropping signal")
			return
		}
	}

	plan, err := b.calc.BuildPlan(sig, atr, balance, b.qtyStep(symbol))
	if err != nil {
		b.logger.Warn().Err(err).Str("symbol", symbol).Msg("Could not size trade")
		return
	}
	b.openPosition(ctx, sig, plan)
}

func (b *Bot) fetchSeries(ctx context.Context, symbol string) (*market.Series, error) {
	if b.cache != nil {
		if candles, ok := b.cache.Get(ctx, symbol, b.config.Interval); ok {
			return market.NewSeries(candles), nil
		}
	}

	series, err := b.fetcher.GetKlines(symbol, b.config.Interval, b.config.KlineLimit)
	if err != nil {
		return nil, err
	}
	if b.cache != nil {
		b.cache.Put(ctx, symbol, b.config.Interval, series.Slice(0, series.Len()))
	}
	return series, nil
}

func (b *Bot) qtyStep(symbol string) float64 {
	b.mu.RLock()
	inst, ok := b.instruments[symbol]
	b.mu.RUnlock()
	if !ok {
		var err error
		inst, err = b.fetcher.GetInstrument(symbol)
		if err != nil {
			b.logger.Warn().Err(err).Str("symbol", symbol).Msg("No instrument info, sizing unrounded")
			return 0
		}
		b.mu.Lock()
		b.instruments[symbol] = inst
		b.mu.Unlock()
	}
	return inst.QtyStep
}

func (b *Bot) openPosition(ctx context.Context, sig *strategy.Signal, plan *risk.Plan) {
	pos := &position{
		clientOrderID: uuid.NewString(),
		symbol:        sig.Symbol,
		strategyName:  sig.Strategy,
		plan:          plan,
		openedAt:      time.Now(),
	}

	if !b.config.DryRun {
		result, err := b.exec.PlaceOrder(ctx, sig.Symbol, plan)
		if err != nil {
			b.logger.Error().Err(err).Str("symbol", sig.Symbol).Msg("Order placement failed")
			return
		}
		pos.clientOrderID = result.ClientOrderID
	}

	if b.repo != nil {
		record := &database.TradeRecord{
			ClientOrderID: pos.clientOrderID,
			Symbol:        sig.Symbol,
			Strategy:      sig.Strategy,
			Side:          string(plan.Side),
			EntryPrice:    plan.EntryPrice,
			StopLoss:      plan.StopLoss,
			TakeProfit:    plan.TakeProfit,
			Quantity:      plan.Quantity,
			DryRun:        b.config.DryRun,
			OpenedAt:      pos.openedAt,
		}
		if err := b.repo.OpenTrade(ctx, record); err != nil {
			b.logger.Error().Err(err).Msg("Failed to persist trade open")
		} else {
			pos.tradeID = record.ID
		}
	}

	b.mu.Lock()
	b.positions[sig.Symbol] = pos
	b.mu.Unlock()

	b.logger.Info().
		Str("symbol", sig.Symbol).
		Str("strategy", sig.Strategy).
		Str("side", string(plan.Side)).
		Float64("entry", plan.EntryPrice).
		Float64("stop", plan.StopLoss).
		Float64("target", plan.TakeProfit).
		Float64("qty", plan.Quantity).
		Bool("dry_run", b.config.DryRun).
		Msg("Position opened")

	b.bus.Publish(events.Event{
		Type: events.EventTradeOpened,
		Data: map[string]interface{}{
			"symbol":   sig.Symbol,
			"strategy": sig.Strategy,
			"side":     string(plan.Side),
			"entry":    plan.EntryPrice,
			"quantity": plan.Quantity,
			"dry_run":  b.config.DryRun,
		},
	})
}

// Symbols returns the resolved scan universe.
func (b *Bot) Symbols() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.symbols))
	copy(out, b.symbols)
	return out
}

// HandlePriceUpdate closes an open position as soon as a live tick crosses
// its stop or target, without waiting for the next scan. Safe to call from
// the stream's read goroutine.
func (b *Bot) HandlePriceUpdate(update market.PriceUpdate) {
	b.mu.RLock()
	pos, ok := b.positions[update.Symbol]
	b.mu.RUnlock()
	if !ok {
		return
	}

	exitPrice, hit := exitLevel(pos.plan, update.Price)
	if !hit {
		return
	}
	b.closePosition(context.Background(), pos, exitPrice)
}

// checkOpenPositions exits positions whose stop or target has been crossed.
// Live positions carry exchange-side stops; this check keeps the local book
// and the trade log in step with what the exchange already did.
func (b *Bot) checkOpenPositions(ctx context.Context) {
	b.mu.RLock()
	open := make([]*position, 0, len(b.positions))
	for _, pos := range b.positions {
		open = append(open, pos)
	}
	b.mu.RUnlock()

	for _, pos := range open {
		price, err := b.fetcher.GetCurrentPrice(pos.symbol)
		if err != nil {
			b.logger.Warn().Err(err).Str("symbol", pos.symbol).Msg("Price check failed")
			continue
		}

		exitPrice, hit := exitLevel(pos.plan, price)
		if !hit {
			continue
		}
		b.closePosition(ctx, pos, exitPrice)
	}
}

// exitLevel reports whether price has crossed the plan's stop or target and
// returns the level as the assumed fill price.
func exitLevel(plan *risk.Plan, price float64) (float64, bool) {
	if plan.Side == strategy.SideLong {
		if price <= plan.StopLoss {
			return plan.StopLoss, true
		}
		if price >= plan.TakeProfit {
			return plan.TakeProfit, true
		}
		return 0, false
	}
	if price >= plan.StopLoss {
		return plan.StopLoss, true
	}
	if price <= plan.TakeProfit {
		return plan.TakeProfit, true
	}
	return 0, false
}

func (b *Bot) closePosition(ctx context.Context, pos *position, exitPrice float64) {
	// The stream handler and the scan can race to close the same position;
	// whoever removes it from the book does the accounting.
	b.mu.Lock()
	if _, ok := b.positions[pos.symbol]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.positions, pos.symbol)
	b.mu.Unlock()

	plan := pos.plan
	pnlUSD := (exitPrice - plan.EntryPrice) * plan.Quantity
	pnlPct := (exitPrice - plan.EntryPrice) / plan.EntryPrice * 100
	if plan.Side == strategy.SideShort {
		pnlUSD = -pnlUSD
		pnlPct = -pnlPct
	}

	if b.guard != nil {
		b.guard.RecordResult(pnlPct)
	}

	closedAt := time.Now()
	b.tracker.Record(performance.Trade{
		Symbol:   pos.symbol,
		Strategy: pos.strategyName,
		Side:     string(plan.Side),
		PnlUSD:   pnlUSD,
		PnlPct:   pnlPct,
		OpenedAt: pos.openedAt,
		ClosedAt: closedAt,
	})
	if b.repo != nil && pos.tradeID != 0 {
		if err := b.repo.CloseTrade(ctx, pos.tradeID, exitPrice, pnlUSD, pnlPct, closedAt); err != nil {
			b.logger.Error().Err(err).Msg("Failed to persist trade close")
		}
	}

	b.logger.Info().
		Str("symbol", pos.symbol).
		Str("side", string(plan.Side)).
		Float64("exit", exitPrice).
		Float64("pnl_usd", pnlUSD).
		Float64("pnl_pct", pnlPct).
		Msg("Position closed")

	b.bus.Publish(events.Event{
		Type: events.EventTradeClosed,
		Data: map[string]interface{}{
			"symbol":  pos.symbol,
			"side":    string(plan.Side),
			"exit":    exitPrice,
			"pnl_usd": pnlUSD,
			"pnl_pct": pnlPct,
		},
	})
}

func (b *Bot) publishSignal(ctx context.Context, sig *strategy.Signal) {
	if b.repo != nil {
		record := &database.SignalRecord{
			Symbol:      sig.Symbol,
			Strategy:    sig.Strategy,
			Side:        string(sig.Side),
			EntryPrice:  sig.EntryPrice,
			Reason:      sig.Reason,
			GeneratedAt: sig.Timestamp,
		}
		if err := b.repo.RecordSignal(ctx, record); err != nil {
			b.logger.Error().Err(err).Msg("Failed to persist signal")
		}
	}
	b.bus.Publish(events.Event{
		Type: events.EventSignalGenerated,
		Data: map[string]interface{}{
			"symbol":   sig.Symbol,
			"strategy": sig.Strategy,
			"side":     string(sig.Side),
			"entry":    sig.EntryPrice,
			"reason":   sig.Reason,
		},
	})
}

func (b *Bot) hasCapacity() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.positions) < b.config.MaxOpenPositions
}

func (b *Bot) hasPosition(symbol string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.positions[symbol]
	return ok
}
