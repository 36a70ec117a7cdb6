package database

import (
	"context"
	"time"
)

// TradeRecord is a row in the trades table.
type TradeRecord struct {
	ID            int64      `json:"id"`
	ClientOrderID string     `json:"client_order_id"`
	Symbol        string     `json:"symbol"`
	Strategy      string     `json:"strategy"`
	Side          string     `json:"side"`
	EntryPrice    float64    `json:"entry_price"`
	ExitPrice     *float64   `json:"exit_price,omitempty"`
	StopLoss      float64    `json:"stop_loss"`
	TakeProfit    float64    `json:"take_profit"`
	Quantity      float64    `json:"quantity"`
	PnlUSD        *float64   `json:"pnl_usd,omitempty"`
	PnlPct        *float64   `json:"pnl_pct,omitempty"`
	DryRun        bool       `json:"dry_run"`
	Status        string     `json:"status"`
	OpenedAt      time.Time  `json:"opened_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
}

// SignalRecord is a row in the signals table.
type SignalRecord struct {
	ID          int64     `json:"id"`
	Symbol      string    `json:"symbol"`
	Strategy    string    `json:"strategy"`
	Side        string    `json:"side"`
	EntryPrice  float64   `json:"entry_price"`
	Reason      string    `json:"reason"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Repository provides data access methods.
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck pings the database.
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// OpenTrade inserts a newly opened trade and fills in its id.
func (r *Repository) OpenTrade(ctx context.Context, trade *TradeRecord) error {
	query := `
		INSERT INTO trades (client_order_id, symbol, strategy, side, entry_price,
			stop_loss, take_profit, quantity, dry_run, status, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'OPEN', $10)
		RETURNING id
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		trade.ClientOrderID, trade.Symbol, trade.Strategy, trade.Side, trade.EntryPrice,
		trade.StopLoss, trade.TakeProfit, trade.Quantity, trade.DryRun, trade.OpenedAt,
	).Scan(&trade.ID)
}

// CloseTrade records the exit of an open trade.
func (r *Repository) CloseTrade(ctx context.Context, id int64, exitPrice, pnlUSD, pnlPct float64, closedAt time.Time) error {
	query := `
		UPDATE trades
		SET exit_price = $2, pnl_usd = $3, pnl_pct = $4, status = 'CLOSED', closed_at = $5
		WHERE id = $1
	`
	_, err := r.db.Pool.Exec(ctx, query, id, exitPrice, pnlUSD, pnlPct, closedAt)
	return err
}

// ListTrades returns the most recent trades, newest first.
func (r *Repository) ListTrades(ctx context.Context, limit int) ([]*TradeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, client_order_id, symbol, strategy, side, entry_price, exit_price,
		       stop_loss, take_profit, quantity, pnl_usd, pnl_pct, dry_run, status,
		       opened_at, closed_at
		FROM trades
		ORDER BY opened_at DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*TradeRecord
	for rows.Next() {
		trade := &TradeRecord{}
		if err := rows.Scan(
			&trade.ID, &trade.ClientOrderID, &trade.Symbol, &trade.Strategy, &trade.Side,
			&trade.EntryPrice, &trade.ExitPrice, &trade.StopLoss, &trade.TakeProfit,
			&trade.Quantity, &trade.PnlUSD, &trade.PnlPct, &trade.DryRun, &trade.Status,
			&trade.OpenedAt, &trade.ClosedAt,
		); err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

// OpenTrades returns trades that have not been closed yet.
func (r *Repository) OpenTrades(ctx context.Context) ([]*TradeRecord, error) {
	query := `
		SELECT id, client_order_id, symbol, strategy, side, entry_price, exit_price,
		       stop_loss, take_profit, quantity, pnl_usd, pnl_pct, dry_run, status,
		       opened_at, closed_at
		FROM trades
		WHERE status = 'OPEN'
		ORDER BY opened_at DESC
	`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*TradeRecord
	for rows.Next() {
		trade := &TradeRecord{}
		if err := rows.Scan(
			&trade.ID, &trade.ClientOrderID, &trade.Symbol, &trade.Strategy, &trade.Side,
			&trade.EntryPrice, &trade.ExitPrice, &trade.StopLoss, &trade.TakeProfit,
			&trade.Quantity, &trade.PnlUSD, &trade.PnlPct, &trade.DryRun, &trade.Status,
			&trade.OpenedAt, &trade.ClosedAt,
		); err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

// RecordSignal inserts a generated signal for later inspection.
func (r *Repository) RecordSignal(ctx context.Context, sig *SignalRecord) error {
	query := `
		INSERT INTO signals (symbol, strategy, side, entry_price, reason, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		sig.Symbol, sig.Strategy, sig.Side, sig.EntryPrice, sig.Reason, sig.GeneratedAt,
	).Scan(&sig.ID)
}
