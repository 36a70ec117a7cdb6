// Package executor places and closes Bybit v5 linear perpetual orders for
// sized trade plans.
package executor

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"smc-trading-bot/internal/risk"
	"smc-trading-bot/internal/strategy"
)

const recvWindow = "5000"

// Config holds executor settings.
type Config struct {
	BaseURL         string
	APIKey          string
	APISecret       string
	BalanceCooldown time.Duration // pause after an insufficient balance reject
}

// OrderResult identifies a placed order.
type OrderResult struct {
	OrderID       string `json:"order_id"`
	ClientOrderID string `json:"client_order_id"`
}

// Executor talks to the Bybit private REST API. After an insufficient
// balance rejection it refuses new entries for the configured cooldown so a
// drained account does not get hammered with doomed orders every scan.
type Executor struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger

	mu            sync.Mutex
	cooldownUntil time.Time
	now           func() time.Time
}

func New(cfg Config, logger zerolog.Logger) *Executor {
	if cfg.BalanceCooldown <= 0 {
		cfg.BalanceCooldown = time.Hour
	}
	return &Executor{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		config:     cfg,
		logger:     logger.With().Str("component", "executor").Logger(),
		now:        time.Now,
	}
}

// InCooldown reports whether entries are paused and for how many more
// minutes.
func (e *Executor) InCooldown() (bool, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	remaining := e.cooldownUntil.Sub(e.now())
	if remaining <= 0 {
		return false, 0
	}
	return true, int(remaining.Minutes()) + 1
}

func (e *Executor) startCooldown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cooldownUntil = e.now().Add(e.config.BalanceCooldown)
	e.logger.Warn().
		Time("until", e.cooldownUntil).
		Msg("Insufficient balance, pausing new entries")
}

// GetBalance returns the available USDT balance of the unified account.
func (e *Executor) GetBalance(ctx context.Context) (float64, error) {
	result, err := e.signedGet(ctx, "/v5/account/wallet-balance", "accountType=UNIFIED&coin=USDT")
	if err != nil {
		return 0, err
	}
	balance := result.Get("list.0.totalAvailableBalance")
	if !balance.Exists() {
		balance = result.Get("list.0.coin.0.availableToWithdraw")
	}
	return balance.Float(), nil
}

// PlaceOrder opens a market position with the plan's stop and target. Bybit
// accepts stops inline on the create call; if that is rejected the order is
// retried bare and the stops attached with a separate trading-stop call.
func (e *Executor) PlaceOrder(ctx context.Context, symbol string, plan *risk.Plan) (*OrderResult, error) {
	if paused, mins := e.InCooldown(); paused {
		return nil, &ExecutionError{
			Op: "place_order", Symbol: symbol, RetCode: retCodeInsufficientBalance,
			Msg: fmt.Sprintf("balance cooldown active for another %d minutes", mins),
		}
	}

	clientOrderID := uuid.NewString()
	body := map[string]interface{}{
		"category":    "linear",
		"symbol":      symbol,
		"side":        bybitSide(plan.Side),
		"orderType":   "Market",
		"qty":         formatQty(plan.Quantity),
		"orderLinkId": clientOrderID,
		"takeProfit":  formatPrice(plan.TakeProfit),
		"stopLoss":    formatPrice(plan.StopLoss),
		"tpslMode":    "Full",
	}

	result, err := e.signedPost(ctx, "/v5/order/create", body)
	if err == nil {
		return &OrderResult{OrderID: result.Get("orderId").String(), ClientOrderID: clientOrderID}, nil
	}

	execErr, ok := err.(*ExecutionError)
	if !ok {
		return nil, err
	}
	if execErr.InsufficientBalance() {
		e.startCooldown()
		return nil, execErr
	}

	// Some symbols reject inline stops; retry bare and attach them after.
	e.logger.Warn().
		Str("symbol", symbol).
		Int("ret_code", execErr.RetCode).
		Msg("Combined order rejected, retrying without inline stops")

	delete(body, "takeProfit")
	delete(body, "stopLoss")
	delete(body, "tpslMode")
	result, err = e.signedPost(ctx, "/v5/order/create", body)
	if err != nil {
		if execErr, ok := err.(*ExecutionError); ok && execErr.InsufficientBalance() {
			e.startCooldown()
		}
		return nil, err
	}
	order := &OrderResult{OrderID: result.Get("orderId").String(), ClientOrderID: clientOrderID}

	if err := e.setStops(ctx, symbol, plan); err != nil {
		// The position is open but unprotected; close it rather than run naked.
		e.logger.Error().Err(err).Str("symbol", symbol).
			Msg("Failed to attach stops, closing the position")
		if closeErr := e.ClosePosition(ctx, symbol, plan.Side, plan.Quantity); closeErr != nil {
			e.logger.Error().Err(closeErr).Str("symbol", symbol).
				Msg("Emergency close failed, position needs manual attention")
		}
		return nil, err
	}
	return order, nil
}

func (e *Executor) setStops(ctx context.Context, symbol string, plan *risk.Plan) error {
	body := map[string]interface{}{
		"category":    "linear",
		"symbol":      symbol,
		"takeProfit":  formatPrice(plan.TakeProfit),
		"stopLoss":    formatPrice(plan.StopLoss),
		"tpslMode":    "Full",
		"positionIdx": 0,
	}
	_, err := e.signedPost(ctx, "/v5/position/trading-stop", body)
	return err
}

// ClosePosition exits with a reduce-only market order in the opposite
// direction.
func (e *Executor) ClosePosition(ctx context.Context, symbol string, side strategy.Side, quantity float64) error {
	closeSide := "Sell"
	if side == strategy.SideShort {
		closeSide = "Buy"
	}
	body := map[string]interface{}{
		"category":    "linear",
		"symbol":      symbol,
		"side":        closeSide,
		"orderType":   "Market",
		"qty":         formatQty(quantity),
		"reduceOnly":  true,
		"orderLinkId": uuid.NewString(),
	}
	_, err := e.signedPost(ctx, "/v5/order/create", body)
	return err
}

func (e *Executor) signedPost(ctx context.Context, path string, body map[string]interface{}) (gjson.Result, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return gjson.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, err
	}
	timestamp := strconv.FormatInt(e.now().UnixMilli(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-BAPI-API-KEY", e.config.APIKey)
	req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
	req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
	req.Header.Set("X-BAPI-SIGN", sign(e.config.APISecret, timestamp, e.config.APIKey, string(payload)))

	return e.do(req, path, body)
}

func (e *Executor) signedGet(ctx context.Context, path, query string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.BaseURL+path+"?"+query, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	timestamp := strconv.FormatInt(e.now().UnixMilli(), 10)
	req.Header.Set("X-BAPI-API-KEY", e.config.APIKey)
	req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
	req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
	req.Header.Set("X-BAPI-SIGN", sign(e.config.APISecret, timestamp, e.config.APIKey, query))

	return e.do(req, path, nil)
}

func (e *Executor) do(req *http.Request, path string, body map[string]interface{}) (gjson.Result, error) {
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("reading %s response: %w", path, err)
	}

	parsed := gjson.ParseBytes(data)
	if retCode := parsed.Get("retCode").Int(); retCode != retCodeOK {
		symbol := ""
		if body != nil {
			symbol, _ = body["symbol"].(string)
		}
		return gjson.Result{}, &ExecutionError{
			Op:      path,
			Symbol:  symbol,
			RetCode: int(retCode),
			Msg:     parsed.Get("retMsg").String(),
		}
	}
	return parsed.Get("result"), nil
}

// sign computes the v5 request signature: HMAC-SHA256 over
// timestamp + apiKey + recvWindow + payload.
func sign(secret, timestamp, apiKey, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + apiKey + recvWindow + payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func bybitSide(side strategy.Side) string {
	if side == strategy.SideShort {
		return "Sell"
	}
	return "Buy"
}

func formatQty(qty float64) string {
	return strconv.FormatFloat(qty, 'f', -1, 64)
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}
