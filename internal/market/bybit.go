package market

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// Fetcher defines the candle-source interface the bot consumes.
type Fetcher interface {
	GetKlines(symbol, interval string, limit int) (*Series, error)
	GetCurrentPrice(symbol string) (float64, error)
	GetSymbols(quoteCurrency string) ([]string, error)
	GetInstrument(symbol string) (*Instrument, error)
}

// Instrument carries the order sizing constraints of a symbol.
type Instrument struct {
	Symbol  string  `json:"symbol"`
	QtyStep float64 `json:"qty_step"`
	MinQty  float64 `json:"min_qty"`
}

// BybitClient fetches market data from the Bybit v5 public REST API.
type BybitClient struct {
	baseURL    string
	httpClient *http.Client

	mu          sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

// NewBybitClient creates a client against the given base URL
// (e.g. "https://api.bybit.com").
func NewBybitClient(baseURL string) *BybitClient {
	return &BybitClient{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		minInterval: 100 * time.Millisecond,
	}
}

// rateLimit enforces the minimum interval between requests.
func (c *BybitClient) rateLimit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wait := c.minInterval - time.Since(c.lastRequest); wait > 0 {
		time.Sleep(wait)
	}
	c.lastRequest = time.Now()
}

func (c *BybitClient) get(path string, params url.Values) (gjson.Result, error) {
	c.rateLimit()

	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: reading response: %v", ErrDataUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("%w: HTTP %d: %s", ErrDataUnavailable, resp.StatusCode, string(body))
	}

	result := gjson.ParseBytes(body)
	if ret := result.Get("retCode"); ret.Exists() && ret.Int() != 0 {
		return gjson.Result{}, fmt.Errorf("%w: bybit error %d: %s",
			ErrDataUnavailable, ret.Int(), result.Get("retMsg").String())
	}
	return result, nil
}

// GetKlines fetches up to limit candles for symbol at the given interval
// ("1", "5", "15", "60", "240", "D"). Bybit returns newest first; the result
// is re-sorted into ascending chronological order.
func (c *BybitClient) GetKlines(symbol, interval string, limit int) (*Series, error) {
	params := url.Values{}
	params.Set("category", "linear")
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	result, err := c.get("/v5/market/kline", params)
	if err != nil {
		return nil, err
	}

	rows := result.Get("result.list").Array()
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty kline response for %s", ErrDataUnavailable, symbol)
	}

	candles := make([]Candle, 0, len(rows))
	for _, row := range rows {
		// Bybit row: [startTime, open, high, low, close, volume, turnover]
		cols := row.Array()
		if len(cols) < 6 {
			continue
		}
		candles = append(candles, Candle{
			OpenTime: time.UnixMilli(cols[0].Int()),
			Open:     cols[1].Float(),
			High:     cols[2].Float(),
			Low:      cols[3].Float(),
			Close:    cols[4].Float(),
			Volume:   cols[5].Float(),
		})
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})

	return NewSeries(candles), nil
}

// GetCurrentPrice returns the last traded price for a symbol.
func (c *BybitClient) GetCurrentPrice(symbol string) (float64, error) {
	params := url.Values{}
	params.Set("category", "linear")
	params.Set("symbol", symbol)

	result, err := c.get("/v5/market/tickers", params)
	if err != nil {
		return 0, err
	}

	price := result.Get("result.list.0.lastPrice").Float()
	if price == 0 {
		return 0, fmt.Errorf("%w: no ticker for %s", ErrDataUnavailable, symbol)
	}
	return price, nil
}

// GetSymbols lists tradeable linear symbols quoted in quoteCurrency.
func (c *BybitClient) GetSymbols(quoteCurrency string) ([]string, error) {
	params := url.Values{}
	params.Set("category", "linear")

	result, err := c.get("/v5/market/instruments-info", params)
	if err != nil {
		return nil, err
	}

	var symbols []string
	for _, row := range result.Get("result.list").Array() {
		if row.Get("status").String() != "Trading" {
			continue
		}
		if row.Get("quoteCoin").String() != quoteCurrency {
			continue
		}
		symbols = append(symbols, row.Get("symbol").String())
	}
	return symbols, nil
}

// GetInstrument returns the sizing constraints for one symbol.
func (c *BybitClient) GetInstrument(symbol string) (*Instrument, error) {
	params := url.Values{}
	params.Set("category", "linear")
	params.Set("symbol", symbol)

	result, err := c.get("/v5/market/instruments-info", params)
	if err != nil {
		return nil, err
	}

	row := result.Get("result.list.0")
	if !row.Exists() {
		return nil, fmt.Errorf("%w: no instrument info for %s", ErrDataUnavailable, symbol)
	}
	return &Instrument{
		Symbol:  row.Get("symbol").String(),
		QtyStep: row.Get("lotSizeFilter.qtyStep").Float(),
		MinQty:  row.Get("lotSizeFilter.minOrderQty").Float(),
	}, nil
}

var _ Fetcher = (*BybitClient)(nil)
