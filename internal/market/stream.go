package market

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// PriceUpdate carries a live last-price tick for a symbol.
type PriceUpdate struct {
	Symbol string
	Price  float64
}

// PriceStream subscribes to Bybit's public ticker stream and fans out live
// prices. It reconnects with backoff on read errors and stops when Close is
// called. Losing the stream is not fatal; the bot falls back to REST prices.
type PriceStream struct {
	wsURL    string
	symbols  []string
	onUpdate func(PriceUpdate)
	logger   zerolog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewPriceStream creates a stream for the given symbols. onUpdate is invoked
// from the read goroutine and must not block.
func NewPriceStream(wsURL string, symbols []string, onUpdate func(PriceUpdate), logger zerolog.Logger) *PriceStream {
	return &PriceStream{
		wsURL:    wsURL,
		symbols:  symbols,
		onUpdate: onUpdate,
		logger:   logger.With().Str("component", "price_stream").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start launches the read loop in the background.
func (ps *PriceStream) Start() {
	ps.wg.Add(1)
	go ps.run()
}

func (ps *PriceStream) run() {
	defer ps.wg.Done()

	backoff := time.Second
	for {
		select {
		case <-ps.stopChan:
			return
		default:
		}

		if err := ps.connectAndRead(); err != nil {
			ps.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("price stream disconnected")
		}

		select {
		case <-ps.stopChan:
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (ps *PriceStream) connectAndRead() error {
	conn, _, err := websocket.DefaultDialer.Dial(ps.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", ps.wsURL, err)
	}

	ps.mu.Lock()
	ps.conn = conn
	ps.mu.Unlock()

	defer func() {
		conn.Close()
		ps.mu.Lock()
		ps.conn = nil
		ps.mu.Unlock()
	}()

	if err := ps.subscribe(conn); err != nil {
		return err
	}
	ps.logger.Info().Int("symbols", len(ps.symbols)).Msg("price stream connected")

	for {
		select {
		case <-ps.stopChan:
			return nil
		default:
		}

		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		data := gjson.GetBytes(message, "data")
		if !data.Exists() {
			continue
		}
		symbol := data.Get("symbol").String()
		price := data.Get("lastPrice").Float()
		if symbol == "" || price == 0 {
			continue
		}
		ps.onUpdate(PriceUpdate{Symbol: symbol, Price: price})
	}
}

func (ps *PriceStream) subscribe(conn *websocket.Conn) error {
	args := make([]string, 0, len(ps.symbols))
	for _, s := range ps.symbols {
		args = append(args, "tickers."+strings.ToUpper(s))
	}
	sub := map[string]interface{}{
		"op":   "subscribe",
		"args": args,
	}
	payload, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// Close stops the stream and waits for the read loop to exit.
func (ps *PriceStream) Close() {
	close(ps.stopChan)
	ps.mu.Lock()
	if ps.conn != nil {
		ps.conn.Close()
	}
	ps.mu.Unlock()
	ps.wg.Wait()
}
