package deribit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	drepo "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/repository"
	xlogger "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements a ChainStream backed by the Deribit WebSocket API.
// It subscribes to the options mark-price channel per currency, accumulates
// per-instrument quotes, and emits one raw chain snapshot per interval.
type Client struct {
	websocketURL   string
	currencies     []string
	snapshotEvery  time.Duration
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *xlogger.Logger

	conn      *websocket.Conn
	connected bool

	mu     sync.Mutex
	quotes map[string]map[string]models.OptionQuote // currency -> instrument -> quote
	spot   map[string]float64                       // currency -> index price
}

// New creates a Deribit ChainStream for the given currencies (e.g. "BTC").
func New(websocketURL string, currencies []string, snapshotEvery, reconnectDelay, pingInterval time.Duration, log *xlogger.Logger) drepo.ChainStream {
	if snapshotEvery <= 0 {
		snapshotEvery = 5 * time.Second
	}
	return &Client{
		websocketURL:   websocketURL,
		currencies:     currencies,
		snapshotEvery:  snapshotEvery,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log,
		quotes:         make(map[string]map[string]models.OptionQuote),
		spot:           make(map[string]float64),
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("deribit connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	c.log.Info("deribit: connected", xlogger.String("url", c.websocketURL))
	return nil
}

// Subscribe subscribes to the mark-price and index channels of every
// configured currency.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("deribit not connected")
	}
	channels := make([]string, 0, 2*len(c.currencies))
	for _, cur := range c.currencies {
		lc := strings.ToLower(cur)
		channels = append(channels,
			fmt.Sprintf("markprice.options.%s_usd", lc),
			fmt.Sprintf("deribit_price_index.%s_usd", lc),
		)
	}
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "public/subscribe",
		"params":  map[string]interface{}{"channels": channels},
	}
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("deribit subscribe: %w", err)
	}
	c.log.Info("deribit: subscribed", xlogger.Strings("channels", channels))
	return nil
}

type wsNotification struct {
	Method string `json:"method"`
	Params struct {
		Channel string          `json:"channel"`
		Data    json.RawMessage `json:"data"`
	} `json:"params"`
}

type markPriceEntry struct {
	InstrumentName string  `json:"instrument_name"`
	IV             float64 `json:"iv"`
	MarkPrice      float64 `json:"mark_price"`
	Timestamp      int64   `json:"timestamp"` // ms
}

type indexEntry struct {
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

// Read streams assembled chain snapshots and errors. One snapshot per
// configured currency is emitted per snapshot interval, provided at least
// one quote arrived since connect.
func (c *Client) Read(ctx context.Context) (<-chan *models.RawChain, <-chan error) {
	chains := make(chan *models.RawChain, 64)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// snapshot loop
	go func() {
		ticker := time.NewTicker(c.snapshotEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, chain := range c.snapshots() {
					select {
					case chains <- chain:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(chains)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("deribit conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("deribit read: %w", err)
					return
				}
				var m wsNotification
				if err := json.Unmarshal(b, &m); err != nil || m.Method != "subscription" {
					// ignore RPC replies and heartbeats
					continue
				}
				c.handle(m.Params.Channel, m.Params.Data)
			}
		}
	}()

	return chains, errs
}

func (c *Client) handle(channel string, data json.RawMessage) {
	switch {
	case strings.HasPrefix(channel, "markprice.options."):
		var entries []markPriceEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return
		}
		c.mu.Lock()
		for _, e := range entries {
			cur, q, err := parseInstrument(e.InstrumentName)
			if err != nil {
				continue
			}
			q.ImpliedVol = e.IV
			q.ObservedAt = time.UnixMilli(e.Timestamp).UTC()
			if c.quotes[cur] == nil {
				c.quotes[cur] = make(map[string]models.OptionQuote)
			}
			c.quotes[cur][e.InstrumentName] = q
		}
		c.mu.Unlock()
	case strings.HasPrefix(channel, "deribit_price_index."):
		var e indexEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return
		}
		cur := strings.ToUpper(strings.TrimSuffix(strings.TrimPrefix(channel, "deribit_price_index."), "_usd"))
		c.mu.Lock()
		c.spot[cur] = e.Price
		c.mu.Unlock()
	}
}

// snapshots drains the accumulated quotes into one raw chain per currency.
func (c *Client) snapshots() []*models.RawChain {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	out := make([]*models.RawChain, 0, len(c.quotes))
	for cur, byInstrument := range c.quotes {
		if len(byInstrument) == 0 {
			continue
		}
		quotes := make([]models.OptionQuote, 0, len(byInstrument))
		for _, q := range byInstrument {
			quotes = append(quotes, q)
		}
		out = append(out, &models.RawChain{
			Symbol:    cur + "-USD",
			SpotPrice: c.spot[cur],
			Timestamp: now,
			Quotes:    quotes,
		})
	}
	return out
}

// parseInstrument decodes a Deribit option name like "BTC-4SEP26-58000-P"
// into the currency and a quote skeleton. Expiries settle at 08:00 UTC.
func parseInstrument(name string) (string, models.OptionQuote, error) {
	parts := strings.Split(name, "-")
	if len(parts) != 4 {
		return "", models.OptionQuote{}, fmt.Errorf("instrument %q: not an option", name)
	}
	expiry, err := time.Parse("2Jan06", toTitleMonth(parts[1]))
	if err != nil {
		return "", models.OptionQuote{}, fmt.Errorf("instrument %q: expiry: %w", name, err)
	}
	expiry = expiry.Add(8 * time.Hour)
	strike, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return "", models.OptionQuote{}, fmt.Errorf("instrument %q: strike: %w", name, err)
	}
	var typ models.OptionType
	switch parts[3] {
	case "C":
		typ = models.Call
	case "P":
		typ = models.Put
	default:
		return "", models.OptionQuote{}, fmt.Errorf("instrument %q: type %q", name, parts[3])
	}
	return parts[0], models.OptionQuote{Expiry: expiry, Strike: strike, Type: typ}, nil
}

// toTitleMonth rewrites "4SEP26" as "4Sep26" for time.Parse.
func toTitleMonth(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			if upper {
				b.WriteRune(r)
				upper = false
			} else {
				b.WriteRune(r + ('a' - 'A'))
			}
		} else {
			b.WriteRune(r)
			upper = true
		}
	}
	return b.String()
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
