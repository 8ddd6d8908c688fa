package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"TrendLab/internal/domain/models"
	drepo "TrendLab/internal/domain/repository"
	"TrendLab/pkg/logger"

	"github.com/gorilla/websocket"
)

var _ drepo.MarketStream = (*Client)(nil)

// ErrAuth is returned when the feed rejects the credentials.
var ErrAuth = errors.New("alpaca stream: authentication failed")

// Client implements a MarketStream backed by the Alpaca bar WebSocket.
type Client struct {
	apiKey         string
	apiSecret      string
	url            string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *logger.Logger

	mu        sync.Mutex
	writeMu   sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// Config holds stream settings.
type Config struct {
	APIKey         string
	APISecret      string
	URL            string
	Symbols        []string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
}

// New creates an Alpaca bar stream.
func New(cfg Config, l *logger.Logger) *Client {
	if l == nil {
		l = logger.Nop()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Client{
		apiKey:         cfg.APIKey,
		apiSecret:      cfg.APISecret,
		url:            cfg.URL,
		symbols:        cfg.Symbols,
		reconnectDelay: cfg.ReconnectDelay,
		pingInterval:   cfg.PingInterval,
		log:            l,
	}
}

// control is a non-bar frame: success, error or subscription.
type control struct {
	T    string `json:"T"`
	Msg  string `json:"msg"`
	Code int    `json:"code"`
}

type barFrame struct {
	T string  `json:"T"`
	S string  `json:"S"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
	Ts string `json:"t"`
}

// Connect dials the feed and authenticates.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("alpaca stream connect: %w", err)
	}

	// welcome frame
	if _, err := readControl(conn); err != nil {
		_ = conn.Close()
		return err
	}

	auth := map[string]string{"action": "auth", "key": c.apiKey, "secret": c.apiSecret}
	if err := conn.WriteJSON(auth); err != nil {
		_ = conn.Close()
		return fmt.Errorf("alpaca stream auth: %w", err)
	}
	ctl, err := readControl(conn)
	if err != nil {
		_ = conn.Close()
		return err
	}
	if ctl.T != "success" || ctl.Msg != "authenticated" {
		_ = conn.Close()
		return fmt.Errorf("%w: %d %s", ErrAuth, ctl.Code, ctl.Msg)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.log.Info("alpaca stream connected", logger.String("url", c.url))
	return nil
}

func readControl(conn *websocket.Conn) (control, error) {
	var frames []control
	if err := conn.ReadJSON(&frames); err != nil {
		return control{}, fmt.Errorf("alpaca stream read: %w", err)
	}
	if len(frames) == 0 {
		return control{}, fmt.Errorf("alpaca stream: empty control frame")
	}
	if frames[0].T == "error" {
		return frames[0], fmt.Errorf("%w: %d %s", ErrAuth, frames[0].Code, frames[0].Msg)
	}
	return frames[0], nil
}

// Subscribe subscribes to minute bars for the configured symbols.
func (c *Client) Subscribe(ctx context.Context) error {
	if !c.IsConnected() {
		return fmt.Errorf("alpaca stream not connected")
	}
	msg := map[string]interface{}{"action": "subscribe", "bars": c.symbols}
	if err := c.writeJSON(msg); err != nil {
		return fmt.Errorf("subscribe %s: %w", strings.Join(c.symbols, ","), err)
	}
	c.log.Info("alpaca stream subscribed", logger.Strings("symbols", c.symbols))
	return nil
}

// Read streams bars and errors until ctx ends or the connection fails.
func (c *Client) Read(ctx context.Context) (<-chan *models.RawBar, <-chan error) {
	bars := make(chan *models.RawBar, 1024)
	errs := make(chan error, 1)

	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.writeMu.Lock()
				if conn := c.current(); conn != nil {
					_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				}
				c.writeMu.Unlock()
			}
		}
	}()

	go func() {
		defer close(bars)
		defer close(errs)
		for {
			if ctx.Err() != nil {
				return
			}
			conn := c.current()
			if conn == nil {
				errs <- fmt.Errorf("alpaca stream conn nil")
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("alpaca stream read: %w", err)
				}
				return
			}
			parsed, err := ParseBars(b)
			if err != nil {
				c.log.Debug("alpaca stream frame skipped", logger.Error(err))
				continue
			}
			for _, bar := range parsed {
				select {
				case bars <- bar:
				default:
					c.log.Warn("alpaca stream backpressure, bar dropped", logger.String("ticker", bar.Ticker))
				}
			}
		}
	}()

	return bars, errs
}

// ParseBars decodes a frame array and keeps only bar messages.
func ParseBars(b []byte) ([]*models.RawBar, error) {
	var frames []barFrame
	if err := json.Unmarshal(b, &frames); err != nil {
		return nil, err
	}
	out := make([]*models.RawBar, 0, len(frames))
	for _, f := range frames {
		if f.T != "b" && f.T != "u" {
			continue
		}
		o, h, l, v := f.O, f.H, f.L, f.V
		out = append(out, &models.RawBar{
			Ticker: f.S,
			Time:   models.RawTime(f.Ts),
			Open:   &o,
			High:   &h,
			Low:    &l,
			Close:  f.C,
			Volume: &v,
		})
	}
	return out, nil
}

// Reconnect closes, waits and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn := c.current()
	if conn == nil {
		return fmt.Errorf("alpaca stream conn nil")
	}
	return conn.WriteJSON(v)
}
