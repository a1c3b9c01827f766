// Package feed implements the live candle stream over WebSocket.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SMCFlow/internal/domain/models"
	drepo "SMCFlow/internal/domain/repository"
	xlogger "SMCFlow/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements a CandleStream backed by the provider's WebSocket API.
// The provider pushes one frame per closed candle per subscription.
type Client struct {
	apiKey         string
	websocketURL   string
	assets         []string
	timeframes     []models.Timeframe
	reconnectDelay time.Duration
	pingInterval   time.Duration
	logger         *xlogger.Logger

	conn      *websocket.Conn
	connected bool
}

// New creates a new WebSocket CandleStream.
func New(apiKey, websocketURL string, assets []string, timeframes []models.Timeframe, reconnectDelay, pingInterval time.Duration, lgr *xlogger.Logger) drepo.CandleStream {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		assets:         assets,
		timeframes:     timeframes,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		logger:         lgr,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	c.logger.Info("feed connected", xlogger.String("url", c.websocketURL))
	return nil
}

// Subscribe subscribes to closed candles for every (asset, timeframe) pair.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("feed not connected")
	}
	for _, a := range c.assets {
		for _, tf := range c.timeframes {
			msg := map[string]string{"type": "subscribe", "asset": a, "tf": string(tf)}
			if err := c.conn.WriteJSON(msg); err != nil {
				return fmt.Errorf("subscribe %s %s: %w", a, tf, err)
			}
			c.logger.Info("feed subscribed",
				xlogger.String("asset", a),
				xlogger.String("tf", string(tf)),
			)
		}
	}
	return nil
}

type wsCandle struct {
	Asset string  `json:"asset"`
	TF    string  `json:"tf"`
	T     int64   `json:"t"` // open time, ms
	O     float64 `json:"o"`
	H     float64 `json:"h"`
	L     float64 `json:"l"`
	C     float64 `json:"c"`
	V     float64 `json:"v"`
}

type wsMessage struct {
	Type string     `json:"type"`
	Data []wsCandle `json:"data"`
}

// Read streams closed candles and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.Candle, <-chan error) {
	candles := make(chan *models.Candle, 1024)
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

	// read loop
	go func() {
		defer close(candles)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("feed conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("feed read: %w", err)
					return
				}
				var m wsMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-candle frames
					continue
				}
				if m.Type != "candle" {
					continue
				}
				for _, d := range m.Data {
					cn := &models.Candle{
						Asset:     d.Asset,
						Timeframe: models.NormalizeTimeframe(d.TF),
						OpenTime:  time.Unix(d.T/1000, 0).UTC(),
						Open:      d.O,
						High:      d.H,
						Low:       d.L,
						Close:     d.C,
						Volume:    d.V,
					}
					select {
					case candles <- cn:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return candles, errs
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
