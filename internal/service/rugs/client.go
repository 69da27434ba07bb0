package rugs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"RugTracker/internal/domain/models"
	drepo "RugTracker/internal/domain/repository"
	"RugTracker/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements a FeedStream backed by the game's WebSocket feed.
type Client struct {
	websocketURL   string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool

	// lastGameID lets the reader synthesize a rugged frame when the feed
	// switches games without sending one.
	lastGameID string
	lastTick   int
	lastPrice  float64
	lastPeak   float64
}

// New creates a new game feed stream.
func New(websocketURL string, reconnectDelay, pingInterval time.Duration, log *logger.Logger) drepo.FeedStream {
	return &Client{
		websocketURL:   websocketURL,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.log.Info("feed connected", logger.String("url", c.websocketURL))
	return nil
}

// gameState is the raw feed frame.
type gameState struct {
	Type      string  `json:"type"`
	GameID    string  `json:"gameId"`
	TickCount int     `json:"tickCount"`
	Price     float64 `json:"price"`
	PeakPrice float64 `json:"peakMultiplier"`
	Rugged    bool    `json:"rugged"`
	Active    bool    `json:"active"`
}

// Read streams tick observations and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.TickObservation, <-chan error) {
	ticks := make(chan *models.TickObservation, 1024)
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
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(ticks)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn == nil {
					errs <- fmt.Errorf("feed conn nil")
					return
				}
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("feed read: %w", err)
					return
				}
				var m gameState
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-state frames
					continue
				}
				if m.Type != "gameStateUpdate" || m.GameID == "" {
					continue
				}
				for _, t := range c.frames(m) {
					select {
					case ticks <- t:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return ticks, errs
}

// frames converts one feed frame into observations, synthesizing a rugged
// frame for the previous game when the feed jumps to a new one mid-flight.
func (c *Client) frames(m gameState) []*models.TickObservation {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*models.TickObservation
	if c.lastGameID != "" && m.GameID != c.lastGameID {
		out = append(out, &models.TickObservation{
			EpisodeID:  c.lastGameID,
			Step:       c.lastTick + 1,
			Multiplier: c.lastPrice,
			Peak:       c.lastPeak,
			Rugged:     true,
		})
	}

	peak := m.PeakPrice
	if m.GameID == c.lastGameID && c.lastPeak > peak {
		peak = c.lastPeak
	}
	if m.Price > peak {
		peak = m.Price
	}

	out = append(out, &models.TickObservation{
		EpisodeID:  m.GameID,
		Step:       m.TickCount,
		Multiplier: m.Price,
		Peak:       peak,
		Rugged:     m.Rugged,
	})

	if m.Rugged {
		c.lastGameID = ""
	} else {
		c.lastGameID = m.GameID
		c.lastTick = m.TickCount
		c.lastPrice = m.Price
		c.lastPeak = peak
	}
	return out
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	return c.Connect(ctx)
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

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
