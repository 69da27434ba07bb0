package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"RugTracker/internal/domain/models"
	xlogger "RugTracker/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait      = 5 * time.Second
	clientBacklog  = 64
	maxClientCount = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// event is the wire envelope pushed to subscribers.
type event struct {
	Type string `json:"type"` // prediction | side_bet
	Data any    `json:"data"`
}

// Hub fans live predictions and side-bet signals out to WebSocket
// subscribers. Slow clients are dropped, never waited on.
type Hub struct {
	logger *xlogger.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(logger *xlogger.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.Serve)
}

// Serve upgrades the connection and starts the client writer.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &client{conn: conn, send: make(chan []byte, clientBacklog)}

	h.mu.Lock()
	if len(h.clients) >= maxClientCount {
		h.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	h.clients[cl] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("ws client connected", xlogger.Int("clients", n))

	go h.writeLoop(cl)
	go h.readLoop(cl)
	return nil
}

// BroadcastPrediction pushes a prediction to all subscribers.
func (h *Hub) BroadcastPrediction(p *models.PredictionResult) {
	h.broadcast(event{Type: "prediction", Data: p})
}

// BroadcastSideBet pushes a side-bet signal to all subscribers.
func (h *Hub) BroadcastSideBet(s *models.SideBetSignal) {
	h.broadcast(event{Type: "side_bet", Data: s})
}

func (h *Hub) broadcast(ev event) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		select {
		case cl.send <- b:
		default:
			// slow client; drop it
			delete(h.clients, cl)
			close(cl.send)
		}
	}
}

func (h *Hub) writeLoop(cl *client) {
	defer cl.conn.Close()
	for b := range cl.send {
		_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			h.drop(cl)
			return
		}
	}
}

// readLoop discards inbound frames; its job is to notice disconnects.
func (h *Hub) readLoop(cl *client) {
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			h.drop(cl)
			return
		}
	}
}

func (h *Hub) drop(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.mu.Unlock()
	_ = cl.conn.Close()
}

// Close disconnects all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		delete(h.clients, cl)
		close(cl.send)
		_ = cl.conn.Close()
	}
}

// ClientCount reports active subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
