package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pulsedeck/internal/logger"
	"pulsedeck/internal/market"
	"pulsedeck/internal/monitoring"
)

const (
	wsWriteWait        = 10 * time.Second
	wsPongWait         = 60 * time.Second
	wsPingPeriod       = 50 * time.Second
	wsSnapshotInterval = 30 * time.Second
)

// WebSocketHandler streams periodic market snapshots to dashboard clients
type WebSocketHandler struct {
	upgrader  websocket.Upgrader
	leverage  *market.LeverageService
	funding   *market.FundingService
	liquidity *market.LiquidityService
	metrics   *monitoring.Metrics
	log       logger.Logger

	mu      sync.RWMutex
	clients map[string]*wsClient

	stop chan struct{}
	once sync.Once
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// wsMessage is the frame sent to subscribers
type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Time time.Time   `json:"time"`
}

// NewWebSocketHandler creates the snapshot hub and starts its broadcaster
func NewWebSocketHandler(leverage *market.LeverageService, funding *market.FundingService, liquidity *market.LiquidityService, metrics *monitoring.Metrics, log logger.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		leverage:  leverage,
		funding:   funding,
		liquidity: liquidity,
		metrics:   metrics,
		log:       log,
		clients:   make(map[string]*wsClient),
		stop:      make(chan struct{}),
	}

	go h.broadcastLoop()

	return h
}

// Stream handles GET /api/v1/ws
func (h *WebSocketHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err.Error())
		return
	}

	client := &wsClient{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, 32),
	}

	h.register(client)

	go h.writePump(client)
	go h.readPump(client)
}

// Close stops the broadcaster and disconnects all clients
func (h *WebSocketHandler) Close() {
	h.once.Do(func() { close(h.stop) })

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.send)
		client.conn.Close()
		delete(h.clients, id)
	}
}

func (h *WebSocketHandler) register(client *wsClient) {
	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ConnectionOpened()
	}
	h.log.Info("websocket client connected", "client_id", client.id)
}

func (h *WebSocketHandler) unregister(client *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		close(client.send)
	}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ConnectionClosed()
	}
	h.log.Info("websocket client disconnected", "client_id", client.id)
}

// broadcastLoop pushes a fresh snapshot to all clients on a fixed cadence.
// Snapshots come through the same fallback chain as the REST API, so an
// upstream outage degrades the stream instead of stalling it.
func (h *WebSocketHandler) broadcastLoop() {
	ticker := time.NewTicker(wsSnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.mu.RLock()
			idle := len(h.clients) == 0
			h.mu.RUnlock()
			if idle {
				continue
			}
			h.broadcastSnapshot()
		}
	}
}

func (h *WebSocketHandler) broadcastSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	snapshot := make(map[string]interface{})

	if leverage, source, err := h.leverage.GetLeverage(ctx, "BTC"); err == nil {
		snapshot["leverage"] = gin.H{"data": leverage, "source": source}
	}
	if funding, source, err := h.funding.GetFunding(ctx, "BTC"); err == nil {
		snapshot["funding"] = gin.H{"data": funding, "source": source}
	}
	if liquidity, source, err := h.liquidity.GetLiquidity(ctx, "3M"); err == nil {
		snapshot["liquidity"] = gin.H{"data": liquidity, "source": source}
	}

	msg := wsMessage{
		Type: "snapshot",
		Data: snapshot,
		Time: time.Now().UTC(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal websocket snapshot", "error", err.Error())
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- payload:
		default:
			// Slow consumer: drop the frame rather than block the hub.
		}
	}
}

func (h *WebSocketHandler) writePump(client *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) readPump(client *wsClient) {
	defer func() {
		h.unregister(client)
		client.conn.Close()
	}()

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
