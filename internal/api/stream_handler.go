package api

import (
	"io"
	"net/http"
	"time"

	"flagpole/internal/service"
	"flagpole/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Auth happens in the JWT middleware before the upgrade.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler exposes the push channel over two transports sharing the same
// hub: websocket for SDK clients and SSE for dashboards. Each open transport
// owns one hub connection and is responsible for unregistering it.
type StreamHandler struct {
	hub               *service.Hub
	sendBuffer        int
	heartbeatInterval time.Duration
}

func NewStreamHandler(hub *service.Hub, sendBuffer int, heartbeatInterval time.Duration) *StreamHandler {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 30 * time.Second
	}
	return &StreamHandler{
		hub:               hub,
		sendBuffer:        sendBuffer,
		heartbeatInterval: heartbeatInterval,
	}
}

// WatchWebSocket upgrades to a websocket and pumps hub events to the peer.
func (h *StreamHandler) WatchWebSocket(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err), zap.String("ip", c.ClientIP()))
		return
	}

	conn := service.NewConn(uuid.New().String(), h.sendBuffer)
	h.hub.Register(conn)
	logger.Info("websocket client connected",
		zap.String("conn_id", conn.ID),
		zap.Uint64("user_id", service.GetOperatorID(c.Request.Context())),
		zap.String("ip", c.ClientIP()))

	done := make(chan struct{})

	// Read side exists only to observe the close; inbound frames are ignored.
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.heartbeatInterval)
	defer func() {
		ticker.Stop()
		h.hub.Unregister(conn.ID)
		ws.Close()
	}()

	for {
		select {
		case payload, ok := <-conn.Send:
			if !ok {
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Warn("websocket write failed", zap.String("conn_id", conn.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// WatchSSE streams hub events as server-sent events.
func (h *StreamHandler) WatchSSE(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	conn := service.NewConn(uuid.New().String(), h.sendBuffer)
	h.hub.Register(conn)
	logger.Info("sse client connected",
		zap.String("conn_id", conn.ID),
		zap.Uint64("user_id", service.GetOperatorID(c.Request.Context())),
		zap.String("ip", c.ClientIP()))

	ticker := time.NewTicker(h.heartbeatInterval)
	defer func() {
		ticker.Stop()
		h.hub.Unregister(conn.ID)
	}()

	c.Stream(func(w io.Writer) bool {
		select {
		case payload, ok := <-conn.Send:
			if !ok {
				return false
			}
			c.SSEvent("message", string(payload))
			return true
		case <-ticker.C:
			c.SSEvent("ping", "pong")
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
