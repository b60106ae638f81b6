package service

import (
	"fmt"
	"sync"

	"flagpole/internal/metrics"
	v1 "flagpole/pkg/api/v1"
	"flagpole/pkg/logger"

	"go.uber.org/zap"
)

// Conn is one live subscriber. The transport handler owns the read side of
// Send and writes each payload to its socket; the hub never touches the
// socket directly.
type Conn struct {
	ID   string
	Send chan []byte
}

func NewConn(id string, buffer int) *Conn {
	if buffer <= 0 {
		buffer = 128
	}
	return &Conn{ID: id, Send: make(chan []byte, buffer)}
}

// Hub is the realtime fanout registry: connection id → live connection.
// Mutation goes through Register/Unregister only; broadcast holds the read
// lock and never blocks on a slow subscriber.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]*Conn
	observer metrics.HubObserver
}

func NewHub(observer metrics.HubObserver) *Hub {
	return &Hub{
		conns:    make(map[string]*Conn),
		observer: observer,
	}
}

func (h *Hub) Register(conn *Conn) {
	h.mu.Lock()
	h.conns[conn.ID] = conn
	h.mu.Unlock()
	h.observer.IncOnline()
	logger.Debug("connection registered", zap.String("conn_id", conn.ID))
}

// Unregister removes and closes the connection. Idempotent: the transport
// layer may race its own close against a server shutdown.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	conn, ok := h.conns[id]
	if ok {
		delete(h.conns, id)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	close(conn.Send)
	h.observer.DecOnline()
	logger.Debug("connection unregistered", zap.String("conn_id", id))
}

// Broadcast serializes the envelope once and hands it to every registered
// connection. A subscriber with a full buffer loses this event (logged,
// counted) but is not evicted; dead sockets are reaped by their transport
// handler's own Unregister call.
func (h *Hub) Broadcast(event string, data any) {
	payload, err := (v1.Envelope{Event: event, Data: data}).Marshal()
	if err != nil {
		logger.Error("broadcast serialization failed", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, conn := range h.conns {
		select {
		case conn.Send <- payload:
			h.observer.RecordPush()
		default:
			h.observer.RecordDrop()
			logger.Warn("dropping event for slow connection",
				zap.String("conn_id", id),
				zap.String("event", event))
		}
	}
}

// Send delivers to a single connection. Unknown ids are the only error; a
// full buffer is handled like in Broadcast. The read lock is held across the
// channel send: Unregister closes the channel only under the write lock, so
// the channel cannot close mid-send.
func (h *Hub) Send(event string, data any, connID string) error {
	payload, err := (v1.Envelope{Event: event, Data: data}).Marshal()
	if err != nil {
		logger.Error("send serialization failed", zap.String("event", event), zap.Error(err))
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.conns[connID]
	if !ok {
		return fmt.Errorf("%w: connection %s", ErrNotFound, connID)
	}

	select {
	case conn.Send <- payload:
		h.observer.RecordPush()
	default:
		h.observer.RecordDrop()
		logger.Warn("dropping event for slow connection",
			zap.String("conn_id", connID),
			zap.String("event", event))
	}
	return nil
}

// Online reports the number of registered connections.
func (h *Hub) Online() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
