package presenter

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/krobus00/meta-exchange/internal/entity"
	"github.com/sirupsen/logrus"
)

const (
	clientSendBuffer = 64
	writeWait        = 10 * time.Second
	pingPeriod       = 30 * time.Second
)

type hubClient struct {
	id   string
	send chan []byte
}

// ResultHub broadcasts processed transaction results to websocket clients.
// Slow clients are dropped instead of blocking the broadcaster.
type ResultHub struct {
	mu       sync.RWMutex
	clients  map[*hubClient]struct{}
	upgrader websocket.Upgrader
}

func NewResultHub() *ResultHub {
	return &ResultHub{
		clients: make(map[*hubClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *ResultHub) Broadcast(event entity.TransactionResultEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logrus.WithField("request_id", event.RequestID).Errorf("failed to marshal transaction result: %v", err)
		return
	}

	var slow []*hubClient

	h.mu.RLock()
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		logrus.WithField("client_id", client.id).Warn("result stream client is too slow, disconnecting")
		h.unregister(client)
	}
}

func (h *ResultHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket and streams results until the
// client disconnects.
func (h *ResultHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("failed to upgrade result stream connection: %v", err)
		return
	}

	client := &hubClient{
		id:   uuid.NewString(),
		send: make(chan []byte, clientSendBuffer),
	}
	h.register(client)

	go h.readPump(conn, client)
	h.writePump(r.Context(), conn, client)
}

// Close disconnects every client.
func (h *ResultHub) Close(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	return nil
}

func (h *ResultHub) register(client *hubClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"client_id":     client.id,
		"total_clients": total,
	}).Info("result stream client registered")
}

func (h *ResultHub) unregister(client *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	logrus.WithField("client_id", client.id).Info("result stream client unregistered")
}

// readPump drains client frames so control messages are handled and a closed
// connection is noticed.
func (h *ResultHub) readPump(conn *websocket.Conn, client *hubClient) {
	defer h.unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *ResultHub) writePump(ctx context.Context, conn *websocket.Conn, client *hubClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logrus.WithField("client_id", client.id).Warnf("failed to write result stream message: %v", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
