package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/slotwise/scheduling-service/internal/realtime"
	"github.com/slotwise/scheduling-service/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// WebSocketHandler upgrades HTTP requests to WebSocket connections and
// wires them into the realtime.SubscriptionManager.
type WebSocketHandler struct {
	Upgrader websocket.Upgrader
	Manager  *realtime.SubscriptionManager
	Logger   *logger.Logger
}

func NewWebSocketHandler(manager *realtime.SubscriptionManager, log *logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		Manager: manager,
		Logger:  log,
	}
}

// SubscriptionMessage is sent by clients to subscribe to a topic.
type SubscriptionMessage struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"` // "client", "rbt", or "global"
	ID    string `json:"id,omitempty"`
}

func (h *WebSocketHandler) HandleConnections(c *gin.Context) {
	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Error("failed to upgrade websocket connection", "error", err)
		return
	}

	client := &realtime.Client{
		ID:      realtime.GenerateClientID(),
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Manager: h.Manager,
	}
	h.Manager.EnqueueClientRegistration(client)

	go h.writePump(client)
	go h.readPump(client)
}

func (h *WebSocketHandler) readPump(client *realtime.Client) {
	defer func() {
		client.Manager.UnregisterClient(client)
		if err := client.Conn.Close(); err != nil {
			h.Logger.Error("error closing websocket connection", "clientId", client.ID, "error", err)
		}
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	if err := client.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.Logger.Error("failed to set read deadline", "clientId", client.ID, "error", err)
		return
	}
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.Logger.Error("websocket read error", "clientId", client.ID, "error", err)
			}
			break
		}

		var msg SubscriptionMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.Logger.Warn("failed to unmarshal client message", "clientId", client.ID, "error", err)
			continue
		}

		switch msg.Type {
		case "subscribe":
			switch msg.Topic {
			case string(realtime.TopicClient), string(realtime.TopicRbt):
				client.Manager.Subscribe(client, realtime.Topic(msg.Topic), msg.ID)
			case string(realtime.TopicGlobal):
				client.Manager.Subscribe(client, realtime.TopicGlobal, "")
			default:
				h.Logger.Warn("subscription message has unknown topic", "clientId", client.ID, "topic", msg.Topic)
			}
		default:
			h.Logger.Info("unknown message type from client", "clientId", client.ID, "type", msg.Type)
		}

		if err := client.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			h.Logger.Error("failed to reset read deadline", "clientId", client.ID, "error", err)
			break
		}
	}
}

func (h *WebSocketHandler) writePump(client *realtime.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := client.Conn.Close(); err != nil {
			h.Logger.Error("error closing websocket connection", "clientId", client.ID, "error", err)
		}
	}()

	for {
		select {
		case message, ok := <-client.Send:
			if err := client.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				h.Logger.Error("failed to set write deadline", "clientId", client.ID, "error", err)
			}
			if !ok {
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := client.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				h.Logger.Error("failed to get websocket writer", "clientId", client.ID, "error", err)
				return
			}
			if _, err := w.Write(message); err != nil {
				h.Logger.Error("error writing websocket message", "clientId", client.ID, "error", err)
			}
			if err := w.Close(); err != nil {
				h.Logger.Error("error closing websocket writer", "clientId", client.ID, "error", err)
				return
			}
		case <-ticker.C:
			if err := client.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				h.Logger.Error("failed to set write deadline for ping", "clientId", client.ID, "error", err)
				return
			}
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.Logger.Error("error writing ping", "clientId", client.ID, "error", err)
				return
			}
		}
	}
}
