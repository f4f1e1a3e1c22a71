// Package realtime pushes schedule updates to WebSocket subscribers,
// keyed by client id, RBT id, or a global topic (spec.md §6), generalized
// from the teacher's SubscriptionManager (keyed by business id only).
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/slotwise/scheduling-service/pkg/events"
	"github.com/slotwise/scheduling-service/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Topic is the dimension a client subscribes on.
type Topic string

const (
	TopicClient Topic = "client"
	TopicRbt    Topic = "rbt"
	TopicGlobal Topic = "global"
)

// subscriptionKey identifies one (topic, id) subscription target. Global
// subscribers use an empty id.
type subscriptionKey struct {
	topic Topic
	id    string
}

// Client is a middleman between a websocket connection and the manager.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	Manager *SubscriptionManager
}

// SubscriptionManager maintains active clients and the (topic, id) ->
// clients fan-out map.
type SubscriptionManager struct {
	clients       map[*Client]bool
	register      chan *Client
	unregister    chan *Client
	subscriptions map[subscriptionKey]map[*Client]bool

	Logger     *logger.Logger
	Subscriber *events.Subscriber

	mu sync.RWMutex
}

func NewSubscriptionManager(log *logger.Logger, subscriber *events.Subscriber) *SubscriptionManager {
	return &SubscriptionManager{
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		clients:       make(map[*Client]bool),
		subscriptions: make(map[subscriptionKey]map[*Client]bool),
		Logger:        log,
		Subscriber:    subscriber,
	}
}

func (m *SubscriptionManager) EnqueueClientRegistration(client *Client) {
	m.register <- client
}

func (m *SubscriptionManager) Run() {
	m.Logger.Info("realtime subscription manager started")
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			m.clients[client] = true
			m.mu.Unlock()
			m.Logger.Info("client registered", "clientId", client.ID)
		case client := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				close(client.Send)
				for key, subs := range m.subscriptions {
					if _, subscribed := subs[client]; subscribed {
						delete(m.subscriptions[key], client)
						if len(m.subscriptions[key]) == 0 {
							delete(m.subscriptions, key)
						}
					}
				}
			}
			m.mu.Unlock()
			m.Logger.Info("client unregistered", "clientId", client.ID)
		}
	}
}

// Subscribe associates client with the given topic/id, e.g. (TopicClient,
// clientID) or (TopicGlobal, "") for the global broadcast feed.
func (m *SubscriptionManager) Subscribe(client *Client, topic Topic, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client == nil {
		m.Logger.Error("attempted to subscribe a nil client")
		return
	}

	key := subscriptionKey{topic: topic, id: id}
	if _, ok := m.subscriptions[key]; !ok {
		m.subscriptions[key] = make(map[*Client]bool)
	}
	m.subscriptions[key][client] = true
	m.Logger.Info("client subscribed", "clientId", client.ID, "topic", topic, "id", id)
}

func (m *SubscriptionManager) UnregisterClient(client *Client) {
	m.unregister <- client
}

// Send delivers message to every subscriber of (topic, id). A full client
// send buffer drops the message for that client rather than blocking the
// rest of the fan-out.
func (m *SubscriptionManager) Send(topic Topic, id string, message []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := subscriptionKey{topic: topic, id: id}
	subscribers, ok := m.subscriptions[key]
	if !ok {
		return
	}
	for client := range subscribers {
		select {
		case client.Send <- message:
		default:
			m.Logger.Warn("client send buffer full, message dropped", "clientId", client.ID, "topic", topic, "id", id)
		}
	}
}

// Broadcast delivers message to every globally-subscribed client, in
// addition to whatever topic-scoped Send calls the caller also makes.
func (m *SubscriptionManager) Broadcast(message []byte) {
	m.Send(TopicGlobal, "", message)
}

func GenerateClientID() string {
	return uuid.New().String()
}

// Update is the envelope pushed to WebSocket subscribers.
type Update struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// PublishSessionUpdate pushes a session-related update to the session's
// client, RBT, and the global topic.
func (m *SubscriptionManager) PublishSessionUpdate(eventType, clientID, rbtID string, payload interface{}) {
	update := Update{Type: eventType, Payload: payload}
	data, err := json.Marshal(update)
	if err != nil {
		m.Logger.Error("failed to marshal realtime update", "eventType", eventType, "error", err)
		return
	}
	m.Send(TopicClient, clientID, data)
	m.Send(TopicRbt, rbtID, data)
	m.Broadcast(data)
}

// StartEventSubscriptions wires the NATS subjects published by the core's
// services to WebSocket fan-out, mirroring the teacher's
// StartEventSubscriptions wiring but over the renamed session/rbt subjects.
func (m *SubscriptionManager) StartEventSubscriptions() {
	if m.Subscriber == nil {
		m.Logger.Error("NATS subscriber not initialized, cannot start realtime event subscriptions")
		return
	}

	subjects := []string{
		events.SessionCreatedEvent,
		events.SessionCancelledEvent,
		events.SessionRescheduledEvent,
		events.RbtUnavailableEvent,
	}
	for _, subject := range subjects {
		subjectCopy := subject
		err := m.Subscriber.Subscribe(subjectCopy, func(data []byte) error {
			m.handleDomainEvent(subjectCopy, data)
			return nil
		})
		if err != nil {
			m.Logger.Error("failed to subscribe to subject", "subject", subjectCopy, "error", err)
			continue
		}
		m.Logger.Info("subscribed to subject", "subject", subjectCopy)
	}
}

func (m *SubscriptionManager) handleDomainEvent(subject string, data []byte) {
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		m.Logger.Error("failed to unmarshal domain event", "subject", subject, "error", err)
		return
	}

	clientID, _ := payload["clientId"].(string)
	rbtID, _ := payload["rbtId"].(string)
	m.PublishSessionUpdate(subject, clientID, rbtID, payload)
}
