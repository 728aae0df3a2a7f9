// Package websocket pushes live standings and activity to admin dashboards.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/challenge75/internal/domain"
)

// Message types
const (
	MessageTypeStandingsUpdate = "standings_update"
	MessageTypeActivity        = "activity"
	MessageTypeSubscribe       = "subscribe"
	MessageTypeUnsubscribe     = "unsubscribe"
	MessageTypeRefresh         = "refresh"
	MessageTypePing            = "ping"
	MessageTypePong            = "pong"
	MessageTypeError           = "error"
)

// Channels a client can subscribe to
const (
	ChannelStandings = "standings"
	ChannelActivity  = "activity"
)

var knownChannels = map[string]bool{
	ChannelStandings: true,
	ChannelActivity:  true,
}

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Channel   string      `json:"channel,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// StandingsUpdate carries a freshly computed leaderboard
type StandingsUpdate struct {
	Rows         []domain.LeaderboardRow `json:"rows"`
	Participants int                     `json:"participants"`
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Subscribed clients by channel
	clients map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Message
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	// Last standings payload, replayed to dashboards that join or refresh
	lastStandings []byte

	mu     sync.RWMutex
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client  *Client
	channel string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			// new dashboards follow every channel until they unsubscribe
			for channel := range knownChannels {
				h.addLocked(client, channel)
			}
			h.replayLocked(client)
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id, "user_id", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				for channel := range h.clients {
					h.removeLocked(client, channel)
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.allClients[req.client]; ok {
				h.addLocked(req.client, req.channel)
			}
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "channel", req.channel)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			h.removeLocked(req.client, req.channel)
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "channel", req.channel)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

func (h *Hub) addLocked(client *Client, channel string) {
	if _, ok := h.clients[channel]; !ok {
		h.clients[channel] = make(map[*Client]bool)
	}
	h.clients[channel][client] = true
}

func (h *Hub) removeLocked(client *Client, channel string) {
	if clients, ok := h.clients[channel]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, channel)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// replayLocked queues the last standings snapshot for one client
func (h *Hub) replayLocked(client *Client) {
	if h.lastStandings == nil {
		return
	}
	select {
	case client.send <- h.lastStandings:
	default:
	}
}

// Replay resends the last standings snapshot to a client
func (h *Hub) Replay(client *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.allClients[client]; !ok || h.lastStandings == nil {
		return false
	}
	h.replayLocked(client)
	return true
}

// broadcastMessage sends a message to the clients subscribed to its channel
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if message.Type == MessageTypeStandingsUpdate {
		h.lastStandings = data
	}

	targets := h.allClients
	if message.Channel != "" {
		targets = h.clients[message.Channel]
	}
	for client := range targets {
		select {
		case client.send <- data:
		default:
			// Client's buffer is full, skip
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// BroadcastStandings sends a leaderboard snapshot to standings subscribers
func (h *Hub) BroadcastStandings(rows []domain.LeaderboardRow) {
	h.enqueue(&Message{
		Type:    MessageTypeStandingsUpdate,
		Channel: ChannelStandings,
		Data: StandingsUpdate{
			Rows:         rows,
			Participants: len(rows),
		},
		Timestamp: time.Now(),
	})
}

// BroadcastEvent sends a submission or grading event to activity subscribers
func (h *Hub) BroadcastEvent(event domain.Event) {
	h.enqueue(&Message{
		Type:      MessageTypeActivity,
		Channel:   ChannelActivity,
		Data:      event,
		Timestamp: time.Now(),
	})
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Subscribe adds a client to a channel
func (h *Hub) Subscribe(client *Client, channel string) {
	h.subscribe <- &subscriptionRequest{client: client, channel: channel}
}

// Unsubscribe removes a client from a channel
func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.unsubscribe <- &subscriptionRequest{client: client, channel: channel}
}

// SubscriberCount returns the number of subscribers of a channel
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[channel])
}

// TotalConnections returns the total number of connected clients
func (h *Hub) TotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
