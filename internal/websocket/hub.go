package websocket

import (
	"context"
	"encoding/json"

	"github.com/isdelr/task-manager-be/internal/models"
	"github.com/rs/zerolog/log"
)

type ownerMessage struct {
	ownerID string
	data    []byte
}

// revocation closes the feeds of one session, or of every session of the
// owner when token is empty.
type revocation struct {
	ownerID string
	token   string
	done    chan struct{}
}

// Hub maintains the set of active clients and fans task events out to the
// clients of the task's owner.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// A map of owner IDs to the set of clients of that owner.
	subscriptions map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	publish    chan ownerMessage
	revoke     chan revocation

	// Closed when Run returns.
	done chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		publish:       make(chan ownerMessage, 256),
		revoke:        make(chan revocation),
		done:          make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns when ctx is
// cancelled, after closing the send channel of every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			if h.subscriptions[client.OwnerID] == nil {
				h.subscriptions[client.OwnerID] = make(map[*Client]bool)
			}
			h.subscriptions[client.OwnerID][client] = true
			log.Debug().Str("owner_id", client.OwnerID).Int("total_clients", len(h.clients)).Msg("Client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Debug().Str("owner_id", client.OwnerID).Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case rv := <-h.revoke:
			for client := range h.subscriptions[rv.ownerID] {
				if rv.token == "" || client.Token == rv.token {
					h.drop(client)
				}
			}
			close(rv.done)
			log.Debug().Str("owner_id", rv.ownerID).Int("total_clients", len(h.clients)).Msg("Closed feeds of revoked sessions")
		case msg := <-h.publish:
			for client := range h.subscriptions[msg.ownerID] {
				select {
				case client.send <- msg.data:
				default:
					// Slow consumer; it reconnects and refetches.
					log.Warn().Str("owner_id", msg.ownerID).Msg("Dropping websocket client with a full buffer")
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	if subs := h.subscriptions[client.OwnerID]; subs != nil {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.subscriptions, client.OwnerID)
		}
	}
}

// Register adds the client to its owner's feed. It reports false when the
// hub has already stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes the client and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues event for every client of ownerID. Events of one owner are
// never delivered to another.
func (h *Hub) Publish(ownerID string, event models.TaskEvent) {
	data, err := json.Marshal(NewTaskMessage(event))
	if err != nil {
		log.Error().Err(err).Str("action", event.Action).Msg("Failed to encode task event")
		return
	}
	select {
	case h.publish <- ownerMessage{ownerID: ownerID, data: data}:
	case <-h.done:
	}
}

// CloseSession closes every feed opened with token. It returns once the
// feeds are dropped, so no event published afterwards reaches them.
func (h *Hub) CloseSession(ownerID, token string) {
	if token == "" {
		return
	}
	h.closeFeeds(revocation{ownerID: ownerID, token: token, done: make(chan struct{})})
}

// CloseOwner closes every feed of ownerID.
func (h *Hub) CloseOwner(ownerID string) {
	h.closeFeeds(revocation{ownerID: ownerID, done: make(chan struct{})})
}

func (h *Hub) closeFeeds(rv revocation) {
	select {
	case h.revoke <- rv:
		<-rv.done
	case <-h.done:
	}
}
