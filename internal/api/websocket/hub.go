package websocket

import (
	"encoding/json"

	"go.uber.org/zap"
)

// Hub fans out Messages to every registered Client, dropping to a
// slow client rather than blocking the broadcaster. Grounded on the
// teacher's register/unregister/broadcast channel trio.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log.Named("api.websocket.hub"),
	}
}

// Run drives the hub's select loop; call it in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.log.Info("client connected", zap.Int("clients", len(h.clients)))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.log.Info("client disconnected", zap.Int("clients", len(h.clients)))
			}
		case msg := <-h.broadcast:
			encoded, err := json.Marshal(msg)
			if err != nil {
				h.log.Warn("marshal broadcast message failed", zap.Error(err))
				continue
			}
			for c := range h.clients {
				select {
				case c.send <- encoded:
				default:
					h.log.Warn("dropping message for slow client")
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Broadcast pushes msg to the hub's queue, non-blocking; callers on
// the mapping-processor path must never stall on a full hub.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("broadcast channel full, dropping message", zap.String("type", string(msg.Type)))
	}
}

func (h *Hub) Register(c *Client)   { h.register <- c }
func (h *Hub) Unregister(c *Client) { h.unregister <- c }
