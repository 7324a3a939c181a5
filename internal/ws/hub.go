// Package ws maintains per-user websocket subscriptions for progress events
package ws

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client - одно websocket-соединение, подписанное на канал своего пользователя
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID int64
}

type userMessage struct {
	userID  int64
	payload []byte
}

// Hub routes progress payloads to the clients of a single user
type Hub struct {
	clients    map[int64]map[*Client]bool
	deliver    chan userMessage
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		deliver:    make(chan userMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]bool)
			}
			h.clients[client.userID][client] = true
			h.mu.Unlock()
			log.Printf("WS client registered for user %d", client.userID)
		case client := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.clients[client.userID]; ok && set[client] {
				delete(set, client)
				if len(set) == 0 {
					delete(h.clients, client.userID)
				}
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("WS client unregistered for user %d", client.userID)
		case msg := <-h.deliver:
			h.mu.RLock()
			for client := range h.clients[msg.userID] {
				select {
				case client.send <- msg.payload:
				default:
					// медленный клиент - дропаем, доставка без гарантий
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish передает payload подписчикам userID; неблокирующий, при
// переполнении внутренней очереди сообщение теряется
func (h *Hub) Publish(userID int64, payload []byte) {
	select {
	case h.deliver <- userMessage{userID: userID, payload: payload}:
	default:
		log.Printf("WS hub queue full, dropping event for user %d", userID)
	}
}

// ServeWS upgrades the connection and subscribes it to the caller's channel
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID int64) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS upgrade error: %v", err)
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256), userID: userID}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		if err := c.conn.Close(); err != nil {
			log.Println("WS failed to close connection:", err)
		}
	}()
	for {
		// сообщений от клиента не ждем, читаем только чтобы заметить разрыв
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
